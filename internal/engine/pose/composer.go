// Package pose builds the eye-from-space transform chain for each eye
// and frame, with optional client-side motion prediction.
package pose

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Params carries the per-frame inputs to pose composition.
type Params struct {
	// RoomFromHeadOverride replaces the tracked head pose when non-nil.
	// Prediction is skipped for an override pose.
	RoomFromHeadOverride *math.Pose

	// TimeUntilPresent is how far ahead to predict the head pose.
	TimeUntilPresent time.Duration
}

// Composer builds eye-from-space poses from tracked data. All
// composition is pose chaining, never raw matrix multiplication.
type Composer struct {
	client     tracking.Client
	display    config.DisplayConfig
	prediction config.PredictionConfig

	// roomFromWorld is an optional append transform placing the room in
	// a larger world; identity unless configured by the application.
	roomFromWorld    math.Pose
	useRoomFromWorld bool
}

// NewComposer creates a composer reading from the given tracking client.
func NewComposer(client tracking.Client, display config.DisplayConfig, prediction config.PredictionConfig) *Composer {
	return &Composer{
		client:        client,
		display:       display,
		prediction:    prediction,
		roomFromWorld: math.PoseIdentity(),
	}
}

// SetRoomFromWorld installs an append transform applied when composing
// for world space.
func (c *Composer) SetRoomFromWorld(p math.Pose) {
	c.roomFromWorld = p
	c.useRoomFromWorld = true
}

// EyeFromSpace composes the full eye-from-targetSpace pose for one eye.
// It returns false, leaving identity in the result, when the target
// space's pose cannot currently be read; callers skip rendering that
// space this frame.
func (c *Composer) EyeFromSpace(space string, eye int, p Params) (math.Pose, bool) {
	// World-from-target is identity for world space itself, else the
	// tracked pose of the named interface.
	worldFromSpace := math.PoseIdentity()
	if space != tracking.WorldSpace {
		tracked, ok := c.client.Pose(space)
		if !ok {
			return math.PoseIdentity(), false
		}
		worldFromSpace = tracked
	}

	roomFromHead := c.headPose(p)
	eyeFromHead := c.eyeFromHead(eye)

	eyeFromRoom := eyeFromHead.Compose(roomFromHead.Invert())

	eyeFromWorld := eyeFromRoom
	if space == tracking.WorldSpace && c.useRoomFromWorld {
		eyeFromWorld = eyeFromRoom.Compose(c.roomFromWorld)
	}

	return eyeFromWorld.Compose(worldFromSpace), true
}

// headPose resolves the room-from-head pose: the override when set,
// otherwise the latest tracked pose, predicted ahead when enabled.
func (c *Composer) headPose(p Params) math.Pose {
	if p.RoomFromHeadOverride != nil {
		return *p.RoomFromHeadOverride
	}

	head, ok := c.client.Pose(tracking.HeadSpace)
	if !ok {
		// Tracking lost: render from the room origin rather than abort.
		return math.PoseIdentity()
	}

	if c.prediction.Enabled {
		if vel, ok := c.client.Velocity(tracking.HeadSpace); ok {
			interval := float32(p.TimeUntilPresent.Seconds()) + c.prediction.StaticDelayMs/1000
			head = PredictPose(head, vel, interval)
		}
	}
	return head
}

// eyeFromHead builds the per-eye correction: a rotate-eyes-apart
// correction derived from the display overlap, then a translation of
// half the interpupillary distance along the interocular axis.
func (c *Composer) eyeFromHead(eye int) math.Pose {
	// Overlap below 100% rotates each eye outward about the up axis by
	// half the non-shared field of view; the sign flips for right eyes.
	var rot math.Quat
	overlap := c.display.OverlapPercent / 100
	if overlap < 1 {
		angle := -deg2rad(c.display.HorizontalFOVDeg*(1-overlap)) / 2
		if eye%2 == 1 {
			angle = -angle
		}
		rot = math.QuatFromAxisAngle(math.Vec3{Y: 1}, angle)
	} else {
		rot = math.QuatIdentity()
	}

	// Even eyes are left eyes. The eye sits at -IPD/2 in head space, so
	// the eye-from-head translation is +IPD/2.
	tx := c.display.IPDMeters / 2
	if eye%2 == 1 {
		tx = -tx
	}

	return math.Pose{Orientation: rot}.Compose(math.Pose{
		Orientation: math.QuatIdentity(),
		Position:    math.Vec3{X: tx},
	})
}

func deg2rad(deg float32) float32 {
	return deg * math32.Pi / 180
}
