// Package tracking defines the interface the render manager uses to read
// head and controller poses. The actual tracker is an external
// collaborator; this package only specifies what the core needs from it
// and provides a static implementation for tests and demos.
package tracking

import (
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// HeadSpace names the tracked head interface.
const HeadSpace = "head"

// WorldSpace is the sentinel for room/world space. It has no tracked
// interface behind it; its pose is always identity.
const WorldSpace = ""

// AngularVelocity reports rotation as an incremental rotation Delta that
// is applied once per Dt seconds.
type AngularVelocity struct {
	Delta math.Quat
	Dt    float32
}

// VelocityReport is a velocity sample for one tracked space. The linear
// and angular parts carry independent validity flags; a consumer must
// skip the corresponding integration when a part is invalid.
type VelocityReport struct {
	Linear       math.Vec3 // meters per second
	LinearValid  bool
	Angular      AngularVelocity
	AngularValid bool
}

// Client is the pose-tracking collaborator. Update must be called once
// per frame, before any Pose or Velocity reads, to pump tracker
// callbacks. Pose and Velocity return false when the space has no
// current sample; callers treat that as "skip this space this frame".
type Client interface {
	Update() error
	Pose(space string) (math.Pose, bool)
	Velocity(space string) (VelocityReport, bool)
}
