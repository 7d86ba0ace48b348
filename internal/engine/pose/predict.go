package pose

import (
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// PredictPose advances a pose by its velocity over interval seconds.
//
// Orientation is integrated by applying the incremental per-dt rotation
// once for each whole multiple of dt inside the interval, then slerping
// the remaining fraction. Position is integrated linearly. Each part is
// skipped independently when its velocity sample is marked invalid.
func PredictPose(p math.Pose, vel tracking.VelocityReport, interval float32) math.Pose {
	if interval <= 0 {
		return p
	}

	if vel.AngularValid && vel.Angular.Dt > 0 {
		whole := int(interval / vel.Angular.Dt)
		frac := (interval - float32(whole)*vel.Angular.Dt) / vel.Angular.Dt

		q := p.Orientation
		for i := 0; i < whole; i++ {
			q = vel.Angular.Delta.Mul(q).Normalize()
		}
		if frac > 0 {
			partial := math.QuatIdentity().Slerp(vel.Angular.Delta, frac)
			q = partial.Mul(q).Normalize()
		}
		p.Orientation = q
	}

	if vel.LinearValid {
		p.Position = p.Position.Add(vel.Linear.Scale(interval))
	}

	return p
}
