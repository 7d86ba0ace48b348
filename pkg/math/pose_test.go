package math

import (
	"math"
	"testing"
)

const poseEps = 1e-5

func poseAlmostEqual(t *testing.T, got, want Pose, label string) {
	t.Helper()
	// Orientation may differ by sign (q and -q are the same rotation).
	d := got.Orientation.Dot(want.Orientation)
	if math.Abs(math.Abs(float64(d))-1) > poseEps {
		t.Errorf("%s: orientation mismatch, got %+v want %+v", label, got.Orientation, want.Orientation)
	}
	if got.Position.Distance(want.Position) > poseEps {
		t.Errorf("%s: position mismatch, got %+v want %+v", label, got.Position, want.Position)
	}
}

func TestPoseComposeAssociativity(t *testing.T) {
	roomFromHead := Pose{
		Orientation: QuatFromAxisAngle(Vec3{Y: 1}, float32(math.Pi/3)),
		Position:    Vec3{X: 0.1, Y: 1.7, Z: -0.4},
	}
	headFromEye := Pose{
		Orientation: QuatFromAxisAngle(Vec3{X: 1}, 0.05),
		Position:    Vec3{X: -0.032},
	}

	// Composing room-from-head with head-from-eye must match transforming
	// a point through the chain step by step.
	roomFromEye := roomFromHead.Compose(headFromEye)

	p := Vec3{X: 0.3, Y: -0.2, Z: 1.5}
	direct := roomFromEye.TransformPoint(p)
	chained := roomFromHead.TransformPoint(headFromEye.TransformPoint(p))

	if direct.Distance(chained) > poseEps {
		t.Errorf("composed transform disagrees with chained transform: %+v vs %+v", direct, chained)
	}
}

func TestPoseInvertRoundTrip(t *testing.T) {
	p := Pose{
		Orientation: QuatFromAxisAngle(Vec3{X: 0.3, Y: 0.9, Z: 0.1}.Normalize(), 1.2),
		Position:    Vec3{X: 2, Y: -1, Z: 0.5},
	}

	poseAlmostEqual(t, p.Compose(p.Invert()), PoseIdentity(), "p * p^-1")
	poseAlmostEqual(t, p.Invert().Compose(p), PoseIdentity(), "p^-1 * p")
}

func TestPoseIdentityIsNeutral(t *testing.T) {
	p := Pose{
		Orientation: QuatFromAxisAngle(Vec3{Z: 1}, 0.7),
		Position:    Vec3{X: 1, Y: 2, Z: 3},
	}

	poseAlmostEqual(t, p.Compose(PoseIdentity()), p, "p * I")
	poseAlmostEqual(t, PoseIdentity().Compose(p), p, "I * p")
}

func TestPoseToMat4MatchesTransformPoint(t *testing.T) {
	p := Pose{
		Orientation: QuatFromAxisAngle(Vec3{Y: 1}, float32(math.Pi/2)),
		Position:    Vec3{X: 1},
	}
	v := Vec3{X: 0, Y: 0, Z: -1}

	viaPose := p.TransformPoint(v)
	viaMat := p.ToMat4().TransformVec3(v)

	if viaPose.Distance(viaMat) > poseEps {
		t.Errorf("matrix and pose transforms disagree: %+v vs %+v", viaPose, viaMat)
	}
}

func TestQuatRotateVecRoundTrip(t *testing.T) {
	// 90 degrees about Y takes -Z to -X.
	q := QuatFromAxisAngle(Vec3{Y: 1}, float32(math.Pi/2))
	got := q.RotateVec(Vec3{Z: -1})
	want := Vec3{X: -1}
	if got.Distance(want) > poseEps {
		t.Errorf("rotate -Z by 90deg about Y: got %+v, want %+v", got, want)
	}

	// Conjugate undoes the rotation.
	back := q.Conjugate().RotateVec(got)
	if back.Distance(Vec3{Z: -1}) > poseEps {
		t.Errorf("conjugate did not undo rotation: got %+v", back)
	}
}
