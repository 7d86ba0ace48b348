package timewarp

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

func testViews(t *testing.T) []View {
	t.Helper()
	cfg := config.Default()
	b := projection.NewBuilder(cfg.Display, cfg.Rendering)

	views := make([]View, 2)
	for eye := range views {
		f, ok := b.Frustum(eye, 0.1, 100)
		if !ok {
			t.Fatalf("eye %d: frustum failed", eye)
		}
		x := float32(-0.032)
		if eye == 1 {
			x = 0.032
		}
		views[eye] = View{
			SpaceFromEye: math.Pose{
				Orientation: math.QuatIdentity(),
				Position:    math.Vec3{X: x},
			},
			Frustum: f,
		}
	}
	return views
}

func matAlmostIdentity(m math.Mat4, tol float64) bool {
	id := math.Identity()
	for i := range m {
		if gomath.Abs(float64(m[i]-id[i])) > tol {
			return false
		}
	}
	return true
}

func TestIdentityWhenPoseUnchanged(t *testing.T) {
	views := testViews(t)
	c := NewCalculator(2, false, false)

	mats, ok := c.Compute(views, views, 2.0)
	if !ok {
		t.Fatal("compute failed")
	}
	for eye, m := range mats {
		if !matAlmostIdentity(m, 1e-4) {
			t.Errorf("eye %d: no head motion must yield the identity warp, got %v", eye, m)
		}
	}
}

func TestIdentityWithFlipAndTranspose(t *testing.T) {
	// The conventions conjugate/transpose the matrix; identity must
	// survive both.
	views := testViews(t)
	c := NewCalculator(2, true, true)

	mats, ok := c.Compute(views, views, 2.0)
	if !ok {
		t.Fatal("compute failed")
	}
	for eye, m := range mats {
		if !matAlmostIdentity(m, 1e-4) {
			t.Errorf("eye %d: expected identity, got %v", eye, m)
		}
	}
}

func TestRejectsBadInput(t *testing.T) {
	views := testViews(t)
	c := NewCalculator(2, false, false)

	if _, ok := c.Compute(views, views, 0); ok {
		t.Error("zero depth must fail")
	}
	if _, ok := c.Compute(views, views, -1); ok {
		t.Error("negative depth must fail")
	}
	if _, ok := c.Compute(views[:1], views, 2); ok {
		t.Error("length mismatch must fail")
	}
	if _, ok := c.Compute(views, views[:1], 2); ok {
		t.Error("length mismatch must fail")
	}
}

func TestHeadTranslationShiftsSampling(t *testing.T) {
	views := testViews(t)
	c := NewCalculator(2, false, false)

	// Head moved 10cm to the right since render: the world slides left
	// in view, so the warp must sample the old frame to the right of
	// the output coordinate.
	current := make([]View, len(views))
	copy(current, views)
	for eye := range current {
		p := current[eye].SpaceFromEye
		p.Position = p.Position.Add(math.Vec3{X: 0.1})
		current[eye].SpaceFromEye = p
	}

	mats, ok := c.Compute(views, current, 2.0)
	if !ok {
		t.Fatal("compute failed")
	}

	center := mats[0].MulVec4([4]float32{0.5, 0.5, 0, 1})
	u := center[0] / center[3]
	v := center[1] / center[3]
	if u <= 0.5 {
		t.Errorf("rightward head motion should shift sampling right, got u = %g", u)
	}
	if gomath.Abs(float64(v-0.5)) > 1e-4 {
		t.Errorf("pure x translation moved v to %g", v)
	}
}

func TestHeadRotationWarpsBothEyesConsistently(t *testing.T) {
	views := testViews(t)
	c := NewCalculator(2, false, false)

	// Small yaw to the left since render.
	yaw := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.05)
	current := make([]View, len(views))
	for eye := range views {
		current[eye] = views[eye]
		current[eye].SpaceFromEye.Orientation = yaw.Mul(views[eye].SpaceFromEye.Orientation)
		current[eye].SpaceFromEye.Position = yaw.RotateVec(views[eye].SpaceFromEye.Position)
	}

	mats, ok := c.Compute(views, current, 2.0)
	if !ok {
		t.Fatal("compute failed")
	}

	var us [2]float64
	for eye := range mats {
		out := mats[eye].MulVec4([4]float32{0.5, 0.5, 0, 1})
		us[eye] = float64(out[0] / out[3])
		if gomath.Abs(us[eye]-0.5) < 1e-5 {
			t.Errorf("eye %d: yaw produced no horizontal warp", eye)
		}
	}
	// Both eyes warp the same direction for a pure head rotation.
	if (us[0]-0.5)*(us[1]-0.5) <= 0 {
		t.Errorf("eyes warped in opposite directions: %g vs %g", us[0], us[1])
	}
}
