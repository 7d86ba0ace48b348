package rendermanager

import (
	"errors"
	"testing"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/engine/backend"
	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

func newManager(t *testing.T, mutate func(*config.Config)) (*Manager, *backend.Mock, *tracking.StaticClient) {
	t.Helper()

	cfg := config.Default()
	// Inline presentation keeps the tests deterministic.
	cfg.TimeWarp.Asynchronous = false
	if mutate != nil {
		mutate(cfg)
	}

	mock := backend.NewMock()
	client := tracking.NewStaticClient()
	client.SetPose(tracking.HeadSpace, math.PoseIdentity())

	m, err := New(cfg, mock, client)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m, mock, client
}

func approx(got, want, tol float32) bool {
	d := got - want
	return d >= -tol && d <= tol
}

func TestRenderInfoEyeSeparation(t *testing.T) {
	m, _, _ := newManager(t, nil)

	infos, err := m.GetRenderInfo(RenderParams{})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d render infos, want 2", len(infos))
	}

	// Identity head pose with a 64mm IPD puts the eyes at x = -/+32mm.
	if !approx(infos[0].Pose.Position.X, -0.032, 1e-5) {
		t.Errorf("left eye x = %v, want -0.032", infos[0].Pose.Position.X)
	}
	if !approx(infos[1].Pose.Position.X, 0.032, 1e-5) {
		t.Errorf("right eye x = %v, want 0.032", infos[1].Pose.Position.X)
	}
	for eye, info := range infos {
		if !approx(info.Pose.Position.Y, 0, 1e-5) || !approx(info.Pose.Position.Z, 0, 1e-5) {
			t.Errorf("eye %d position off the x axis: %+v", eye, info.Pose.Position)
		}
	}

	// Full overlap: both eyes share one projection and viewport shape.
	if infos[0].Projection != infos[1].Projection {
		t.Errorf("projections differ: %+v vs %+v", infos[0].Projection, infos[1].Projection)
	}
	if infos[0].Viewport.Width != infos[1].Viewport.Width ||
		infos[0].Viewport.Height != infos[1].Viewport.Height {
		t.Errorf("viewport sizes differ: %+v vs %+v", infos[0].Viewport, infos[1].Viewport)
	}
}

func TestRenderInfoSkipsUnreadableSpace(t *testing.T) {
	m, _, _ := newManager(t, nil)

	infos, err := m.GetRenderInfo(RenderParams{Space: "hand/left"})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("got %d infos for an untracked space, want 0", len(infos))
	}
}

func TestRenderInfoHeadOverride(t *testing.T) {
	m, _, _ := newManager(t, nil)

	override := math.Pose{
		Orientation: math.QuatIdentity(),
		Position:    math.Vec3{X: 1, Y: 2, Z: 3},
	}
	infos, err := m.GetRenderInfo(RenderParams{RoomFromHeadOverride: &override})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	if !approx(infos[0].Pose.Position.X, 1-0.032, 1e-5) {
		t.Errorf("left eye x = %v, want %v", infos[0].Pose.Position.X, 1-0.032)
	}
	if !approx(infos[0].Pose.Position.Y, 2, 1e-5) || !approx(infos[0].Pose.Position.Z, 3, 1e-5) {
		t.Errorf("override not applied: %+v", infos[0].Pose.Position)
	}
}

func TestCallbackProtocolRendersAndPresents(t *testing.T) {
	m, mock, _ := newManager(t, nil)

	calls := 0
	err := m.AddRenderCallback(tracking.WorldSpace, func(info RenderInfo) error {
		calls++
		if info.Viewport.Width <= 0 || info.Viewport.Height <= 0 {
			t.Errorf("callback got a degenerate viewport %+v", info.Viewport)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AddRenderCallback failed: %v", err)
	}

	if err := m.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("callback ran %d times, want once per eye", calls)
	}
	if mock.Presents() != 1 {
		t.Errorf("Presents() = %d, want 1", mock.Presents())
	}
	if len(mock.Targets()) != 2 {
		t.Errorf("manager created %d eye buffers, want 2", len(mock.Targets()))
	}

	// The present pass draws each eye buffer to the window.
	draws := mock.Draws()
	if len(draws) != 2 {
		t.Fatalf("present drew %d meshes, want 2", len(draws))
	}
	for eye, d := range draws {
		if d.Target != nil {
			t.Errorf("eye %d present drew offscreen", eye)
		}
	}
}

func TestRemoveRenderCallback(t *testing.T) {
	m, _, _ := newManager(t, nil)

	if err := m.AddRenderCallback("cockpit", func(RenderInfo) error { return nil }); err != nil {
		t.Fatalf("AddRenderCallback failed: %v", err)
	}
	if !m.RemoveRenderCallback("cockpit") {
		t.Error("RemoveRenderCallback did not find the registered space")
	}
	if m.RemoveRenderCallback("cockpit") {
		t.Error("RemoveRenderCallback found an already-removed space")
	}
}

func TestProtocolsAreMutuallyExclusive(t *testing.T) {
	m, mock, _ := newManager(t, nil)
	if err := m.AddRenderCallback(tracking.WorldSpace, func(RenderInfo) error { return nil }); err != nil {
		t.Fatalf("AddRenderCallback failed: %v", err)
	}
	buf := makeBuffers(t, mock, 2)
	if err := m.RegisterRenderBuffers(buf); !errors.Is(err, ErrProtocol) {
		t.Errorf("RegisterRenderBuffers after callbacks = %v, want protocol error", err)
	}

	m2, mock2, _ := newManager(t, nil)
	if err := m2.RegisterRenderBuffers(makeBuffers(t, mock2, 2)); err != nil {
		t.Fatalf("RegisterRenderBuffers failed: %v", err)
	}
	if err := m2.AddRenderCallback(tracking.WorldSpace, func(RenderInfo) error { return nil }); !errors.Is(err, ErrProtocol) {
		t.Errorf("AddRenderCallback after buffers = %v, want protocol error", err)
	}
	if err := m2.Render(); !errors.Is(err, ErrProtocol) {
		t.Errorf("Render under buffer protocol = %v, want protocol error", err)
	}
}

func makeBuffers(t *testing.T, mock *backend.Mock, n int) []*backend.RenderTarget {
	t.Helper()
	bufs := make([]*backend.RenderTarget, n)
	for i := range bufs {
		b, err := mock.CreateTarget(960, 1080)
		if err != nil {
			t.Fatalf("CreateTarget failed: %v", err)
		}
		bufs[i] = b
	}
	return bufs
}

func TestRegisterRenderBuffersIsIdempotentForSameBuffers(t *testing.T) {
	m, mock, _ := newManager(t, nil)
	bufs := makeBuffers(t, mock, 2)

	if err := m.RegisterRenderBuffers(bufs); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := m.RegisterRenderBuffers(bufs); err != nil {
		t.Errorf("re-registering the same buffers = %v, want nil", err)
	}
	if err := m.RegisterRenderBuffers(makeBuffers(t, mock, 2)); !errors.Is(err, ErrProtocol) {
		t.Errorf("registering different buffers = %v, want protocol error", err)
	}
}

func TestPresentRenderBuffers(t *testing.T) {
	m, mock, _ := newManager(t, nil)
	bufs := makeBuffers(t, mock, 2)

	infos, err := m.GetRenderInfo(RenderParams{})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	if err := m.PresentRenderBuffers(infos, tracking.WorldSpace); !errors.Is(err, ErrProtocol) {
		t.Fatalf("present without registration = %v, want protocol error", err)
	}

	if err := m.RegisterRenderBuffers(bufs); err != nil {
		t.Fatalf("RegisterRenderBuffers failed: %v", err)
	}
	if err := m.PresentRenderBuffers(infos, tracking.WorldSpace); err != nil {
		t.Fatalf("PresentRenderBuffers failed: %v", err)
	}
	if mock.Presents() != 1 {
		t.Errorf("Presents() = %d, want 1", mock.Presents())
	}
	draws := mock.Draws()
	if len(draws) != 2 {
		t.Fatalf("present drew %d meshes, want 2", len(draws))
	}
	for eye, d := range draws {
		if d.Src != bufs[eye] {
			t.Errorf("eye %d presented the wrong buffer", eye)
		}
	}
}

func TestUpdateDistortionMeshes(t *testing.T) {
	m, mock, _ := newManager(t, nil)

	identity := distortion.Parameters{
		Type: distortion.TypeRGBPolynomial,
		Coefficients: [3][]float32{
			{0, 1}, {0, 1}, {0, 1},
		},
		CenterOfProjection: [2]float32{0.5, 0.5},
		DistanceScale:      [2]float32{1, 1},
	}
	if !m.UpdateDistortionMeshes(distortion.MeshTypeSquare, []distortion.Parameters{identity, identity}) {
		t.Fatal("valid distortion parameters were rejected")
	}

	bad := identity
	bad.Coefficients = [3][]float32{{1}, {1}, {1}}
	if m.UpdateDistortionMeshes(distortion.MeshTypeSquare, []distortion.Parameters{bad, bad}) {
		t.Fatal("parameters with single-term polynomials were accepted")
	}

	// The accepted parameters are still in effect and produce meshes.
	if err := m.RegisterRenderBuffers(makeBuffers(t, mock, 2)); err != nil {
		t.Fatalf("RegisterRenderBuffers failed: %v", err)
	}
	infos, err := m.GetRenderInfo(RenderParams{})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	if err := m.PresentRenderBuffers(infos, tracking.WorldSpace); err != nil {
		t.Fatalf("PresentRenderBuffers failed: %v", err)
	}
	for _, d := range mock.Draws() {
		if len(d.Mesh.Vertices) == 0 {
			t.Error("present used an empty distortion mesh")
		}
	}
}

func TestSetOverfillFactor(t *testing.T) {
	m, _, _ := newManager(t, nil)

	before, err := m.GetRenderInfo(RenderParams{})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}

	if err := m.SetOverfillFactor(0.5); err == nil {
		t.Error("overfill below 1 should be rejected")
	}
	if err := m.SetOverfillFactor(2.0); err != nil {
		t.Fatalf("SetOverfillFactor failed: %v", err)
	}

	after, err := m.GetRenderInfo(RenderParams{})
	if err != nil {
		t.Fatalf("GetRenderInfo failed: %v", err)
	}
	for eye := range after {
		if after[eye].Viewport.Width != 2*before[eye].Viewport.Width ||
			after[eye].Viewport.Height != 2*before[eye].Viewport.Height {
			t.Errorf("eye %d viewport %+v did not double from %+v",
				eye, after[eye].Viewport, before[eye].Viewport)
		}
	}

	// Once Render has sized the eye buffers the overfill is locked in.
	if err := m.AddRenderCallback(tracking.WorldSpace, func(RenderInfo) error { return nil }); err != nil {
		t.Fatalf("AddRenderCallback failed: %v", err)
	}
	if err := m.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := m.SetOverfillFactor(1.5); !errors.Is(err, ErrProtocol) {
		t.Errorf("SetOverfillFactor after buffer creation = %v, want ErrProtocol", err)
	}
}

func TestClosedManagerRefusesWork(t *testing.T) {
	m, _, _ := newManager(t, nil)
	m.Close()

	if m.DoingOkay() {
		t.Error("closed manager reports okay")
	}
	if _, err := m.GetRenderInfo(RenderParams{}); !errors.Is(err, ErrNotOkay) {
		t.Errorf("GetRenderInfo on closed manager = %v, want ErrNotOkay", err)
	}
	if err := m.Render(); !errors.Is(err, ErrNotOkay) {
		t.Errorf("Render on closed manager = %v, want ErrNotOkay", err)
	}
}
