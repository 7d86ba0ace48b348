package backend

import (
	"testing"
	"time"

	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

func TestNewMockKind(t *testing.T) {
	b, err := New(KindMock, nil)
	if err != nil {
		t.Fatalf("New(KindMock) failed: %v", err)
	}
	if _, ok := b.(*Mock); !ok {
		t.Fatalf("New(KindMock) returned %T, want *Mock", b)
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(Kind(99), nil); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestMockRecordsDraws(t *testing.T) {
	m := NewMock()

	target, err := m.CreateTarget(640, 480)
	if err != nil {
		t.Fatalf("CreateTarget failed: %v", err)
	}
	if target.Width != 640 || target.Height != 480 {
		t.Fatalf("target size = %dx%d, want 640x480", target.Width, target.Height)
	}

	if err := m.BindTarget(nil); err != nil {
		t.Fatalf("BindTarget(nil) failed: %v", err)
	}
	vp := projection.Viewport{Left: 10, Lower: 20, Width: 320, Height: 240}
	m.SetViewport(vp)

	mesh := &distortion.Mesh{Vertices: make([]distortion.Vertex, 6)}
	if err := m.DrawMesh(mesh, math.Identity(), target); err != nil {
		t.Fatalf("DrawMesh failed: %v", err)
	}
	if err := m.Present(); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	draws := m.Draws()
	if len(draws) != 1 {
		t.Fatalf("recorded %d draws, want 1", len(draws))
	}
	if draws[0].Mesh != mesh || draws[0].Src != target {
		t.Error("draw did not record the mesh and source it was given")
	}
	if draws[0].Viewport != vp {
		t.Errorf("draw viewport = %+v, want %+v", draws[0].Viewport, vp)
	}
	if draws[0].Target != nil {
		t.Errorf("draw target = %+v, want window surface (nil)", draws[0].Target)
	}
	if m.Presents() != 1 {
		t.Errorf("Presents() = %d, want 1", m.Presents())
	}
}

func TestMockTiming(t *testing.T) {
	m := NewMock()
	if _, ok := m.TimingInfo(); ok {
		t.Fatal("mock without timing source reported timing info")
	}
	m.SetTiming(&TimingInfo{
		HardwareInterval:             16 * time.Millisecond,
		TimeUntilNextPresentRequired: 4 * time.Millisecond,
	})
	info, ok := m.TimingInfo()
	if !ok {
		t.Fatal("mock with timing source reported no timing info")
	}
	if info.HardwareInterval != 16*time.Millisecond {
		t.Errorf("HardwareInterval = %v, want 16ms", info.HardwareInterval)
	}
}

func TestHarnessForwards(t *testing.T) {
	m := NewMock()
	m.MockConventions = Conventions{FlipY: true}
	var b Backend = Harness(m)

	target, err := b.CreateTarget(100, 100)
	if err != nil {
		t.Fatalf("CreateTarget through harness failed: %v", err)
	}
	mesh := &distortion.Mesh{Vertices: make([]distortion.Vertex, 3)}
	if err := b.DrawMesh(mesh, math.Identity(), target); err != nil {
		t.Fatalf("DrawMesh through harness failed: %v", err)
	}
	if err := b.Present(); err != nil {
		t.Fatalf("Present through harness failed: %v", err)
	}

	if len(m.Draws()) != 1 || m.Presents() != 1 {
		t.Errorf("harness did not forward calls: draws=%d presents=%d", len(m.Draws()), m.Presents())
	}
	if !b.Conventions().FlipY {
		t.Error("harness did not forward conventions")
	}
}
