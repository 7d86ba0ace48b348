// Package backend abstracts the graphics API behind a single capability
// interface. The render manager core is backend-agnostic; only the
// final "draw distortion mesh with a texture matrix and present" step
// is implemented per API. Backends are selected by a closed enum at
// construction rather than through an inheritance hierarchy.
package backend

import (
	"fmt"
	"time"

	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Kind selects a backend implementation.
type Kind int

const (
	// KindOpenGL renders through an OpenGL 4.1 core context.
	KindOpenGL Kind = iota
	// KindMock records calls without touching a GPU; used by tests.
	KindMock
)

// TimingInfo describes where the display is in its refresh cycle.
type TimingInfo struct {
	// HardwareInterval is the display refresh period.
	HardwareInterval time.Duration
	// TimeSinceLastRetrace is how long ago the last vsync happened.
	TimeSinceLastRetrace time.Duration
	// TimeUntilNextPresentRequired is how long a present may still be
	// deferred and make the next retrace.
	TimeUntilNextPresentRequired time.Duration
}

// RenderTarget is an offscreen color target (with implicit depth) owned
// by the backend. The core only references targets; it never destroys
// them while a frame using them may still be warped.
type RenderTarget struct {
	// Handle identifies the target to its backend (an FBO name for
	// OpenGL).
	Handle uintptr
	// Texture is the color attachment sampled during distortion.
	Texture uintptr
	Width   int
	Height  int
}

// Conventions captures per-backend texture-space differences the
// time-warp matrix must respect.
type Conventions struct {
	// FlipY is set when the backend's texture origin is top-left.
	FlipY bool
	// TransposeTextureMatrix is set when the backend consumes row-major
	// matrices.
	TransposeTextureMatrix bool
}

// Backend is the capability interface the core renders through.
type Backend interface {
	// CreateTarget allocates an offscreen render target.
	CreateTarget(width, height int) (*RenderTarget, error)

	// BindTarget makes a target the current draw destination; nil binds
	// the window surface.
	BindTarget(t *RenderTarget) error

	// SetViewport restricts drawing to a pixel rectangle of the bound
	// target.
	SetViewport(v projection.Viewport)

	// DrawMesh draws a distortion mesh, transforming its per-channel
	// texture coordinates by texMatrix and sampling src.
	DrawMesh(m *distortion.Mesh, texMatrix math.Mat4, src *RenderTarget) error

	// Present flips the window surface to the display.
	Present() error

	// TimingInfo reports display timing; ok is false when the backend
	// has no timing source, in which case callers present immediately.
	TimingInfo() (TimingInfo, bool)

	// Conventions reports the backend's texture-space conventions.
	Conventions() Conventions

	// Close releases backend resources.
	Close()
}

// Surface is the window/display collaborator an OpenGL backend draws
// to. It is satisfied by the window package without either package
// importing the other's types.
type Surface interface {
	// Swap presents the back buffer, blocking on vsync when enabled.
	Swap()
	// RefreshInterval is the display refresh period; ok is false when
	// the windowing layer cannot determine it.
	RefreshInterval() (time.Duration, bool)
	// TimeSinceLastSwap is the time since Swap last returned.
	TimeSinceLastSwap() time.Duration
}

// New constructs a backend of the given kind. OpenGL requires a
// surface with a current GL context.
func New(kind Kind, surface Surface) (Backend, error) {
	switch kind {
	case KindOpenGL:
		return NewOpenGL(surface)
	case KindMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("backend: unknown kind %d", int(kind))
	}
}
