package backend

import (
	"fmt"
	"sync"

	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// DrawCall records one DrawMesh invocation on the mock.
type DrawCall struct {
	Mesh      *distortion.Mesh
	TexMatrix math.Mat4
	Src       *RenderTarget
	Viewport  projection.Viewport
	Target    *RenderTarget
}

// Mock is an in-memory Backend that records every call. Tests drive the
// presentation path against it and inspect what would have been drawn.
type Mock struct {
	mu sync.Mutex

	MockConventions Conventions

	// Timing returned by TimingInfo; nil means "no timing source".
	Timing *TimingInfo

	// FailCreate makes CreateTarget fail, for resource-error paths.
	FailCreate bool

	nextHandle uintptr
	targets    []*RenderTarget
	bound      *RenderTarget
	viewport   projection.Viewport
	draws      []DrawCall
	presents   int
}

// NewMock creates a mock backend with no timing source.
func NewMock() *Mock {
	return &Mock{nextHandle: 1}
}

// CreateTarget allocates a fake target.
func (m *Mock) CreateTarget(width, height int) (*RenderTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate {
		return nil, fmt.Errorf("mock: target creation disabled")
	}
	t := &RenderTarget{
		Handle:  m.nextHandle,
		Texture: m.nextHandle,
		Width:   width,
		Height:  height,
	}
	m.nextHandle++
	m.targets = append(m.targets, t)
	return t, nil
}

// BindTarget records the bound target.
func (m *Mock) BindTarget(t *RenderTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = t
	return nil
}

// SetViewport records the viewport.
func (m *Mock) SetViewport(v projection.Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = v
}

// DrawMesh records the call.
func (m *Mock) DrawMesh(mesh *distortion.Mesh, texMatrix math.Mat4, src *RenderTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draws = append(m.draws, DrawCall{
		Mesh:      mesh,
		TexMatrix: texMatrix,
		Src:       src,
		Viewport:  m.viewport,
		Target:    m.bound,
	})
	return nil
}

// Present counts presents.
func (m *Mock) Present() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presents++
	return nil
}

// TimingInfo returns the configured timing, if any.
func (m *Mock) TimingInfo() (TimingInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Timing == nil {
		return TimingInfo{}, false
	}
	return *m.Timing, true
}

// SetTiming installs (or clears) the timing source.
func (m *Mock) SetTiming(t *TimingInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timing = t
}

// Conventions returns the configured conventions.
func (m *Mock) Conventions() Conventions {
	return m.MockConventions
}

// Close is a no-op.
func (m *Mock) Close() {}

// Draws returns a copy of the recorded draw calls.
func (m *Mock) Draws() []DrawCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DrawCall, len(m.draws))
	copy(out, m.draws)
	return out
}

// Presents returns how many times Present was called.
func (m *Mock) Presents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presents
}

// Targets returns every target created so far.
func (m *Mock) Targets() []*RenderTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RenderTarget, len(m.targets))
	copy(out, m.targets)
	return out
}
