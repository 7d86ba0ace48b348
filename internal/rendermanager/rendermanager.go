// Package rendermanager is the application-facing entry point. It owns
// the per-eye viewports and projections, pose composition, distortion
// correction and the presentation scheduler, and exposes two mutually
// exclusive rendering protocols: callback-driven rendering into
// manager-owned buffers, or presentation of application-owned buffers.
package rendermanager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/engine/backend"
	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/pose"
	"github.com/Faultbox/asgard-vr/internal/engine/present"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/internal/engine/timewarp"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// ErrNotOkay is returned by every operation once the manager has
// latched into an unhealthy state.
var ErrNotOkay = errors.New("rendermanager: not in a usable state")

// ErrProtocol is returned when the callback and buffer protocols are
// mixed, or buffer calls arrive out of order.
var ErrProtocol = errors.New("rendermanager: protocol violation")

// RenderInfo is everything an application needs to render one eye:
// where to draw, from where, and with what projection.
type RenderInfo struct {
	// Viewport within the render target, already scaled for overfill
	// and oversampling.
	Viewport projection.Viewport

	// Pose of the viewpoint (space-from-eye): the eye's position and
	// orientation expressed in the requested space.
	Pose math.Pose

	// Projection frustum for the eye; call Matrix for the clip
	// transform.
	Projection projection.Frustum
}

// RenderParams selects the space and prediction inputs for one frame's
// render info.
type RenderParams struct {
	// Space the application renders in; empty means world space.
	Space string

	// RoomFromHeadOverride replaces tracked head data when non-nil.
	RoomFromHeadOverride *math.Pose

	// Near/far clip planes; zero values fall back to the configured
	// defaults.
	NearClipMeters float32
	FarClipMeters  float32
}

// Callback renders one eye's view of one space.
type Callback func(info RenderInfo) error

type registeredCallback struct {
	space string
	fn    Callback
}

type protocol int

const (
	protocolNone protocol = iota
	protocolCallback
	protocolBuffers
)

// Manager ties the pipeline together. All exported methods are safe
// for concurrent use, serialized by one mutex the way a single device
// context would serialize them.
type Manager struct {
	mu sync.Mutex

	cfg      *config.Config
	backend  backend.Backend
	client   tracking.Client
	composer *pose.Composer
	builder  *projection.Builder
	dist     *distortion.Engine
	sched    *present.Scheduler

	mode      protocol
	callbacks []registeredCallback

	// Callback protocol: manager-owned eye buffers, created on first
	// Render.
	ownTargets []*backend.RenderTarget

	// Buffer protocol: application-registered buffers.
	appTargets []*backend.RenderTarget

	okay   bool
	closed bool
}

// New wires a manager around an already-initialized backend and
// tracking client.
func New(cfg *config.Config, b backend.Backend, client tracking.Client) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rendermanager: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		backend:  b,
		client:   client,
		composer: pose.NewComposer(client, cfg.Display, cfg.Prediction),
		builder:  projection.NewBuilder(cfg.Display, cfg.Rendering),
		dist:     distortion.NewEngine(cfg.Display.NumEyes, cfg.Rendering.OverfillFactor, cfg.Distortion.DesiredTriangles),
		okay:     true,
	}

	if cfg.Distortion.Type != "" {
		params := make([]distortion.Parameters, cfg.Display.NumEyes)
		for eye := range params {
			p, err := distortion.FromConfig(cfg.Distortion, cfg.Display, eye)
			if err != nil {
				return nil, fmt.Errorf("rendermanager: distortion for eye %d: %w", eye, err)
			}
			params[eye] = p
		}
		if !m.dist.SetParameters(distortion.MeshTypeSquare, params) {
			return nil, errors.New("rendermanager: configured distortion parameters rejected")
		}
	}

	m.sched = present.New(present.Options{
		Backend:    b,
		Client:     client,
		Composer:   m.composer,
		Distortion: m.dist,
		Builder:    m.builder,
		NumEyes:    cfg.Display.NumEyes,
		TimeWarp:   cfg.TimeWarp,
	})

	logger.Info("render manager ready",
		zap.Int("eyes", cfg.Display.NumEyes),
		zap.Float32("overfill", cfg.Rendering.OverfillFactor),
		zap.Bool("time_warp", cfg.TimeWarp.Enabled),
		zap.Bool("async", cfg.TimeWarp.Asynchronous),
	)
	return m, nil
}

// DoingOkay reports whether the manager and its presenter are healthy.
func (m *Manager) DoingOkay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy()
}

func (m *Manager) healthy() bool {
	if m.okay && m.sched != nil && !m.sched.DoingOkay() {
		m.okay = false
	}
	return m.okay && !m.closed
}

// SetRoomFromWorld installs the transform placing the tracked room in
// the application's world, applied when rendering world space.
func (m *Manager) SetRoomFromWorld(p math.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.composer.SetRoomFromWorld(p)
}

// GetRenderInfo returns one RenderInfo per eye for the coming frame.
// Eyes whose pose cannot be composed this frame are skipped, so the
// slice may be shorter than the eye count.
func (m *Manager) GetRenderInfo(p RenderParams) ([]RenderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return nil, ErrNotOkay
	}
	if err := m.client.Update(); err != nil {
		return nil, fmt.Errorf("rendermanager: tracking update: %w", err)
	}
	return m.renderInfoLocked(p)
}

func (m *Manager) renderInfoLocked(p RenderParams) ([]RenderInfo, error) {
	near, far := p.NearClipMeters, p.FarClipMeters
	if near <= 0 {
		near = m.cfg.Rendering.NearClipMeters
	}
	if far <= 0 {
		far = m.cfg.Rendering.FarClipMeters
	}

	params := pose.Params{
		RoomFromHeadOverride: p.RoomFromHeadOverride,
		TimeUntilPresent:     m.timeUntilPresent(),
	}

	infos := make([]RenderInfo, 0, m.cfg.Display.NumEyes)
	for eye := 0; eye < m.cfg.Display.NumEyes; eye++ {
		frustum, ok := m.builder.Frustum(eye, near, far)
		if !ok {
			return nil, fmt.Errorf("rendermanager: no valid frustum for eye %d", eye)
		}
		eyeFromSpace, ok := m.composer.EyeFromSpace(p.Space, eye, params)
		if !ok {
			logger.Warn("skipping eye with unreadable pose",
				zap.Int("eye", eye),
				zap.String("space", p.Space),
			)
			continue
		}
		infos = append(infos, RenderInfo{
			Viewport:   m.builder.RenderViewport(eye),
			Pose:       eyeFromSpace.Invert(),
			Projection: frustum,
		})
	}
	return infos, nil
}

func (m *Manager) timeUntilPresent() time.Duration {
	if info, ok := m.backend.TimingInfo(); ok {
		return info.TimeUntilNextPresentRequired
	}
	return 0
}

// AddRenderCallback registers a callback rendering the given space.
// Callbacks run in registration order on every Render. The callback
// protocol excludes the buffer protocol for the manager's lifetime.
func (m *Manager) AddRenderCallback(space string, fn Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return ErrNotOkay
	}
	if m.mode == protocolBuffers {
		return fmt.Errorf("%w: render callbacks cannot be mixed with registered buffers", ErrProtocol)
	}
	m.mode = protocolCallback
	m.callbacks = append(m.callbacks, registeredCallback{space: space, fn: fn})
	return nil
}

// RemoveRenderCallback removes the first registered callback for the
// space. It reports whether one was found.
func (m *Manager) RemoveRenderCallback(space string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cb := range m.callbacks {
		if cb.space == space {
			m.callbacks = append(m.callbacks[:i], m.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

// Render runs one frame of the callback protocol: updates tracking,
// renders every callback into the manager's eye buffers, and hands the
// frame to the presenter.
func (m *Manager) Render() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return ErrNotOkay
	}
	if m.mode != protocolCallback {
		return fmt.Errorf("%w: Render requires registered render callbacks", ErrProtocol)
	}
	if err := m.ensureOwnTargetsLocked(); err != nil {
		return err
	}
	if err := m.client.Update(); err != nil {
		return fmt.Errorf("rendermanager: tracking update: %w", err)
	}

	views := make([]timewarp.View, m.cfg.Display.NumEyes)
	params := pose.Params{TimeUntilPresent: m.timeUntilPresent()}

	for eye := 0; eye < m.cfg.Display.NumEyes; eye++ {
		if err := m.backend.BindTarget(m.ownTargets[eye]); err != nil {
			return err
		}
		vp := m.builder.RenderViewport(eye)
		m.backend.SetViewport(vp)

		frustum, ok := m.builder.Frustum(eye, m.cfg.Rendering.NearClipMeters, m.cfg.Rendering.FarClipMeters)
		if !ok {
			return fmt.Errorf("rendermanager: no valid frustum for eye %d", eye)
		}

		for _, cb := range m.callbacks {
			eyeFromSpace, ok := m.composer.EyeFromSpace(cb.space, eye, params)
			if !ok {
				continue
			}
			info := RenderInfo{
				Viewport:   vp,
				Pose:       eyeFromSpace.Invert(),
				Projection: frustum,
			}
			if err := cb.fn(info); err != nil {
				return fmt.Errorf("rendermanager: render callback for space %q: %w", cb.space, err)
			}
			if cb.space == tracking.WorldSpace {
				views[eye] = timewarp.View{SpaceFromEye: info.Pose, Frustum: frustum}
			}
		}
		if views[eye].Frustum == (projection.Frustum{}) {
			// No world-space callback rendered this eye; warp against
			// the plain head chain instead.
			eyeFromSpace, ok := m.composer.EyeFromSpace(tracking.WorldSpace, eye, params)
			if !ok {
				eyeFromSpace = math.PoseIdentity()
			}
			views[eye] = timewarp.View{SpaceFromEye: eyeFromSpace.Invert(), Frustum: frustum}
		}
	}

	return m.deliverLocked(m.ownTargets, views, tracking.WorldSpace)
}

func (m *Manager) ensureOwnTargetsLocked() error {
	if m.ownTargets != nil {
		return nil
	}
	targets := make([]*backend.RenderTarget, m.cfg.Display.NumEyes)
	for eye := range targets {
		vp := m.builder.RenderViewport(eye)
		t, err := m.backend.CreateTarget(vp.Width, vp.Height)
		if err != nil {
			return fmt.Errorf("rendermanager: eye buffer %d: %w", eye, err)
		}
		targets[eye] = t
		logger.Debug("eye buffer created",
			zap.Int("eye", eye),
			zap.Int("width", vp.Width),
			zap.Int("height", vp.Height),
		)
	}
	m.ownTargets = targets
	return nil
}

// RegisterRenderBuffers registers application-owned eye buffers, one
// per eye, for the buffer protocol. Registration happens once; calling
// it again with the same buffers is a no-op and with different buffers
// an error.
func (m *Manager) RegisterRenderBuffers(buffers []*backend.RenderTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return ErrNotOkay
	}
	if m.mode == protocolCallback {
		return fmt.Errorf("%w: registered buffers cannot be mixed with render callbacks", ErrProtocol)
	}
	if len(buffers) != m.cfg.Display.NumEyes {
		return fmt.Errorf("rendermanager: registered %d buffers for %d eyes", len(buffers), m.cfg.Display.NumEyes)
	}
	if m.appTargets != nil {
		if sameTargets(m.appTargets, buffers) {
			return nil
		}
		return fmt.Errorf("%w: render buffers are already registered", ErrProtocol)
	}
	m.mode = protocolBuffers
	m.appTargets = append([]*backend.RenderTarget(nil), buffers...)
	return nil
}

func sameTargets(a, b []*backend.RenderTarget) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PresentRenderBuffers hands the registered buffers to the presenter,
// tagged with the poses they were rendered at. infos must line up with
// GetRenderInfo's result for the frame.
func (m *Manager) PresentRenderBuffers(infos []RenderInfo, space string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return ErrNotOkay
	}
	if m.mode != protocolBuffers || m.appTargets == nil {
		return fmt.Errorf("%w: PresentRenderBuffers requires registered buffers", ErrProtocol)
	}
	if len(infos) != m.cfg.Display.NumEyes {
		return fmt.Errorf("rendermanager: %d render infos for %d eyes", len(infos), m.cfg.Display.NumEyes)
	}

	views := make([]timewarp.View, len(infos))
	for eye, info := range infos {
		views[eye] = timewarp.View{SpaceFromEye: info.Pose, Frustum: info.Projection}
	}
	return m.deliverLocked(m.appTargets, views, space)
}

func (m *Manager) deliverLocked(targets []*backend.RenderTarget, views []timewarp.View, space string) error {
	err := m.sched.Deliver(present.Frame{Targets: targets, Views: views, Space: space})
	if err != nil {
		m.okay = false
	}
	return err
}

// SetOverfillFactor replaces the configured overfill factor,
// rescaling render viewports and invalidating cached distortion
// meshes. Eye buffers are sized from the overfill at creation, so it
// can only change while no buffers exist: before the first Render in
// the callback protocol, or before RegisterRenderBuffers in the
// buffer protocol.
func (m *Manager) SetOverfillFactor(overfill float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return ErrNotOkay
	}
	if overfill < 1 {
		return fmt.Errorf("rendermanager: overfill factor must be >= 1, got %g", overfill)
	}
	if m.ownTargets != nil || m.appTargets != nil {
		return fmt.Errorf("%w: overfill cannot change after eye buffers exist", ErrProtocol)
	}
	m.cfg.Rendering.OverfillFactor = overfill
	m.builder.SetOverfill(overfill)
	m.dist.SetOverfill(overfill)
	logger.Info("overfill factor changed", zap.Float32("overfill", overfill))
	return nil
}

// UpdateDistortionMeshes replaces the distortion parameters for all
// eyes, invalidating cached meshes. It reports whether the new
// parameters were accepted; on rejection the previous ones stay live.
func (m *Manager) UpdateDistortionMeshes(meshType distortion.MeshType, params []distortion.Parameters) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy() {
		return false
	}
	return m.dist.SetParameters(meshType, params)
}

// Close shuts down the presenter. The backend and tracking client stay
// with their owners.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.sched.Close()
	logger.Info("render manager closed")
}
