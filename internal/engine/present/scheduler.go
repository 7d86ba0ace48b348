// Package present owns the presentation side of rendering: it receives
// finished frames from the render thread through alternating-ownership
// handoffs, re-warps the most recent one against the latest head pose,
// and pushes it to the display just before each vsync.
package present

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/engine/backend"
	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/handoff"
	"github.com/Faultbox/asgard-vr/internal/engine/pose"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/internal/engine/timewarp"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Frame is one delivered set of eye buffers plus the views they were
// rendered with, which the warp needs to know how stale they are.
type Frame struct {
	Targets []*backend.RenderTarget
	Views   []timewarp.View

	// Space the views were composed in; current views at present time
	// are composed in the same space.
	Space string
}

// slot is one half of the double buffer.
type slot struct {
	hand  *handoff.Handoff
	frame Frame
}

// Scheduler double-buffers frames between the render side and a
// presenter. In asynchronous mode the presenter runs on its own
// goroutine and re-warps the held frame every refresh even when no new
// frame arrives; in synchronous mode presentation happens inline on
// the delivering goroutine.
type Scheduler struct {
	backend  backend.Backend
	cfg      config.TimeWarpConfig
	client   tracking.Client
	composer *pose.Composer
	dist     *distortion.Engine
	builder  *projection.Builder
	calc     *timewarp.Calculator
	numEyes  int

	slots     [2]*slot
	renderIdx int

	mu     sync.Mutex
	cond   *sync.Cond
	latest int // slot index of the newest delivered frame, -1 before any
	gen    uint64
	okay   bool
	quit   bool

	held    int // slot the presenter currently owns, -1 for none
	lastGen uint64

	done chan struct{}
}

// Options collects the collaborators a scheduler presents with.
type Options struct {
	Backend    backend.Backend
	Client     tracking.Client
	Composer   *pose.Composer
	Distortion *distortion.Engine
	Builder    *projection.Builder
	NumEyes    int
	TimeWarp   config.TimeWarpConfig
}

// New creates a scheduler. In asynchronous mode the presenter
// goroutine starts immediately and idles until the first delivery.
// Note the backend is called from that goroutine, so an OpenGL
// backend needs a context current on it (or synchronous mode).
func New(o Options) *Scheduler {
	conv := o.Backend.Conventions()
	s := &Scheduler{
		backend:  o.Backend,
		cfg:      o.TimeWarp,
		client:   o.Client,
		composer: o.Composer,
		dist:     o.Distortion,
		builder:  o.Builder,
		calc:     timewarp.NewCalculator(o.NumEyes, conv.FlipY, conv.TransposeTextureMatrix),
		numEyes:  o.NumEyes,
		latest:   -1,
		held:     -1,
		okay:     true,
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.slots {
		s.slots[i] = &slot{hand: handoff.New(handoff.OwnerRenderer)}
	}

	if s.cfg.Enabled && s.cfg.Asynchronous {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

// DoingOkay reports whether the scheduler is still healthy. A handoff
// timeout or present failure latches it false.
func (s *Scheduler) DoingOkay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.okay
}

// Deliver hands a finished frame to the presenter. It blocks only if
// both slots are somehow unavailable, which the alternating protocol
// prevents in normal operation; a timeout there is fatal.
func (s *Scheduler) Deliver(f Frame) error {
	if !s.DoingOkay() {
		return handoff.ErrTimeout
	}

	sl := s.slots[s.renderIdx]
	if err := sl.hand.Acquire(handoff.OwnerRenderer, handoff.DefaultTimeout); err != nil {
		logger.Error("render side could not reacquire its buffer slot",
			zap.Int("slot", s.renderIdx),
			zap.Error(err),
		)
		s.fail()
		return err
	}
	sl.frame = f
	if err := sl.hand.Release(handoff.OwnerRenderer); err != nil {
		s.fail()
		return err
	}

	s.mu.Lock()
	s.latest = s.renderIdx
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
	s.renderIdx = 1 - s.renderIdx

	if !s.cfg.Enabled || !s.cfg.Asynchronous {
		return s.presentCycle()
	}
	return nil
}

// Close stops the presenter, returns any held slot, and leaves the
// backend to its owner.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.quit = true
	s.mu.Unlock()
	s.cond.Broadcast()
	<-s.done

	if s.held >= 0 {
		if err := s.slots[s.held].hand.Release(handoff.OwnerPresenter); err != nil {
			logger.Warn("releasing held slot on close", zap.Error(err))
		}
		s.held = -1
	}
}

func (s *Scheduler) fail() {
	s.mu.Lock()
	s.okay = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// run is the asynchronous presenter loop.
func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.latest < 0 && !s.quit && s.okay {
			s.cond.Wait()
		}
		stop := s.quit || !s.okay
		s.mu.Unlock()
		if stop {
			return
		}

		if err := s.presentCycle(); err != nil {
			logger.Error("presentation cycle failed, stopping presenter", zap.Error(err))
			s.fail()
			return
		}

		if !s.waitForNextCycle() {
			return
		}
	}
}

// waitForNextCycle blocks until the next present should start: within
// MaxMsBeforeVsync of the next required present when the backend can
// estimate timing, or when a new frame arrives if it cannot. Returns
// false when the scheduler is shutting down.
func (s *Scheduler) waitForNextCycle() bool {
	threshold := time.Duration(s.cfg.MaxMsBeforeVsync * float32(time.Millisecond))
	for {
		s.mu.Lock()
		if s.quit || !s.okay {
			s.mu.Unlock()
			return false
		}
		gen := s.gen
		s.mu.Unlock()

		if gen != s.lastGen {
			return true
		}

		info, ok := s.backend.TimingInfo()
		if !ok {
			// No timing source: nothing to pace against, so wait for
			// the next delivery instead of spinning on re-warps.
			s.mu.Lock()
			for s.gen == gen && !s.quit && s.okay {
				s.cond.Wait()
			}
			stop := s.quit || !s.okay
			s.mu.Unlock()
			return !stop
		}

		remaining := info.TimeUntilNextPresentRequired
		if remaining <= threshold {
			return true
		}
		sleep := remaining - threshold
		if sleep > time.Millisecond {
			sleep = time.Millisecond
		}
		time.Sleep(sleep)
	}
}

// presentCycle takes the newest frame, warps it against the present-time
// head pose, and pushes it to the display.
func (s *Scheduler) presentCycle() error {
	s.mu.Lock()
	target := s.latest
	gen := s.gen
	s.mu.Unlock()

	if target != s.held {
		if err := s.slots[target].hand.Acquire(handoff.OwnerPresenter, handoff.DefaultTimeout); err != nil {
			logger.Error("presenter could not acquire the delivered slot",
				zap.Int("slot", target),
				zap.Error(err),
			)
			s.fail()
			return err
		}
		if s.held >= 0 {
			if err := s.slots[s.held].hand.Release(handoff.OwnerPresenter); err != nil {
				s.fail()
				return err
			}
		}
		s.held = target
	}
	s.lastGen = gen

	// A slot delivered while we were busy and already superseded is
	// pending to us; bounce it straight back so the render side never
	// stalls waiting for a frame nobody will show. Never bounce the
	// newest slot, the next cycle will take it over the held one.
	s.mu.Lock()
	newest := s.latest
	s.mu.Unlock()
	for i, sl := range s.slots {
		if i != s.held && i != newest && sl.hand.TryAcquire(handoff.OwnerPresenter) {
			if err := sl.hand.Release(handoff.OwnerPresenter); err != nil {
				s.fail()
				return err
			}
		}
	}

	frame := s.slots[s.held].frame
	matrices := s.warpMatrices(frame)

	for eye := 0; eye < s.numEyes && eye < len(frame.Targets); eye++ {
		if err := s.backend.BindTarget(nil); err != nil {
			return err
		}
		s.backend.SetViewport(s.builder.PresentViewport(eye))
		if err := s.backend.DrawMesh(s.dist.Mesh(eye), matrices[eye], frame.Targets[eye]); err != nil {
			return err
		}
	}
	return s.backend.Present()
}

// warpMatrices computes per-eye texture matrices for the frame, or
// identity matrices when warping is disabled or the current pose is
// unavailable.
func (s *Scheduler) warpMatrices(frame Frame) []math.Mat4 {
	identity := make([]math.Mat4, s.numEyes)
	for i := range identity {
		identity[i] = math.Identity()
	}
	if !s.cfg.Enabled || len(frame.Views) != s.numEyes {
		return identity
	}

	if err := s.client.Update(); err != nil {
		logger.Warn("tracking update failed before warp", zap.Error(err))
		return identity
	}

	timeUntil := time.Duration(0)
	if info, ok := s.backend.TimingInfo(); ok {
		timeUntil = info.TimeUntilNextPresentRequired
	}

	space := frame.Space
	if space == "" {
		space = tracking.WorldSpace
	}
	current := make([]timewarp.View, s.numEyes)
	for eye := 0; eye < s.numEyes; eye++ {
		eyeFromSpace, ok := s.composer.EyeFromSpace(space, eye, pose.Params{TimeUntilPresent: timeUntil})
		if !ok {
			return identity
		}
		current[eye] = timewarp.View{
			SpaceFromEye: eyeFromSpace.Invert(),
			Frustum:      frame.Views[eye].Frustum,
		}
	}

	matrices, ok := s.calc.Compute(frame.Views, current, s.cfg.AssumedDepthMeters)
	if !ok {
		return identity
	}
	return matrices
}
