package backend

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Harnessed wraps another backend and logs every call with its
// duration. Useful when diagnosing present-loop stalls: enable it with
// the -harness flag and watch for draws or swaps that blow past the
// frame budget.
type Harnessed struct {
	inner Backend
}

// Harness wraps b. The wrapper owns b and closes it on Close.
func Harness(b Backend) *Harnessed {
	return &Harnessed{inner: b}
}

func (h *Harnessed) CreateTarget(width, height int) (*RenderTarget, error) {
	start := time.Now()
	t, err := h.inner.CreateTarget(width, height)
	logger.Debug("backend.CreateTarget",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return t, err
}

func (h *Harnessed) BindTarget(t *RenderTarget) error {
	err := h.inner.BindTarget(t)
	if err != nil {
		logger.Warn("backend.BindTarget failed", zap.Error(err))
	}
	return err
}

func (h *Harnessed) SetViewport(v projection.Viewport) {
	h.inner.SetViewport(v)
}

func (h *Harnessed) DrawMesh(m *distortion.Mesh, texMatrix math.Mat4, src *RenderTarget) error {
	start := time.Now()
	err := h.inner.DrawMesh(m, texMatrix, src)
	logger.Debug("backend.DrawMesh",
		zap.Int("vertices", len(m.Vertices)),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return err
}

func (h *Harnessed) Present() error {
	start := time.Now()
	err := h.inner.Present()
	logger.Debug("backend.Present",
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return err
}

func (h *Harnessed) TimingInfo() (TimingInfo, bool) {
	info, ok := h.inner.TimingInfo()
	if !ok {
		logger.Debug("backend.TimingInfo unavailable")
	}
	return info, ok
}

func (h *Harnessed) Conventions() Conventions {
	return h.inner.Conventions()
}

func (h *Harnessed) Close() {
	h.inner.Close()
}
