// Package demo runs the stereo cube sample: a spinning cube rendered
// through the full pipeline with a synthetic head pose, so the whole
// stack can be exercised without a tracker attached.
package demo

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/engine/backend"
	"github.com/Faultbox/asgard-vr/internal/engine/window"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/internal/rendermanager"
	"github.com/Faultbox/asgard-vr/internal/tracking"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Demo owns the window, backend, manager and sample scene.
type Demo struct {
	cfg     *config.Config
	window  *window.Window
	backend backend.Backend
	client  *tracking.StaticClient
	manager *rendermanager.Manager
	cube    *cubeRenderer
}

// New builds the demo. harness wraps the backend with per-call logging.
func New(cfg *config.Config, harness bool) (*Demo, error) {
	// The GL context lives on this thread, so presentation has to
	// happen inline rather than on the scheduler's goroutine.
	if cfg.TimeWarp.Asynchronous {
		logger.Info("presenting synchronously: the OpenGL context is bound to the render thread")
		cfg.TimeWarp.Asynchronous = false
	}

	win, err := window.New(window.Config{
		Title:         "Asgard VR Cube",
		Width:         cfg.Display.Width,
		Height:        cfg.Display.Height,
		Fullscreen:    cfg.Display.Fullscreen,
		VSync:         cfg.Display.VSync,
		DirectDisplay: cfg.DirectMode.Enabled,
		DisplayPNPIDs: cfg.DirectMode.VendorPNPIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	b, err := backend.New(backend.KindOpenGL, win)
	if err != nil {
		win.Close()
		return nil, err
	}
	if harness {
		b = backend.Harness(b)
	}

	client := tracking.NewStaticClient()
	client.SetPose(tracking.HeadSpace, math.PoseIdentity())

	manager, err := rendermanager.New(cfg, b, client)
	if err != nil {
		b.Close()
		win.Close()
		return nil, err
	}

	cube, err := newCubeRenderer()
	if err != nil {
		manager.Close()
		b.Close()
		win.Close()
		return nil, err
	}

	return &Demo{
		cfg:     cfg,
		window:  win,
		backend: b,
		client:  client,
		manager: manager,
		cube:    cube,
	}, nil
}

// Run loops until quit, driving a slow synthetic head sway so the
// pose chain and time warp have something to chew on.
func (d *Demo) Run() error {
	start := time.Now()
	var spin float32

	err := d.manager.AddRenderCallback(tracking.WorldSpace, func(info rendermanager.RenderInfo) error {
		model := math.Translate(0, 0, -2).Mul(math.RotateY(spin)).Mul(math.RotateX(spin * 0.7))
		return d.cube.draw(info, model)
	})
	if err != nil {
		return err
	}

	logger.Info("starting demo loop")
	frames := 0
	fpsTimer := time.Now()

	for {
		if window.PollQuit() {
			logger.Info("quit requested")
			return nil
		}
		if !d.manager.DoingOkay() {
			return fmt.Errorf("demo: render manager became unhealthy")
		}

		t := float32(time.Since(start).Seconds())
		spin = t * 0.8
		yaw := 0.25 * math32.Sin(t*0.4)
		d.client.SetPose(tracking.HeadSpace, math.Pose{
			Orientation: math.QuatFromAxisAngle(math.Vec3{Y: 1}, yaw),
			Position:    math.Vec3{Y: 1.6},
		})

		if err := d.manager.Render(); err != nil {
			return err
		}

		frames++
		if time.Since(fpsTimer) >= 5*time.Second {
			logger.Debug("demo running",
				zap.Float64("fps", float64(frames)/time.Since(fpsTimer).Seconds()),
			)
			frames = 0
			fpsTimer = time.Now()
		}
	}
}

// Close tears the pipeline down in reverse construction order.
func (d *Demo) Close() {
	d.manager.Close()
	d.cube.close()
	d.backend.Close()
	d.window.Close()
}
