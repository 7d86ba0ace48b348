// Package window handles SDL2 window and OpenGL context creation and
// exposes the swap timing the presentation scheduler works against.
package window

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/logger"
)

func init() {
	// OpenGL calls must be made from the main thread
	runtime.LockOSThread()
}

// Config holds window configuration.
type Config struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool

	// DirectDisplay asks for a fullscreen window on the display whose
	// name matches one of DisplayPNPIDs, so the compositor never sees
	// headset frames. Falls back to a normal window when no display
	// matches.
	DirectDisplay bool
	DisplayPNPIDs []string
}

// Window wraps an SDL2 window and OpenGL context.
type Window struct {
	config    Config
	sdlWindow *sdl.Window
	glContext sdl.GLContext
	display   int

	mu       sync.Mutex
	lastSwap time.Time
}

// New creates a new window with OpenGL context.
func New(cfg Config) (*Window, error) {
	w := &Window{
		config:  cfg,
		display: 0,
	}

	logger.Info("initializing SDL2")
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	// OpenGL 4.1 Core Profile (max supported on macOS)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 4)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 1)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	sdl.GLSetAttribute(sdl.GL_DOUBLEBUFFER, 1)
	sdl.GLSetAttribute(sdl.GL_DEPTH_SIZE, 24)

	fullscreen := cfg.Fullscreen
	x, y := int32(sdl.WINDOWPOS_CENTERED), int32(sdl.WINDOWPOS_CENTERED)
	if cfg.DirectDisplay {
		if d, ok := findDisplay(cfg.DisplayPNPIDs); ok {
			w.display = d
			fullscreen = true
			x = int32(sdl.WINDOWPOS_CENTERED_MASK) | int32(d)
			y = int32(sdl.WINDOWPOS_CENTERED_MASK) | int32(d)
		} else {
			logger.Warn("no display matched the configured panel identifiers, using a window",
				zap.Strings("pnp_ids", cfg.DisplayPNPIDs),
			)
		}
	}

	flags := uint32(sdl.WINDOW_OPENGL)
	if fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN
	} else {
		flags |= sdl.WINDOW_RESIZABLE
	}

	var err error
	w.sdlWindow, err = sdl.CreateWindow(cfg.Title, x, y, int32(cfg.Width), int32(cfg.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	w.glContext, err = w.sdlWindow.GLCreateContext()
	if err != nil {
		w.sdlWindow.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	if cfg.VSync {
		if err := sdl.GLSetSwapInterval(1); err != nil {
			logger.Warn("failed to enable VSync", zap.Error(err))
		}
	} else {
		sdl.GLSetSwapInterval(0)
	}

	logger.Info("window created",
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Bool("fullscreen", fullscreen),
		zap.Bool("vsync", cfg.VSync),
		zap.Int("display", w.display),
	)

	return w, nil
}

// findDisplay scans connected displays for one whose name carries any
// of the given panel identifiers.
func findDisplay(pnpIDs []string) (int, bool) {
	n, err := sdl.GetNumVideoDisplays()
	if err != nil {
		return 0, false
	}
	for d := 0; d < n; d++ {
		name, err := sdl.GetDisplayName(d)
		if err != nil {
			continue
		}
		for _, id := range pnpIDs {
			if id != "" && strings.Contains(strings.ToUpper(name), strings.ToUpper(id)) {
				logger.Info("found headset display",
					zap.Int("display", d),
					zap.String("name", name),
				)
				return d, true
			}
		}
	}
	return 0, false
}

// Close destroys the window and cleans up SDL2.
func (w *Window) Close() {
	logger.Info("closing window")

	if w.glContext != nil {
		sdl.GLDeleteContext(w.glContext)
	}
	if w.sdlWindow != nil {
		w.sdlWindow.Destroy()
	}

	sdl.Quit()
}

// Swap presents the back buffer. With vsync enabled this blocks until
// the retrace, which is what keys the scheduler's timing estimates.
func (w *Window) Swap() {
	w.sdlWindow.GLSwap()
	w.mu.Lock()
	w.lastSwap = time.Now()
	w.mu.Unlock()
}

// RefreshInterval reports the refresh period of the display the window
// sits on.
func (w *Window) RefreshInterval() (time.Duration, bool) {
	mode, err := sdl.GetCurrentDisplayMode(w.display)
	if err != nil || mode.RefreshRate <= 0 {
		return 0, false
	}
	return time.Duration(float64(time.Second) / float64(mode.RefreshRate)), true
}

// TimeSinceLastSwap is the time since Swap last returned. Before the
// first swap it reports a very large duration.
func (w *Window) TimeSinceLastSwap() time.Duration {
	w.mu.Lock()
	last := w.lastSwap
	w.mu.Unlock()
	if last.IsZero() {
		return time.Hour
	}
	return time.Since(last)
}

// GetSize returns the current window size.
func (w *Window) GetSize() (int, int) {
	width, height := w.sdlWindow.GetSize()
	return int(width), int(height)
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) {
	w.sdlWindow.SetTitle(title)
}

// PollQuit drains pending SDL events and reports whether a quit was
// requested (window close or Escape).
func PollQuit() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return true
			}
		}
	}
	return false
}
