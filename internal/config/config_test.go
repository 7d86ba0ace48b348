package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Display.NumEyes != 2 {
		t.Errorf("expected 2 eyes, got %d", cfg.Display.NumEyes)
	}
	if cfg.Display.Width != 1920 || cfg.Display.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Display.HorizontalFOVDeg != 90 || cfg.Display.VerticalFOVDeg != 90 {
		t.Errorf("expected 90x90 FOV, got %gx%g", cfg.Display.HorizontalFOVDeg, cfg.Display.VerticalFOVDeg)
	}
	if cfg.Display.IPDMeters != 0.064 {
		t.Errorf("expected IPD 0.064, got %g", cfg.Display.IPDMeters)
	}
	if cfg.Rendering.OverfillFactor != 1.0 {
		t.Errorf("expected overfill 1.0, got %g", cfg.Rendering.OverfillFactor)
	}
	if !cfg.TimeWarp.Enabled || !cfg.TimeWarp.Asynchronous {
		t.Error("expected time warp enabled and asynchronous by default")
	}
	if cfg.TimeWarp.MaxMsBeforeVsync != 1 {
		t.Errorf("expected 1ms vsync threshold, got %g", cfg.TimeWarp.MaxMsBeforeVsync)
	}
	if cfg.Distortion.Type != "" {
		t.Errorf("expected no distortion by default, got %q", cfg.Distortion.Type)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestCenterOfProjectionFor(t *testing.T) {
	cfg := Default()
	cfg.Display.CenterOfProjection = [][2]float32{{0.47, 0.5}, {0.53, 0.5}}

	if got := cfg.Display.CenterOfProjectionFor(0); got != [2]float32{0.47, 0.5} {
		t.Errorf("eye 0 COP: got %v", got)
	}
	if got := cfg.Display.CenterOfProjectionFor(1); got != [2]float32{0.53, 0.5} {
		t.Errorf("eye 1 COP: got %v", got)
	}
	// Out of range falls back to screen center.
	if got := cfg.Display.CenterOfProjectionFor(2); got != [2]float32{0.5, 0.5} {
		t.Errorf("eye 2 COP fallback: got %v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	descriptor := `
display:
  width: 2160
  height: 1200
  num_eyes: 2
  horizontal_fov_deg: 110
  vertical_fov_deg: 110
  overlap_percent: 90
  rotation: 0
  ipd_meters: 0.063
  center_of_projection:
    - [0.471, 0.5]
    - [0.529, 0.5]
rendering:
  overfill_factor: 1.2
  oversample_factor: 2.0
distortion:
  type: rgb_symmetric_polynomials
  distance_scale: [1, 1]
  polynomial_red: [0, 1, 0.32]
  polynomial_green: [0, 1, 0.35]
  polynomial_blue: [0, 1, 0.38]
time_warp:
  max_ms_before_vsync: 2
`
	path := filepath.Join(tempDir, "display.yaml")
	if err := os.WriteFile(path, []byte(descriptor), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("failed to load descriptor: %v", err)
	}

	if cfg.Display.Width != 2160 || cfg.Display.Height != 1200 {
		t.Errorf("expected 2160x1200, got %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Display.OverlapPercent != 90 {
		t.Errorf("expected overlap 90, got %g", cfg.Display.OverlapPercent)
	}
	if cfg.Rendering.OverfillFactor != 1.2 {
		t.Errorf("expected overfill 1.2, got %g", cfg.Rendering.OverfillFactor)
	}
	if cfg.Distortion.Type != "rgb_symmetric_polynomials" {
		t.Errorf("expected polynomial distortion, got %q", cfg.Distortion.Type)
	}
	if len(cfg.Distortion.PolynomialGreen) != 3 || cfg.Distortion.PolynomialGreen[2] != 0.35 {
		t.Errorf("green polynomial not parsed: %v", cfg.Distortion.PolynomialGreen)
	}
	if cfg.Display.CenterOfProjectionFor(1) != [2]float32{0.529, 0.5} {
		t.Errorf("eye 1 COP not parsed: %v", cfg.Display.CenterOfProjectionFor(1))
	}
	if cfg.TimeWarp.MaxMsBeforeVsync != 2 {
		t.Errorf("expected 2ms threshold, got %g", cfg.TimeWarp.MaxMsBeforeVsync)
	}

	// Values not present in the file keep their defaults.
	if !cfg.Display.VSync {
		t.Error("vsync default should survive a partial file")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got %v", err)
	}
}

func TestValidateRejectsDegenerateValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero eyes", func(c *Config) { c.Display.NumEyes = 0 }},
		{"bad rotation", func(c *Config) { c.Display.Rotation = 45 }},
		{"zero fov", func(c *Config) { c.Display.HorizontalFOVDeg = 0 }},
		{"overfill below one", func(c *Config) { c.Rendering.OverfillFactor = 0.5 }},
		{"near behind eye", func(c *Config) { c.Rendering.NearClipMeters = -1 }},
		{"far before near", func(c *Config) { c.Rendering.FarClipMeters = 0.05 }},
		{"zero warp depth", func(c *Config) { c.TimeWarp.AssumedDepthMeters = 0 }},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_save_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg := Default()
	cfg.Display.IPDMeters = 0.061
	cfg.Distortion.Type = "mono_point_samples"

	path := filepath.Join(tempDir, "sub", "display.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	reloaded := Default()
	if err := loadFromFile(reloaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if reloaded.Display.IPDMeters != 0.061 {
		t.Errorf("IPD did not round-trip: %g", reloaded.Display.IPDMeters)
	}
	if reloaded.Distortion.Type != "mono_point_samples" {
		t.Errorf("distortion type did not round-trip: %q", reloaded.Distortion.Type)
	}
}
