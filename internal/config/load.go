package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority over the standard locations.
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the descriptor for values the render manager cannot
// work with. Distortion parameters are validated later, at mesh-build
// time, so that a bad mesh only disables distortion rather than startup.
func (c *Config) Validate() error {
	d := &c.Display
	if d.NumEyes < 1 {
		return fmt.Errorf("display: num_eyes must be at least 1, got %d", d.NumEyes)
	}
	if d.Width < 1 || d.Height < 1 {
		return fmt.Errorf("display: resolution %dx%d is invalid", d.Width, d.Height)
	}
	if d.HorizontalFOVDeg <= 0 || d.HorizontalFOVDeg >= 180 ||
		d.VerticalFOVDeg <= 0 || d.VerticalFOVDeg >= 180 {
		return fmt.Errorf("display: FOV %gx%g degrees out of range", d.HorizontalFOVDeg, d.VerticalFOVDeg)
	}
	switch d.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("display: rotation must be 0/90/180/270, got %d", d.Rotation)
	}
	r := &c.Rendering
	if r.OverfillFactor < 1 {
		return fmt.Errorf("rendering: overfill_factor must be >= 1, got %g", r.OverfillFactor)
	}
	if r.OversampleFactor <= 0 {
		return fmt.Errorf("rendering: oversample_factor must be > 0, got %g", r.OversampleFactor)
	}
	if r.NearClipMeters <= 0 || r.FarClipMeters <= r.NearClipMeters {
		return fmt.Errorf("rendering: clip planes near=%g far=%g are degenerate", r.NearClipMeters, r.FarClipMeters)
	}
	if c.TimeWarp.AssumedDepthMeters <= 0 {
		return fmt.Errorf("time_warp: assumed_depth_meters must be > 0, got %g", c.TimeWarp.AssumedDepthMeters)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./display.yaml",
		filepath.Join(ConfigDir(), "display.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "AsgardVR")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "AsgardVR")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "asgard-vr")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "asgard-vr")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
