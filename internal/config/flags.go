package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to display descriptor file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in a window instead of fullscreen")
	flagFullscreen = flag.Bool("fullscreen", false, "Run fullscreen on the HMD")
	flagWidth      = flag.Int("width", 0, "Display width override")
	flagHeight     = flag.Int("height", 0, "Display height override")
	flagOverfill   = flag.Float64("overfill", 0, "Render-target overfill factor override")
	flagNoWarp     = flag.Bool("no-timewarp", false, "Disable time-warp re-projection")
	flagHarness    = flag.Bool("harness", false, "Log every graphics call with its duration")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// HarnessEnabled reports whether graphics-call logging was requested.
func HarnessEnabled() bool {
	return *flagHarness
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Display.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Display.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Display.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Display.Height = *flagHeight
	}
	if *flagOverfill > 0 {
		cfg.Rendering.OverfillFactor = float32(*flagOverfill)
	}
	if *flagNoWarp {
		cfg.TimeWarp.Enabled = false
	}
}
