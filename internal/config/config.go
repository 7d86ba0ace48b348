// Package config handles display-descriptor and runtime configuration
// loading for the render manager. The loaded Config is treated as an
// immutable snapshot for the lifetime of a RenderManager instance.
package config

// Config holds all render-manager settings.
type Config struct {
	Display    DisplayConfig    `yaml:"display"`
	Rendering  RenderingConfig  `yaml:"rendering"`
	Distortion DistortionConfig `yaml:"distortion"`
	Prediction PredictionConfig `yaml:"prediction"`
	TimeWarp   TimeWarpConfig   `yaml:"time_warp"`
	DirectMode DirectModeConfig `yaml:"direct_mode"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DisplayConfig describes the physical HMD display and its optics.
type DisplayConfig struct {
	Width      int  `yaml:"width"`  // full display surface in pixels
	Height     int  `yaml:"height"` // full display surface in pixels
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`

	NumEyes int `yaml:"num_eyes"`

	// Field of view per eye, in degrees.
	HorizontalFOVDeg float32 `yaml:"horizontal_fov_deg"`
	VerticalFOVDeg   float32 `yaml:"vertical_fov_deg"`

	// Percentage of the horizontal FOV shared by both eyes (0-100).
	// Values below 100 rotate the eyes apart to widen the combined view.
	OverlapPercent float32 `yaml:"overlap_percent"`

	// Pitch tilt of the screens, in degrees. Parsed and carried but not
	// applied to the projection (known gap inherited from the
	// display-descriptor format).
	PitchTiltDeg float32 `yaml:"pitch_tilt_deg"`

	// Rotation of the physical display: 0, 90, 180 or 270 degrees.
	Rotation int `yaml:"rotation"`

	// Eyes are laid out side by side across the display when true,
	// stacked vertically when false.
	HorizontalLayout bool `yaml:"horizontal_layout"`
	SwapEyes         bool `yaml:"swap_eyes"`

	// Per-eye normalized center of projection, x then y in [0,1].
	CenterOfProjection [][2]float32 `yaml:"center_of_projection"`

	// Interpupillary distance in meters.
	IPDMeters float32 `yaml:"ipd_meters"`
}

// RenderingConfig holds render-target sizing and clip-plane defaults.
type RenderingConfig struct {
	// Ratio by which the render target is enlarged beyond the visible
	// frustum to leave margin for distortion and time-warp sampling.
	OverfillFactor float32 `yaml:"overfill_factor"`

	// Ratio by which render-target resolution is increased independent
	// of overfill, to improve post-distortion fidelity.
	OversampleFactor float32 `yaml:"oversample_factor"`

	NearClipMeters float32 `yaml:"near_clip_meters"`
	FarClipMeters  float32 `yaml:"far_clip_meters"`
}

// PointSample maps one normalized input coordinate to the output
// coordinate the optics move it to.
type PointSample struct {
	In  [2]float32 `yaml:"in"`
	Out [2]float32 `yaml:"out"`
}

// DistortionConfig selects and parameterizes the distortion correction.
type DistortionConfig struct {
	// One of "rgb_symmetric_polynomials", "mono_point_samples",
	// "rgb_point_samples" or "" for no distortion.
	Type string `yaml:"type"`

	// Reference-space scale for polynomial evaluation.
	DistanceScale [2]float32 `yaml:"distance_scale"`

	// Per-channel polynomial coefficients, constant term first.
	PolynomialRed   []float32 `yaml:"polynomial_red"`
	PolynomialGreen []float32 `yaml:"polynomial_green"`
	PolynomialBlue  []float32 `yaml:"polynomial_blue"`

	// Unstructured sample meshes, one list per eye.
	MonoPointSamples [][]PointSample `yaml:"mono_point_samples"`

	// Independent meshes per channel (R, G, B), each one list per eye.
	RGBPointSamples [3][][]PointSample `yaml:"rgb_point_samples"`

	// Approximate number of triangles in the generated mesh.
	DesiredTriangles int `yaml:"desired_triangles"`
}

// PredictionConfig controls client-side pose prediction.
type PredictionConfig struct {
	Enabled bool `yaml:"enabled"`

	// Extra delay added to the predicted time-until-present, in
	// milliseconds, to account for scanout latency.
	StaticDelayMs float32 `yaml:"static_delay_ms"`
}

// TimeWarpConfig controls time-warp re-projection.
type TimeWarpConfig struct {
	Enabled bool `yaml:"enabled"`

	// Run presentation on its own thread, re-warping the most recently
	// delivered frame just before vsync.
	Asynchronous bool `yaml:"asynchronous"`

	// Present when this close to the next required present time.
	MaxMsBeforeVsync float32 `yaml:"max_ms_before_vsync"`

	// Depth in meters at which the re-projected scene is assumed to lie.
	AssumedDepthMeters float32 `yaml:"assumed_depth_meters"`
}

// DirectModeConfig holds direct-to-display vendor hints.
type DirectModeConfig struct {
	Enabled bool `yaml:"enabled"`

	// EDID vendor PNPIDs of displays known to support direct mode.
	VendorPNPIDs []string `yaml:"vendor_pnpids"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values: a two-eye
// side-by-side 1080p HMD with 90x90 degree FOV and no distortion.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Width:            1920,
			Height:           1080,
			Fullscreen:       true,
			VSync:            true,
			NumEyes:          2,
			HorizontalFOVDeg: 90,
			VerticalFOVDeg:   90,
			OverlapPercent:   100,
			Rotation:         0,
			HorizontalLayout: true,
			CenterOfProjection: [][2]float32{
				{0.5, 0.5},
				{0.5, 0.5},
			},
			IPDMeters: 0.064,
		},
		Rendering: RenderingConfig{
			OverfillFactor:   1.0,
			OversampleFactor: 1.0,
			NearClipMeters:   0.1,
			FarClipMeters:    100,
		},
		Distortion: DistortionConfig{
			Type:             "",
			DistanceScale:    [2]float32{1, 1},
			DesiredTriangles: 800,
		},
		Prediction: PredictionConfig{
			Enabled:       true,
			StaticDelayMs: 16,
		},
		TimeWarp: TimeWarpConfig{
			Enabled:            true,
			Asynchronous:       true,
			MaxMsBeforeVsync:   1,
			AssumedDepthMeters: 2,
		},
		DirectMode: DirectModeConfig{
			Enabled:      false,
			VendorPNPIDs: []string{"OVR", "SVR"},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// CenterOfProjectionFor returns the normalized center of projection for
// an eye, defaulting to the screen center when unconfigured.
func (d *DisplayConfig) CenterOfProjectionFor(eye int) [2]float32 {
	if eye < 0 || eye >= len(d.CenterOfProjection) {
		return [2]float32{0.5, 0.5}
	}
	return d.CenterOfProjection[eye]
}
