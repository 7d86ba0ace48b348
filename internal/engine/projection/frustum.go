// Package projection derives per-eye off-axis view frusta and viewports
// from the display descriptor.
package projection

import (
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/config"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Frustum is an asymmetric off-axis view frustum. The four edge values
// are measured on the near clip plane. Invariants: Left < Right,
// Bottom < Top, 0 < Near < Far.
type Frustum struct {
	Left   float32
	Right  float32
	Bottom float32
	Top    float32
	Near   float32
	Far    float32
}

// Matrix returns the off-axis perspective projection matrix for the
// frustum, column-major in the style of glFrustum.
func (f Frustum) Matrix() math.Mat4 {
	rl := 1 / (f.Right - f.Left)
	tb := 1 / (f.Top - f.Bottom)
	fn := 1 / (f.Far - f.Near)

	return math.Mat4{
		2 * f.Near * rl, 0, 0, 0,
		0, 2 * f.Near * tb, 0, 0,
		(f.Right + f.Left) * rl, (f.Top + f.Bottom) * tb, -(f.Far + f.Near) * fn, -1,
		0, 0, -2 * f.Far * f.Near * fn, 0,
	}
}

// Builder derives frusta and viewports for each eye from the descriptor.
type Builder struct {
	display    config.DisplayConfig
	overfill   float32
	oversample float32
}

// NewBuilder creates a projection builder for a display descriptor.
func NewBuilder(display config.DisplayConfig, rendering config.RenderingConfig) *Builder {
	return &Builder{
		display:    display,
		overfill:   rendering.OverfillFactor,
		oversample: rendering.OversampleFactor,
	}
}

// Overfill returns the configured overfill factor.
func (b *Builder) Overfill() float32 {
	return b.overfill
}

// SetOverfill replaces the overfill factor. Render viewports and
// frusta pick it up on the next call; callers must change it before
// any render target has been sized from the old value.
func (b *Builder) SetOverfill(overfill float32) {
	b.overfill = overfill
}

// Frustum computes the off-axis frustum for one eye. It fails on
// degenerate clip planes or a degenerate resulting frustum, logging the
// reason and returning false.
func (b *Builder) Frustum(eye int, near, far float32) (Frustum, bool) {
	if near <= 0 || far <= 0 || near == far {
		logger.Error("degenerate clip planes",
			zap.Float32("near", near),
			zap.Float32("far", far),
		)
		return Frustum{}, false
	}

	// Base rectangle on the near plane from the half-angle tangents.
	halfW := math32.Tan(deg2rad(b.display.HorizontalFOVDeg)/2) * near
	halfH := math32.Tan(deg2rad(b.display.VerticalFOVDeg)/2) * near

	f := Frustum{
		Left:   -halfW,
		Right:  halfW,
		Bottom: -halfH,
		Top:    halfH,
		Near:   near,
		Far:    far,
	}

	// Shift the rectangle so the configured center of projection lands
	// on the optical axis.
	cop := b.display.CenterOfProjectionFor(eye)
	xShift := (0.5 - cop[0]) * (f.Right - f.Left)
	yShift := (0.5 - cop[1]) * (f.Top - f.Bottom)
	f.Left += xShift
	f.Right += xShift
	f.Bottom += yShift
	f.Top += yShift

	// Expand all four edges symmetrically so the rendered image has
	// margin for distortion and time-warp sampling. The center of the
	// frustum is unchanged.
	xExpand := (b.overfill - 1) / 2 * (f.Right - f.Left)
	yExpand := (b.overfill - 1) / 2 * (f.Top - f.Bottom)
	f.Left -= xExpand
	f.Right += xExpand
	f.Bottom -= yExpand
	f.Top += yExpand

	// Pitch tilt would shear the frustum here; the descriptor value is
	// carried but not applied (known gap).

	if f.Left == f.Right || f.Bottom == f.Top {
		logger.Error("degenerate frustum",
			zap.Int("eye", eye),
			zap.Float32("left", f.Left),
			zap.Float32("right", f.Right),
		)
		return Frustum{}, false
	}

	return f, true
}

func deg2rad(deg float32) float32 {
	return deg * math32.Pi / 180
}
