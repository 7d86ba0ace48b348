package projection

// Viewport is a pixel rectangle with its origin at the lower left, the
// OpenGL convention.
type Viewport struct {
	Left   int
	Lower  int
	Width  int
	Height int
}

// eyeRegion returns the pixel region of the physical display assigned
// to one eye, before any display rotation.
func (b *Builder) eyeRegion(eye int) Viewport {
	d := b.display
	n := d.NumEyes
	if n < 1 {
		n = 1
	}

	slot := eye
	if d.SwapEyes {
		slot = n - 1 - slot
	}

	if d.HorizontalLayout {
		w := d.Width / n
		return Viewport{Left: slot * w, Lower: 0, Width: w, Height: d.Height}
	}
	h := d.Height / n
	return Viewport{Left: 0, Lower: slot * h, Width: d.Width, Height: h}
}

// RenderViewport returns the viewport sized for the overfilled and
// oversampled render target of one eye. Render targets always start at
// the origin; only their extent depends on the eye region.
func (b *Builder) RenderViewport(eye int) Viewport {
	region := b.eyeRegion(eye)
	w, h := region.Width, region.Height

	// A rotated physical display scans out sideways; render upright.
	if b.display.Rotation == 90 || b.display.Rotation == 270 {
		w, h = h, w
	}

	scale := b.overfill * b.oversample
	return Viewport{
		Width:  int(float32(w)*scale + 0.5),
		Height: int(float32(h)*scale + 0.5),
	}
}

// PresentViewport returns the final, non-overfilled viewport on the
// physical display surface for one eye, after applying the display
// rotation.
func (b *Builder) PresentViewport(eye int) Viewport {
	region := b.eyeRegion(eye)
	return RotateViewport(b.display.Rotation, region, b.display.Width, b.display.Height)
}

// RotateViewport maps a viewport expressed on the unrotated display
// onto the physical surface for a display rotated by 0, 90, 180 or 270
// degrees counterclockwise. surfaceWidth and surfaceHeight are the
// unrotated display dimensions.
func RotateViewport(rotation int, v Viewport, surfaceWidth, surfaceHeight int) Viewport {
	switch rotation {
	case 90:
		return Viewport{
			Left:   v.Lower,
			Lower:  surfaceWidth - v.Left - v.Width,
			Width:  v.Height,
			Height: v.Width,
		}
	case 180:
		return Viewport{
			Left:   surfaceWidth - v.Left - v.Width,
			Lower:  surfaceHeight - v.Lower - v.Height,
			Width:  v.Width,
			Height: v.Height,
		}
	case 270:
		return Viewport{
			Left:   surfaceHeight - v.Lower - v.Height,
			Lower:  v.Left,
			Width:  v.Height,
			Height: v.Width,
		}
	default:
		return v
	}
}
