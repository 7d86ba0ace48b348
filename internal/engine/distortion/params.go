// Package distortion generates per-eye distortion-correction meshes
// mapping screen positions to per-channel texture coordinates, using
// either a radial polynomial or unstructured point-sample meshes.
package distortion

import (
	"fmt"

	"github.com/Faultbox/asgard-vr/internal/config"
)

// Type tags the distortion parameter variant.
type Type int

const (
	// TypeNone disables distortion correction; texture coordinates pass
	// through unchanged.
	TypeNone Type = iota

	// TypeRGBPolynomial evaluates a per-channel radial polynomial around
	// the center of projection.
	TypeRGBPolynomial

	// TypeMonoPointSamples interpolates one unstructured sample mesh
	// shared by all three color channels.
	TypeMonoPointSamples

	// TypeRGBPointSamples interpolates three independent unstructured
	// sample meshes, one per channel.
	TypeRGBPointSamples
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeRGBPolynomial:
		return "rgb_symmetric_polynomials"
	case TypeMonoPointSamples:
		return "mono_point_samples"
	case TypeRGBPointSamples:
		return "rgb_point_samples"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Sample maps one normalized input coordinate to the output coordinate
// the optics move it to.
type Sample struct {
	In  [2]float32
	Out [2]float32
}

// Parameters holds the distortion description for one eye.
type Parameters struct {
	Type Type

	// Polynomial variant: per-channel coefficient vectors (R, G, B),
	// constant term first, plus the center of projection and the
	// reference-space distance scale.
	Coefficients       [3][]float32
	CenterOfProjection [2]float32
	DistanceScale      [2]float32

	// Point-sample variants: one mesh per channel. The mono variant
	// stores its shared mesh in all three slots.
	PointSamples [3][]Sample
}

// Validate checks the structural invariants: polynomial vectors need at
// least two coefficients, point-sample meshes at least three points.
// (Collinearity of point samples degrades lookup quality but is handled
// at interpolation time, not rejected here.)
func (p *Parameters) Validate() error {
	switch p.Type {
	case TypeNone:
		return nil
	case TypeRGBPolynomial:
		for ch, coeffs := range p.Coefficients {
			if len(coeffs) < 2 {
				return fmt.Errorf("distortion: channel %d polynomial has %d coefficients, need at least 2", ch, len(coeffs))
			}
		}
		if p.DistanceScale[0] <= 0 || p.DistanceScale[1] <= 0 {
			return fmt.Errorf("distortion: distance scale %v must be positive", p.DistanceScale)
		}
		return nil
	case TypeMonoPointSamples, TypeRGBPointSamples:
		for ch, samples := range p.PointSamples {
			if len(samples) < 3 {
				return fmt.Errorf("distortion: channel %d has %d point samples, need at least 3", ch, len(samples))
			}
		}
		return nil
	default:
		return fmt.Errorf("distortion: unknown type %d", int(p.Type))
	}
}

// ParseType maps a descriptor type string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "":
		return TypeNone, nil
	case "rgb_symmetric_polynomials":
		return TypeRGBPolynomial, nil
	case "mono_point_samples":
		return TypeMonoPointSamples, nil
	case "rgb_point_samples":
		return TypeRGBPointSamples, nil
	default:
		return TypeNone, fmt.Errorf("distortion: unknown type %q", s)
	}
}

// FromConfig builds the per-eye Parameters from the display descriptor.
func FromConfig(cfg config.DistortionConfig, display config.DisplayConfig, eye int) (Parameters, error) {
	t, err := ParseType(cfg.Type)
	if err != nil {
		return Parameters{}, err
	}

	p := Parameters{Type: t}
	switch t {
	case TypeNone:
		return p, nil

	case TypeRGBPolynomial:
		p.Coefficients = [3][]float32{cfg.PolynomialRed, cfg.PolynomialGreen, cfg.PolynomialBlue}
		p.CenterOfProjection = display.CenterOfProjectionFor(eye)
		p.DistanceScale = cfg.DistanceScale

	case TypeMonoPointSamples:
		if eye >= len(cfg.MonoPointSamples) {
			return Parameters{}, fmt.Errorf("distortion: no mono point samples for eye %d", eye)
		}
		shared := convertSamples(cfg.MonoPointSamples[eye])
		p.PointSamples = [3][]Sample{shared, shared, shared}

	case TypeRGBPointSamples:
		for ch := 0; ch < 3; ch++ {
			if eye >= len(cfg.RGBPointSamples[ch]) {
				return Parameters{}, fmt.Errorf("distortion: no channel-%d point samples for eye %d", ch, eye)
			}
			p.PointSamples[ch] = convertSamples(cfg.RGBPointSamples[ch][eye])
		}
	}

	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

func convertSamples(in []config.PointSample) []Sample {
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = Sample{In: s.In, Out: s.Out}
	}
	return out
}
