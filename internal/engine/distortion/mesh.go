package distortion

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/logger"
)

// MeshType selects the tessellation strategy.
type MeshType int

const (
	// MeshTypeSquare tessellates the screen rectangle into a uniform
	// grid of quads.
	MeshTypeSquare MeshType = iota

	// MeshTypeRadial would tessellate in rings around the center of
	// projection. It has never been implemented; requesting it is
	// reported as unsupported.
	MeshTypeRadial
)

// Vertex is one distortion-mesh vertex: a screen-space position in
// [-1,1]^2 and one texture coordinate per color channel.
type Vertex struct {
	Pos  [2]float32
	TexR [2]float32
	TexG [2]float32
	TexB [2]float32
}

// Mesh is an ordered triangle list (three vertices per triangle, CCW)
// covering the canonical screen rectangle.
type Mesh struct {
	Vertices []Vertex
}

// Triangles returns the number of triangles in the mesh.
func (m *Mesh) Triangles() int {
	return len(m.Vertices) / 3
}

// Corrector applies one eye's distortion correction to normalized
// texture coordinates.
type Corrector struct {
	params   Parameters
	overfill float32
	interp   [3]*Interpolator
}

// NewCorrector validates the parameters and builds the per-channel
// interpolators for point-sample variants.
func NewCorrector(params Parameters, overfill float32) (*Corrector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if overfill <= 0 {
		return nil, fmt.Errorf("distortion: overfill factor %g must be positive", overfill)
	}

	c := &Corrector{params: params, overfill: overfill}

	switch params.Type {
	case TypeMonoPointSamples:
		// One mesh shared across channels: build a single interpolator.
		shared := NewInterpolator(params.PointSamples[0])
		c.interp = [3]*Interpolator{shared, shared, shared}
	case TypeRGBPointSamples:
		for ch := 0; ch < 3; ch++ {
			c.interp[ch] = NewInterpolator(params.PointSamples[ch])
		}
	}
	return c, nil
}

// CorrectTextureCoordinate maps a normalized coordinate in the
// overfilled texture to the coordinate the given color channel should
// sample from. Input and output are both in [0,1]^2 of the overfilled
// texture.
func (c *Corrector) CorrectTextureCoordinate(uv [2]float32, channel int) [2]float32 {
	switch c.params.Type {
	case TypeRGBPolynomial:
		return c.correctPolynomial(uv, channel)
	case TypeMonoPointSamples, TypeRGBPointSamples:
		return c.correctPointSamples(uv, channel)
	default:
		return uv
	}
}

func (c *Corrector) correctPolynomial(uv [2]float32, channel int) [2]float32 {
	// Rescale from overfilled texture space into the unit space the
	// parameters were measured in.
	xN := (uv[0]-0.5)*c.overfill + 0.5
	yN := (uv[1]-0.5)*c.overfill + 0.5

	// Into the parameters' reference space.
	d := c.params.DistanceScale
	xD := xN * d[0]
	yD := yN * d[1]
	copX := c.params.CenterOfProjection[0] * d[0]
	copY := c.params.CenterOfProjection[1] * d[1]

	dx := xD - copX
	dy := yD - copY
	r := math32.Sqrt(dx*dx + dy*dy)
	if r == 0 {
		// Exactly at the center of projection: nothing to correct.
		return uv
	}

	rNew := horner(c.params.Coefficients[channel], r)
	scale := rNew / r

	xD = copX + dx*scale
	yD = copY + dy*scale

	// Back out of reference space and overfill space.
	xN = xD / d[0]
	yN = yD / d[1]
	return [2]float32{
		(xN-0.5)/c.overfill + 0.5,
		(yN-0.5)/c.overfill + 0.5,
	}
}

func (c *Corrector) correctPointSamples(uv [2]float32, channel int) [2]float32 {
	xN := (uv[0]-0.5)*c.overfill + 0.5
	yN := (uv[1]-0.5)*c.overfill + 0.5

	out := c.interp[channel].Interpolate(xN, yN)

	return [2]float32{
		(out[0]-0.5)/c.overfill + 0.5,
		(out[1]-0.5)/c.overfill + 0.5,
	}
}

// horner evaluates sum(coeffs[i] * r^i), constant term first.
func horner(coeffs []float32, r float32) float32 {
	acc := float32(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc*r + coeffs[i]
	}
	return acc
}

// BuildMesh tessellates the screen rectangle and computes per-channel
// texture coordinates for every vertex. A nil corrector produces an
// undistorted pass-through mesh. Malformed requests yield an empty mesh
// and a logged diagnostic, never a panic.
func BuildMesh(c *Corrector, meshType MeshType, desiredTriangles int) *Mesh {
	switch meshType {
	case MeshTypeSquare:
		return buildSquareMesh(c, desiredTriangles)
	case MeshTypeRadial:
		logger.Warn("radial distortion mesh requested but not supported")
		return &Mesh{}
	default:
		logger.Error("unknown distortion mesh type", zap.Int("type", int(meshType)))
		return &Mesh{}
	}
}

func buildSquareMesh(c *Corrector, desiredTriangles int) *Mesh {
	if desiredTriangles < 2 {
		desiredTriangles = 2
	}
	quadsPerSide := int(math32.Sqrt(float32(desiredTriangles) / 2))
	if quadsPerSide < 1 {
		quadsPerSide = 1
	}

	vertex := func(px, py float32) Vertex {
		uv := [2]float32{(px + 1) / 2, (py + 1) / 2}
		v := Vertex{Pos: [2]float32{px, py}, TexR: uv, TexG: uv, TexB: uv}
		if c != nil {
			v.TexR = c.CorrectTextureCoordinate(uv, 0)
			v.TexG = c.CorrectTextureCoordinate(uv, 1)
			v.TexB = c.CorrectTextureCoordinate(uv, 2)
		}
		return v
	}

	side := float32(quadsPerSide)
	m := &Mesh{Vertices: make([]Vertex, 0, quadsPerSide*quadsPerSide*6)}
	for y := 0; y < quadsPerSide; y++ {
		for x := 0; x < quadsPerSide; x++ {
			x0 := -1 + 2*float32(x)/side
			x1 := -1 + 2*float32(x+1)/side
			y0 := -1 + 2*float32(y)/side
			y1 := -1 + 2*float32(y+1)/side

			ll := vertex(x0, y0)
			lr := vertex(x1, y0)
			ul := vertex(x0, y1)
			ur := vertex(x1, y1)

			// Two CCW triangles per cell.
			m.Vertices = append(m.Vertices, ll, lr, ul, lr, ur, ul)
		}
	}
	return m
}
