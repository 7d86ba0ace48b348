package distortion

import (
	"github.com/chewxy/math32"
)

// Grid resolution of the spatial acceleration structure. Buckets hold
// every sample whose input falls in the bucket's cell or one of its
// eight neighbors, so a lookup normally touches one bucket.
const (
	numSamplesX = 16
	numSamplesY = 16
)

// Interpolator answers nearest-point queries over one unstructured
// sample mesh. It is immutable after construction; lookups fit a plane
// through the three best-separated nearby samples and evaluate it at
// the query point.
type Interpolator struct {
	samples []Sample
	buckets [][]int // numSamplesY*numSamplesX cells of sample indices

	minX, minY   float32
	cellW, cellH float32
}

// NewInterpolator builds the acceleration grid over the samples' input
// domain. The samples slice is referenced, not copied; it must not be
// mutated afterwards.
func NewInterpolator(samples []Sample) *Interpolator {
	in := &Interpolator{
		samples: samples,
		buckets: make([][]int, numSamplesX*numSamplesY),
	}

	minX, minY := float32(math32.MaxFloat32), float32(math32.MaxFloat32)
	maxX, maxY := -float32(math32.MaxFloat32), -float32(math32.MaxFloat32)
	for _, s := range samples {
		minX = math32.Min(minX, s.In[0])
		maxX = math32.Max(maxX, s.In[0])
		minY = math32.Min(minY, s.In[1])
		maxY = math32.Max(maxY, s.In[1])
	}
	if len(samples) == 0 || maxX <= minX || maxY <= minY {
		// Degenerate domain; the grid stays empty and every lookup
		// falls back to a linear scan.
		return in
	}

	in.minX, in.minY = minX, minY
	in.cellW = (maxX - minX) / numSamplesX
	in.cellH = (maxY - minY) / numSamplesY

	for i, s := range samples {
		cx, cy := in.cell(s.In[0], s.In[1])
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if nx < 0 || nx >= numSamplesX || ny < 0 || ny >= numSamplesY {
					continue
				}
				b := ny*numSamplesX + nx
				in.buckets[b] = append(in.buckets[b], i)
			}
		}
	}
	return in
}

func (in *Interpolator) cell(x, y float32) (int, int) {
	cx := int((x - in.minX) / in.cellW)
	cy := int((y - in.minY) / in.cellH)
	if cx < 0 {
		cx = 0
	} else if cx >= numSamplesX {
		cx = numSamplesX - 1
	}
	if cy < 0 {
		cy = 0
	} else if cy >= numSamplesY {
		cy = numSamplesY - 1
	}
	return cx, cy
}

// Interpolate maps an input coordinate through the sample mesh. With
// fewer than three usable nearby points it returns the nearest point's
// output unchanged; with three collinear points the plane fit
// degenerates to the first point's value.
func (in *Interpolator) Interpolate(x, y float32) [2]float32 {
	picked := in.nearestPoints(x, y)

	switch len(picked) {
	case 0:
		return [2]float32{x, y}
	case 1, 2:
		return picked[0].Out
	}

	p1, p2, p3 := picked[0], picked[1], picked[2]
	var out [2]float32
	for axis := 0; axis < 2; axis++ {
		out[axis] = planeFit(x, y,
			p1.In, p1.Out[axis],
			p2.In, p2.Out[axis],
			p3.In, p3.Out[axis],
		)
	}
	return out
}

// nearestPoints finds up to three well-separated, non-collinear samples
// nearest to the query. The acceleration grid is tried first; a bucket
// with fewer than three candidates falls back to a scan of all samples.
func (in *Interpolator) nearestPoints(x, y float32) []Sample {
	candidates := in.samples
	if in.cellW > 0 && in.cellH > 0 {
		cx, cy := in.cell(x, y)
		if b := in.buckets[cy*numSamplesX+cx]; len(b) >= 3 {
			bucket := make([]Sample, len(b))
			for i, idx := range b {
				bucket[i] = in.samples[idx]
			}
			candidates = bucket
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Sort candidates by squared distance to the query. The lists are
	// small (bucket-sized), so a simple insertion sort suffices.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	dist2 := func(i int) float32 {
		dx := candidates[i].In[0] - x
		dy := candidates[i].In[1] - y
		return dx*dx + dy*dy
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && dist2(order[j]) < dist2(order[j-1]); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	picked := []Sample{candidates[order[0]]}

	// Second point: nearest one that does not coincide with the first.
	const minSep2 = 1e-12
	next := 1
	for ; next < len(order); next++ {
		c := candidates[order[next]]
		dx := c.In[0] - picked[0].In[0]
		dy := c.In[1] - picked[0].In[1]
		if dx*dx+dy*dy > minSep2 {
			picked = append(picked, c)
			next++
			break
		}
	}
	if len(picked) < 2 {
		return picked
	}

	// Third point: nearest one far enough off the p1-p2 line for a
	// stable plane fit.
	ex := picked[1].In[0] - picked[0].In[0]
	ey := picked[1].In[1] - picked[0].In[1]
	eLen := math32.Sqrt(ex*ex + ey*ey)
	for ; next < len(order); next++ {
		c := candidates[order[next]]
		dx := c.In[0] - picked[0].In[0]
		dy := c.In[1] - picked[0].In[1]
		// Perpendicular distance from the p1-p2 line.
		if math32.Abs(ex*dy-ey*dx)/eLen > 1e-5 {
			picked = append(picked, c)
			break
		}
	}
	return picked
}

// planeFit fits z = f(x,y) through three points in (input, output-axis)
// space and evaluates it at the query. If the plane is vertical the fit
// degenerates and the first point's value is returned.
func planeFit(x, y float32, in1 [2]float32, z1 float32, in2 [2]float32, z2 float32, in3 [2]float32, z3 float32) float32 {
	ux, uy, uz := in2[0]-in1[0], in2[1]-in1[1], z2-z1
	vx, vy, vz := in3[0]-in1[0], in3[1]-in1[1], z3-z1

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx

	if math32.Abs(nz) < 1e-12 {
		return z1
	}
	return z1 - (nx*(x-in1[0])+ny*(y-in1[1]))/nz
}
