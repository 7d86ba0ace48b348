// Package timewarp computes the projective texture transform that
// re-maps an already-rendered frame onto the latest head pose just
// before presentation (asynchronous time warp).
package timewarp

import (
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// View is the per-eye state a warp is computed from: the pose the eye
// was (or is) at, expressed as space-from-eye, plus its frustum.
type View struct {
	SpaceFromEye math.Pose
	Frustum      projection.Frustum
}

// Calculator computes per-eye time-warp matrices. The Y flip and final
// transpose differ between graphics backends (texture origin and matrix
// storage conventions), so they are parameters, not constants.
type Calculator struct {
	numEyes   int
	flipY     bool
	transpose bool
}

// NewCalculator creates a calculator for the given eye count and
// backend texture conventions.
func NewCalculator(numEyes int, flipY, transpose bool) *Calculator {
	return &Calculator{numEyes: numEyes, flipY: flipY, transpose: transpose}
}

// Compute derives one texture matrix per eye mapping present-time
// screen coordinates in [0,1]^2 into the texture coordinates of the
// frame rendered with the used views. It fails (returning nil, false)
// on a non-positive depth or when the view slices do not both match the
// eye count.
func (c *Calculator) Compute(used, current []View, assumedDepth float32) ([]math.Mat4, bool) {
	if assumedDepth <= 0 {
		logger.Error("time warp requires a positive assumed depth",
			zap.Float32("depth", assumedDepth),
		)
		return nil, false
	}
	if len(used) != c.numEyes || len(current) != c.numEyes {
		logger.Error("time warp view count mismatch",
			zap.Int("used", len(used)),
			zap.Int("current", len(current)),
			zap.Int("eyes", c.numEyes),
		)
		return nil, false
	}

	out := make([]math.Mat4, c.numEyes)
	for eye := 0; eye < c.numEyes; eye++ {
		out[eye] = c.computeEye(used[eye], current[eye], assumedDepth)
	}
	return out, true
}

func (c *Calculator) computeEye(used, current View, depth float32) math.Mat4 {
	// Reconstruct the virtual projection-plane rectangle at the assumed
	// depth from the frustum the frame was rendered with.
	f := used.Frustum
	xScale := (f.Right - f.Left) / f.Near * depth
	yScale := (f.Top - f.Bottom) / f.Near * depth
	xTrans := (f.Right + f.Left) / 2 / f.Near * depth
	yTrans := (f.Top + f.Bottom) / 2 / f.Near * depth

	usedModelView := used.SpaceFromEye.Invert().ToMat4()
	currentModelViewInv := current.SpaceFromEye.ToMat4()

	// Right-to-left: shift the quad coordinate to origin-centered,
	// scale it onto the projection rectangle, place it at the render
	// depth, carry it through the current pose into world space and
	// back through the used pose, then undo the placement to land in
	// the used frame's texture space.
	m := math.Translate(0.5, 0.5, 0).
		Mul(math.Scale(1/xScale, 1/yScale, 1)).
		Mul(math.Translate(-xTrans, -yTrans, -depth)).
		Mul(usedModelView).
		Mul(currentModelViewInv).
		Mul(math.Translate(xTrans, yTrans, depth)).
		Mul(math.Scale(xScale, yScale, 1)).
		Mul(math.Translate(-0.5, -0.5, 0))

	if c.flipY {
		// Conjugate by a flip about the texture center so the warp sees
		// upright coordinates on backends with a top-left origin.
		flip := math.Translate(0, 1, 0).Mul(math.Scale(1, -1, 1))
		m = flip.Mul(m).Mul(flip)
	}
	if c.transpose {
		m = m.Transposed()
	}
	return m
}
