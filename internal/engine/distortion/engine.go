package distortion

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/logger"
)

// Engine owns the per-eye distortion meshes. Meshes are built lazily
// and cached until the parameters or overfill factor change. It is safe
// to read meshes from the presentation thread while the application
// thread updates parameters.
type Engine struct {
	mu               sync.RWMutex
	meshType         MeshType
	desiredTriangles int
	overfill         float32
	correctors       []*Corrector
	meshes           []*Mesh
}

// NewEngine creates an engine with pass-through (identity) correction
// for every eye.
func NewEngine(numEyes int, overfill float32, desiredTriangles int) *Engine {
	return &Engine{
		meshType:         MeshTypeSquare,
		desiredTriangles: desiredTriangles,
		overfill:         overfill,
		correctors:       make([]*Corrector, numEyes),
		meshes:           make([]*Mesh, numEyes),
	}
}

// SetParameters installs new per-eye distortion parameters and
// invalidates the mesh cache. Malformed parameters are logged and leave
// the engine unchanged; no partial mesh is produced.
func (e *Engine) SetParameters(meshType MeshType, params []Parameters) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(params) != len(e.correctors) {
		logger.Error("distortion parameter count does not match eye count",
			zap.Int("params", len(params)),
			zap.Int("eyes", len(e.correctors)),
		)
		return false
	}

	correctors := make([]*Corrector, len(params))
	for eye, p := range params {
		if p.Type == TypeNone {
			continue
		}
		c, err := NewCorrector(p, e.overfill)
		if err != nil {
			logger.Error("rejecting distortion parameters",
				zap.Int("eye", eye),
				zap.Error(err),
			)
			return false
		}
		correctors[eye] = c
	}

	e.meshType = meshType
	e.correctors = correctors
	e.meshes = make([]*Mesh, len(correctors))
	return true
}

// SetOverfill updates the overfill factor and invalidates the cache.
func (e *Engine) SetOverfill(overfill float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if overfill == e.overfill {
		return
	}
	e.overfill = overfill
	for eye, c := range e.correctors {
		if c != nil {
			// Rebuild with the same parameters at the new overfill. The
			// parameters were validated when installed, so this cannot
			// fail except for a degenerate overfill, which SetOverfill
			// callers have already validated.
			if nc, err := NewCorrector(c.params, overfill); err == nil {
				e.correctors[eye] = nc
			}
		}
	}
	e.meshes = make([]*Mesh, len(e.correctors))
}

// Mesh returns the distortion mesh for an eye, building and caching it
// on first use.
func (e *Engine) Mesh(eye int) *Mesh {
	e.mu.RLock()
	if eye < 0 || eye >= len(e.meshes) {
		e.mu.RUnlock()
		return &Mesh{}
	}
	if m := e.meshes[eye]; m != nil {
		e.mu.RUnlock()
		return m
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if m := e.meshes[eye]; m != nil {
		return m
	}
	m := BuildMesh(e.correctors[eye], e.meshType, e.desiredTriangles)
	e.meshes[eye] = m
	logger.Debug("distortion mesh built",
		zap.Int("eye", eye),
		zap.Int("triangles", m.Triangles()),
	)
	return m
}

// Correct applies the eye's correction to one coordinate; pass-through
// when the eye has no distortion configured.
func (e *Engine) Correct(eye int, uv [2]float32, channel int) [2]float32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if eye < 0 || eye >= len(e.correctors) || e.correctors[eye] == nil {
		return uv
	}
	return e.correctors[eye].CorrectTextureCoordinate(uv, channel)
}
