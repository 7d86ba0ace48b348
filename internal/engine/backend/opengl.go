package backend

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/asgard-vr/internal/engine/distortion"
	"github.com/Faultbox/asgard-vr/internal/engine/projection"
	"github.com/Faultbox/asgard-vr/internal/engine/shader"
	"github.com/Faultbox/asgard-vr/internal/logger"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

// Distortion-mesh shaders. Texture coordinates run through the warp
// matrix per channel and are sampled projectively, so the same mesh
// serves plain distortion (identity matrix) and time warp.
const meshVertexShader = `
#version 410 core

layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aTexR;
layout (location = 2) in vec2 aTexG;
layout (location = 3) in vec2 aTexB;

uniform mat4 uTexMatrix;

out vec4 vTexR;
out vec4 vTexG;
out vec4 vTexB;

void main() {
	gl_Position = vec4(aPos, 0.0, 1.0);
	vTexR = uTexMatrix * vec4(aTexR, 0.0, 1.0);
	vTexG = uTexMatrix * vec4(aTexG, 0.0, 1.0);
	vTexB = uTexMatrix * vec4(aTexB, 0.0, 1.0);
}
`

const meshFragmentShader = `
#version 410 core

uniform sampler2D uTexture;

in vec4 vTexR;
in vec4 vTexG;
in vec4 vTexB;

out vec4 FragColor;

void main() {
	float r = textureProj(uTexture, vTexR).r;
	float g = textureProj(uTexture, vTexG).g;
	float b = textureProj(uTexture, vTexB).b;
	FragColor = vec4(r, g, b, 1.0);
}
`

// glTarget carries the GL objects behind a RenderTarget handle.
type glTarget struct {
	fbo          uint32
	colorTexture uint32
	depthRBO     uint32
}

// glMesh is an uploaded distortion mesh.
type glMesh struct {
	vao      uint32
	vbo      uint32
	vertices int32
}

// OpenGL implements Backend on an OpenGL 4.1 core context. Must be
// constructed and used on the thread owning the context.
type OpenGL struct {
	surface Surface

	program    uint32
	uTexMatrix int32
	uTexture   int32

	targets map[uintptr]*glTarget
	meshes  map[*distortion.Mesh]*glMesh
	nextID  uintptr
}

// NewOpenGL initializes GL state for the distortion pass. The surface's
// GL context must be current.
func NewOpenGL(surface Surface) (*OpenGL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	logger.Info("OpenGL backend initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	program, err := shader.CompileProgram(meshVertexShader, meshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("distortion shader: %w", err)
	}

	b := &OpenGL{
		surface:    surface,
		program:    program,
		uTexMatrix: shader.MustGetUniform(program, "uTexMatrix"),
		uTexture:   shader.MustGetUniform(program, "uTexture"),
		targets:    map[uintptr]*glTarget{},
		meshes:     map[*distortion.Mesh]*glMesh{},
		nextID:     1,
	}
	return b, nil
}

// CreateTarget allocates an offscreen FBO with a color texture and a
// depth renderbuffer.
func (b *OpenGL) CreateTarget(width, height int) (*RenderTarget, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("opengl: target size %dx%d is invalid", width, height)
	}

	t := &glTarget{}
	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)

	gl.GenTextures(1, &t.colorTexture)
	gl.BindTexture(gl.TEXTURE_2D, t.colorTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.colorTexture, 0)

	gl.GenRenderbuffers(1, &t.depthRBO)
	gl.BindRenderbuffer(gl.RENDERBUFFER, t.depthRBO)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.depthRBO)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		b.destroyTarget(t)
		return nil, fmt.Errorf("opengl: framebuffer incomplete: 0x%x", status)
	}

	id := b.nextID
	b.nextID++
	b.targets[id] = t

	logger.Debug("render target created",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Uint32("fbo", t.fbo),
	)
	return &RenderTarget{
		Handle:  id,
		Texture: uintptr(t.colorTexture),
		Width:   width,
		Height:  height,
	}, nil
}

// BindTarget binds a target's FBO, or the window surface for nil.
func (b *OpenGL) BindTarget(t *RenderTarget) error {
	if t == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return nil
	}
	glt, ok := b.targets[t.Handle]
	if !ok {
		return fmt.Errorf("opengl: unknown render target %d", t.Handle)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, glt.fbo)
	return nil
}

// SetViewport sets the GL viewport.
func (b *OpenGL) SetViewport(v projection.Viewport) {
	gl.Viewport(int32(v.Left), int32(v.Lower), int32(v.Width), int32(v.Height))
}

// DrawMesh draws the distortion mesh sampling src through texMatrix.
func (b *OpenGL) DrawMesh(m *distortion.Mesh, texMatrix math.Mat4, src *RenderTarget) error {
	if len(m.Vertices) == 0 {
		return nil
	}
	gm, err := b.uploadMesh(m)
	if err != nil {
		return err
	}

	gl.UseProgram(b.program)
	gl.UniformMatrix4fv(b.uTexMatrix, 1, false, texMatrix.Ptr())

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, uint32(src.Texture))
	gl.Uniform1i(b.uTexture, 0)

	gl.Disable(gl.DEPTH_TEST)
	gl.BindVertexArray(gm.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, gm.vertices)
	gl.BindVertexArray(0)
	return nil
}

// uploadMesh uploads a mesh once and reuses the buffers on later draws.
// Meshes are immutable; a regenerated mesh arrives as a new object.
func (b *OpenGL) uploadMesh(m *distortion.Mesh) (*glMesh, error) {
	if gm, ok := b.meshes[m]; ok {
		return gm, nil
	}

	// Interleave: position, then texR/texG/texB.
	data := make([]float32, 0, len(m.Vertices)*8)
	for _, v := range m.Vertices {
		data = append(data,
			v.Pos[0], v.Pos[1],
			v.TexR[0], v.TexR[1],
			v.TexG[0], v.TexG[1],
			v.TexB[0], v.TexB[1],
		)
	}

	gm := &glMesh{vertices: int32(len(m.Vertices))}
	gl.GenVertexArrays(1, &gm.vao)
	gl.BindVertexArray(gm.vao)

	gl.GenBuffers(1, &gm.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, gm.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)

	stride := int32(8 * 4)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, 2*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 4*4)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointerWithOffset(3, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(3)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	// Drop buffers of meshes the engine no longer references. Cache
	// growth is bounded by how often distortion parameters change, so a
	// simple size check is enough.
	if len(b.meshes) > 16 {
		for old, ogm := range b.meshes {
			gl.DeleteVertexArrays(1, &ogm.vao)
			gl.DeleteBuffers(1, &ogm.vbo)
			delete(b.meshes, old)
		}
	}
	b.meshes[m] = gm
	return gm, nil
}

// Present swaps the window surface.
func (b *OpenGL) Present() error {
	b.surface.Swap()
	return nil
}

// TimingInfo estimates refresh timing from the surface's swap history.
func (b *OpenGL) TimingInfo() (TimingInfo, bool) {
	interval, ok := b.surface.RefreshInterval()
	if !ok || interval <= 0 {
		return TimingInfo{}, false
	}
	since := b.surface.TimeSinceLastSwap() % interval
	return TimingInfo{
		HardwareInterval:             interval,
		TimeSinceLastRetrace:         since,
		TimeUntilNextPresentRequired: interval - since,
	}, true
}

// Conventions: OpenGL textures have a bottom-left origin and the
// uniform upload is column-major, so nothing needs flipping.
func (b *OpenGL) Conventions() Conventions {
	return Conventions{}
}

// Close releases all GL resources owned by the backend.
func (b *OpenGL) Close() {
	logger.Info("closing OpenGL backend")
	for _, gm := range b.meshes {
		gl.DeleteVertexArrays(1, &gm.vao)
		gl.DeleteBuffers(1, &gm.vbo)
	}
	for _, t := range b.targets {
		b.destroyTarget(t)
	}
	if b.program != 0 {
		gl.DeleteProgram(b.program)
	}
}

func (b *OpenGL) destroyTarget(t *glTarget) {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
	}
	if t.colorTexture != 0 {
		gl.DeleteTextures(1, &t.colorTexture)
	}
	if t.depthRBO != 0 {
		gl.DeleteRenderbuffers(1, &t.depthRBO)
	}
}
