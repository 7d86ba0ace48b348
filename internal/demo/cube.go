package demo

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/asgard-vr/internal/engine/shader"
	"github.com/Faultbox/asgard-vr/internal/rendermanager"
	"github.com/Faultbox/asgard-vr/pkg/math"
)

const cubeVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aColor;

uniform mat4 uMVP;

out vec3 vColor;

void main() {
	gl_Position = uMVP * vec4(aPos, 1.0);
	vColor = aColor;
}
`

const cubeFragmentShader = `
#version 410 core

in vec3 vColor;
out vec4 FragColor;

void main() {
	FragColor = vec4(vColor, 1.0);
}
`

// cubeRenderer draws a unit cube with a solid color per face.
type cubeRenderer struct {
	program  uint32
	uMVP     int32
	vao      uint32
	vbo      uint32
	vertices int32
}

func newCubeRenderer() (*cubeRenderer, error) {
	program, err := shader.CompileProgram(cubeVertexShader, cubeFragmentShader)
	if err != nil {
		return nil, err
	}

	vertices := cubeVertices()
	c := &cubeRenderer{
		program:  program,
		uMVP:     shader.MustGetUniform(program, "uMVP"),
		vertices: int32(len(vertices) / 6),
	}

	gl.GenVertexArrays(1, &c.vao)
	gl.BindVertexArray(c.vao)
	gl.GenBuffers(1, &c.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 6*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, 6*4, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	return c, nil
}

// draw renders the cube for one eye. The render manager has already
// bound the eye buffer and set the viewport.
func (c *cubeRenderer) draw(info rendermanager.RenderInfo, model math.Mat4) error {
	gl.ClearColor(0.05, 0.05, 0.1, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.Enable(gl.DEPTH_TEST)

	view := info.Pose.Invert().ToMat4()
	mvp := info.Projection.Matrix().Mul(view).Mul(model)

	gl.UseProgram(c.program)
	gl.UniformMatrix4fv(c.uMVP, 1, false, mvp.Ptr())
	gl.BindVertexArray(c.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, c.vertices)
	gl.BindVertexArray(0)
	return nil
}

func (c *cubeRenderer) close() {
	gl.DeleteVertexArrays(1, &c.vao)
	gl.DeleteBuffers(1, &c.vbo)
	gl.DeleteProgram(c.program)
}

// cubeVertices lists position and color for 12 triangles, one color
// per face.
func cubeVertices() []float32 {
	faces := []struct {
		corners [4][3]float32
		color   [3]float32
	}{
		{ // +Z front, red
			[4][3]float32{{-.5, -.5, .5}, {.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}},
			[3]float32{0.8, 0.2, 0.2},
		},
		{ // -Z back, green
			[4][3]float32{{.5, -.5, -.5}, {-.5, -.5, -.5}, {-.5, .5, -.5}, {.5, .5, -.5}},
			[3]float32{0.2, 0.8, 0.2},
		},
		{ // +X right, blue
			[4][3]float32{{.5, -.5, .5}, {.5, -.5, -.5}, {.5, .5, -.5}, {.5, .5, .5}},
			[3]float32{0.2, 0.2, 0.8},
		},
		{ // -X left, yellow
			[4][3]float32{{-.5, -.5, -.5}, {-.5, -.5, .5}, {-.5, .5, .5}, {-.5, .5, -.5}},
			[3]float32{0.8, 0.8, 0.2},
		},
		{ // +Y top, cyan
			[4][3]float32{{-.5, .5, .5}, {.5, .5, .5}, {.5, .5, -.5}, {-.5, .5, -.5}},
			[3]float32{0.2, 0.8, 0.8},
		},
		{ // -Y bottom, magenta
			[4][3]float32{{-.5, -.5, -.5}, {.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}},
			[3]float32{0.8, 0.2, 0.8},
		},
	}

	out := make([]float32, 0, 36*6)
	for _, f := range faces {
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			out = append(out, f.corners[i][0], f.corners[i][1], f.corners[i][2])
			out = append(out, f.color[0], f.color[1], f.color[2])
		}
	}
	return out
}
