package passes

import (
	"github.com/go-gl/mathgl/mgl32"

	"GPU_render_graph/renderer"
)

// VERTEX_STRIDE is the size of Vertex as the mesh shaders read it: position, color, texture coordinate.
const VERTEX_STRIDE = 32

type Vertex struct {
	Pos      mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// vertexFloats flattens vertices into the interleaved layout of the vertex buffer.
func vertexFloats(v []Vertex) []float32 {
	out := make([]float32, 0, len(v)*VERTEX_STRIDE/4)
	for _, x := range v {
		out = append(out, x.Pos[:]...)
		out = append(out, x.Color[:]...)
		out = append(out, x.TexCoord[:]...)
	}
	return out
}

// NewMesh uploads vertices and indices into device local buffers.
func NewMesh(ctx *renderer.Context, name string, v []Vertex, indices []uint32) (*renderer.Mesh, error) {
	vb, err := renderer.NewVertexBuffer(ctx, renderer.Float32Bytes(vertexFloats(v)), VERTEX_STRIDE)
	if err != nil {
		return nil, err
	}
	m := &renderer.Mesh{Name: name, Vertices: vb}
	if len(indices) > 0 {
		if m.Indices, err = renderer.NewIndexBuffer(ctx, indices); err != nil {
			vb.Destroy()
			return nil, err
		}
	}
	return m, nil
}

func CubeGeometry() ([]Vertex, []uint32) {
	v := []Vertex{
		{Pos: mgl32.Vec3{-0.5, -0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 1}},
		{Pos: mgl32.Vec3{0.5, -0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 1}},
		{Pos: mgl32.Vec3{0.5, 0.5, -0.5}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 0}},
		{Pos: mgl32.Vec3{-0.5, 0.5, -0.5}, Color: mgl32.Vec3{1, 0.5, 1}, TexCoord: mgl32.Vec2{1, 0}},
		{Pos: mgl32.Vec3{-0.5, -0.5, 0.5}, Color: mgl32.Vec3{1, 0.5, 0.5}, TexCoord: mgl32.Vec2{1, 1}},
		{Pos: mgl32.Vec3{0.5, -0.5, 0.5}, Color: mgl32.Vec3{0.5, 1, 0.5}, TexCoord: mgl32.Vec2{0, 1}},
		{Pos: mgl32.Vec3{0.5, 0.5, 0.5}, Color: mgl32.Vec3{0.5, 0.5, 1}, TexCoord: mgl32.Vec2{0, 0}},
		{Pos: mgl32.Vec3{-0.5, 0.5, 0.5}, Color: mgl32.Vec3{0, 0.5, 0}, TexCoord: mgl32.Vec2{1, 0}},
	}
	id := []uint32{
		2, 1, 0, 0, 3, 2, // front
		5, 1, 6, 1, 2, 6, // right
		4, 5, 6, 7, 4, 6, // back
		4, 7, 0, 0, 7, 3, // left
		0, 1, 5, 5, 4, 0, // top
		3, 7, 6, 2, 3, 6, // bottom
	}
	return v, id
}

// PlaneGeometry is a square of side 2 in the XZ plane, facing up.
func PlaneGeometry() ([]Vertex, []uint32) {
	v := []Vertex{
		{Pos: mgl32.Vec3{-1, 0, -1}, Color: mgl32.Vec3{0.6, 0.6, 0.6}, TexCoord: mgl32.Vec2{0, 0}},
		{Pos: mgl32.Vec3{-1, 0, 1}, Color: mgl32.Vec3{0.6, 0.6, 0.6}, TexCoord: mgl32.Vec2{0, 1}},
		{Pos: mgl32.Vec3{1, 0, 1}, Color: mgl32.Vec3{0.6, 0.6, 0.6}, TexCoord: mgl32.Vec2{1, 1}},
		{Pos: mgl32.Vec3{1, 0, -1}, Color: mgl32.Vec3{0.6, 0.6, 0.6}, TexCoord: mgl32.Vec2{1, 0}},
	}
	id := []uint32{
		0, 1, 2,
		2, 3, 0,
	}
	return v, id
}
