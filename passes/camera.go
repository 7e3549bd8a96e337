package passes

import (
	"github.com/go-gl/mathgl/mgl32"

	"GPU_render_graph/hal"
)

const (
	CAM_PERSPECTIVE_PROJECTION = iota
	CAM_ORTHOGRAPHIC_PROJECTION
)

// vulkanClip takes OpenGL clip space, which mgl32 produces, to Vulkan's: Y points down and depth runs from 0 to 1.
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type Camera struct {
	ProjectionType int

	// vertical field of view in degrees
	Fov  float32
	Near float32
	Far  float32

	Pos        mgl32.Vec3
	LookDir    mgl32.Vec3
	LookTarget *mgl32.Vec3
	Up         mgl32.Vec3
}

func NewCamera(fov float32, near float32, far float32) *Camera {
	return &Camera{
		Fov:     fov,
		Near:    near,
		Far:     far,
		LookDir: mgl32.Vec3{0, 0, -1},
		Up:      mgl32.Vec3{0, 1, 0},
	}
}

func (c *Camera) Move(v mgl32.Vec3) {
	c.Pos = c.Pos.Add(v)
}

// Turn rotates the look direction around axis. It has no effect while a target is set.
func (c *Camera) Turn(deg float32, axis mgl32.Vec3) {
	q := mgl32.QuatRotate(mgl32.DegToRad(deg), axis.Normalize())
	c.LookDir = q.Rotate(c.LookDir)
}

func (c *Camera) SetTarget(v mgl32.Vec3) {
	c.LookTarget = &v
}

func (c *Camera) ClearTarget() {
	c.LookTarget = nil
}

// Projection maps the view volume onto Vulkan's clip space for a viewport of size.
func (c *Camera) Projection(size hal.Extent2D) mgl32.Mat4 {
	aspect := float32(1)
	if size.Height > 0 {
		aspect = float32(size.Width) / float32(size.Height)
	}
	var p mgl32.Mat4
	switch c.ProjectionType {
	case CAM_ORTHOGRAPHIC_PROJECTION:
		p = mgl32.Ortho(-aspect, aspect, -1, 1, c.Near, c.Far)
	default:
		p = mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
	}
	return vulkanClip.Mul4(p)
}

func (c *Camera) View() mgl32.Mat4 {
	if c.LookTarget != nil {
		return mgl32.LookAtV(c.Pos, *c.LookTarget, c.Up)
	}
	return mgl32.LookAtV(c.Pos, c.Pos.Add(c.LookDir), c.Up)
}
