// Package passes holds the render graph passes the executable draws with: a depth pre-pass, a forward scene
// pass reusing its depth and a composite pass tone mapping the scene into the graph output.
package passes

//go:generate glslc ../shaders/mesh.vert -o ../shaders/mesh.vert.spv
//go:generate glslc ../shaders/mesh.frag -o ../shaders/mesh.frag.spv
//go:generate glslc ../shaders/composite.vert -o ../shaders/composite.vert.spv
//go:generate glslc ../shaders/composite.frag -o ../shaders/composite.frag.spv

import (
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
	"GPU_render_graph/renderer"
)

// Attachment names shared between the passes.
const (
	DEPTH_ATTACHMENT = "depth"
	SCENE_ATTACHMENT = "scene"
	FINAL_ATTACHMENT = "final"
)

// Object is one mesh placed in the scene.
type Object struct {
	Mesh  *renderer.Mesh
	Model mgl32.Mat4
}

// Scene is what the depth and scene passes draw. The executable owns it and updates it between frames.
type Scene struct {
	Camera  *Camera
	Tint    mgl32.Vec4
	Objects []*Object
}

func NewScene(cam *Camera) *Scene {
	return &Scene{Camera: cam, Tint: mgl32.Vec4{1, 1, 1, 1}}
}

func (s *Scene) Add(mesh *renderer.Mesh, model mgl32.Mat4) *Object {
	o := &Object{Mesh: mesh, Model: model}
	s.Objects = append(s.Objects, o)
	return o
}

// writeCamera fills the u_global block both mesh shaders share.
func (s *Scene) writeCamera(sh *renderer.Shader, size hal.Extent2D) {
	view := s.Camera.View()
	proj := s.Camera.Projection(size)
	sh.SetUniform("u_global", "view", renderer.Mat4Bytes(&view))
	sh.SetUniform("u_global", "projection", renderer.Mat4Bytes(&proj))
	sh.SetUniform("u_global", "tint", renderer.Vec4Bytes(&s.Tint))
}

func (s *Scene) draw(sh *renderer.Shader, rec *renderer.CommandRecorder) {
	for _, o := range s.Objects {
		sh.PushConstants(rec, renderer.Mat4Bytes(&o.Model))
		o.Mesh.Draw(rec, 1)
	}
}

func loadShader(ctx *renderer.Context, dir, name string, target renderer.ShaderTarget) (*renderer.Shader, error) {
	sh, err := renderer.LoadShader(ctx, filepath.Join(dir, name+".json"), target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s shader", name)
	}
	return sh, nil
}

// Forward is the full pass chain, built against one set of shaders.
type Forward struct {
	Depth     *DepthPrepass
	Scene     *ScenePass
	Composite *CompositePass
}

// NewForward creates the three passes and adds them to g in execution order, with the composite output as the
// graph output. The caller still has to Build the graph.
func NewForward(g *renderer.RenderGraph, scene *Scene, shaderDir string, size hal.Extent2D) (*Forward, error) {
	ctx := g.Context()
	depth, err := NewDepthPrepass(ctx, scene, shaderDir, size)
	if err != nil {
		return nil, err
	}
	sp, err := NewScenePass(ctx, scene, shaderDir, size)
	if err != nil {
		depth.Destroy()
		return nil, err
	}
	comp, err := NewCompositePass(ctx, shaderDir, size)
	if err != nil {
		depth.Destroy()
		sp.Destroy()
		return nil, err
	}
	g.AddPass(depth)
	g.AddPass(sp)
	g.AddPass(comp)
	g.SetOutputAttachment(FINAL_ATTACHMENT)
	return &Forward{Depth: depth, Scene: sp, Composite: comp}, nil
}

func (f *Forward) Destroy() {
	f.Composite.Destroy()
	f.Scene.Destroy()
	f.Depth.Destroy()
}
