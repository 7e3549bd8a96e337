package passes

import (
	"github.com/go-gl/mathgl/mgl32"

	"GPU_render_graph/hal"
	"GPU_render_graph/renderer"
)

// ScenePass shades the scene into an HDR color attachment, testing against the depth of the pre-pass.
type ScenePass struct {
	renderer.PassBase
	scene  *Scene
	shader *renderer.Shader
}

func NewScenePass(ctx *renderer.Context, scene *Scene, shaderDir string, size hal.Extent2D) (*ScenePass, error) {
	sh, err := loadShader(ctx, shaderDir, "mesh", renderer.GraphTarget(ctx, 1, true))
	if err != nil {
		return nil, err
	}
	p := &ScenePass{PassBase: renderer.NewPassBase("scene", size), scene: scene, shader: sh}
	p.ColorClear = mgl32.Vec4{0.02, 0.02, 0.03, 1}
	p.AddOutputAttachment(SCENE_ATTACHMENT, renderer.AttachmentColor, size, renderer.StateClear)
	p.AddOutputAttachment(DEPTH_ATTACHMENT, renderer.AttachmentDepth, size, renderer.StateLoad)
	return p, nil
}

func (p *ScenePass) OnRender(g *renderer.RenderGraph) {
	rec := g.Recorder()
	p.scene.writeCamera(p.shader, p.Size)
	p.shader.Bind(rec)
	p.scene.draw(p.shader, rec)
}

func (p *ScenePass) Destroy() {
	p.shader.Destroy()
}
