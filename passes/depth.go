package passes

import (
	"GPU_render_graph/hal"
	"GPU_render_graph/renderer"
)

// DepthPrepass lays down scene depth so the scene pass shades every pixel once.
type DepthPrepass struct {
	renderer.PassBase
	scene  *Scene
	shader *renderer.Shader
}

func NewDepthPrepass(ctx *renderer.Context, scene *Scene, shaderDir string, size hal.Extent2D) (*DepthPrepass, error) {
	sh, err := loadShader(ctx, shaderDir, "depth", renderer.GraphTarget(ctx, 0, true))
	if err != nil {
		return nil, err
	}
	p := &DepthPrepass{PassBase: renderer.NewPassBase("depth prepass", size), scene: scene, shader: sh}
	p.AddOutputAttachment(DEPTH_ATTACHMENT, renderer.AttachmentDepth, size, renderer.StateClear)
	return p, nil
}

func (p *DepthPrepass) OnRender(g *renderer.RenderGraph) {
	rec := g.Recorder()
	p.scene.writeCamera(p.shader, p.Size)
	p.shader.Bind(rec)
	p.scene.draw(p.shader, rec)
}

func (p *DepthPrepass) Destroy() {
	p.shader.Destroy()
}
