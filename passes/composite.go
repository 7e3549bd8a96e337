package passes

import (
	"slices"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
	"GPU_render_graph/renderer"
)

const DEFAULT_EXPOSURE = 1.0

// CompositePass tone maps the scene attachment into the graph output with a single full screen triangle.
type CompositePass struct {
	renderer.PassBase
	Exposure float32

	ctx     *renderer.Context
	shader  *renderer.Shader
	sampler *renderer.Sampler
	// one set per scene view, built the first time a frame slot samples it
	sets  map[hal.ImageView]hal.DescriptorSet
	alloc *renderer.Allocator
}

func NewCompositePass(ctx *renderer.Context, shaderDir string, size hal.Extent2D) (*CompositePass, error) {
	sh, err := loadShader(ctx, shaderDir, "composite", renderer.GraphTarget(ctx, 1, false))
	if err != nil {
		return nil, err
	}
	sampler, err := renderer.NewSampler(ctx.Device(), hal.SamplerDesc{
		MinFilter:   hal.FilterLinear,
		MagFilter:   hal.FilterLinear,
		MipFilter:   hal.FilterNearest,
		AddressMode: hal.AddressClampToEdge,
	})
	if err != nil {
		sh.Destroy()
		return nil, err
	}
	p := &CompositePass{
		PassBase: renderer.NewPassBase("composite", size),
		Exposure: DEFAULT_EXPOSURE,
		ctx:      ctx,
		shader:   sh,
		sampler:  sampler,
		sets:     map[hal.ImageView]hal.DescriptorSet{},
		alloc:    renderer.NewAllocator(ctx.Device(), uint32(ctx.Frames().Count()), nil),
	}
	p.AddInputAttachment(SCENE_ATTACHMENT, renderer.AttachmentColor, size, renderer.StateLoad)
	p.AddOutputAttachment(FINAL_ATTACHMENT, renderer.AttachmentColor, size, renderer.StateClear)
	return p, nil
}

// sceneSet returns the descriptor set sampling the current slot's scene image. Once a resize has replaced the
// scene views every cached set is stale, so the pass resets its own pools and starts over. Resize waited for
// the device, so no frame in flight still reads them.
func (p *CompositePass) sceneSet(g *renderer.RenderGraph) (hal.DescriptorSet, error) {
	view := g.AttachmentView(SCENE_ATTACHMENT)
	if set, ok := p.sets[view]; ok {
		return set, nil
	}
	live := g.AttachmentViews(SCENE_ATTACHMENT)
	for v := range p.sets {
		if !slices.Contains(live, v) {
			p.alloc.ResetPools()
			clear(p.sets)
			break
		}
	}
	set, _, err := renderer.BuildTextureArraySet(p.ctx.LayoutCache(), p.alloc,
		[]hal.ImageView{view}, p.sampler.Handle, 0, hal.StageFragment)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build scene descriptor set")
	}
	p.sets[view] = set
	return set, nil
}

func (p *CompositePass) OnRender(g *renderer.RenderGraph) {
	set, err := p.sceneSet(g)
	if err != nil {
		renderer.Logger().Error("composite skipped", "pass", p.Name, "err", err)
		return
	}
	rec := g.Recorder()
	rec.BindPipeline(p.shader.Pipeline)
	rec.BindDescriptorSet(p.shader.Layout, 0, set)
	p.shader.PushConstants(rec, renderer.Float32Bytes([]float32{p.Exposure}))
	rec.Draw(3, 1)
}

func (p *CompositePass) Destroy() {
	p.shader.Destroy()
	p.sampler.Destroy()
	p.alloc.Shutdown()
}
