package common

import (
	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

// The renderer records rendering scopes the way dynamic rendering describes them. On the core API these are
// single subpass render passes: one per attachment configuration, plus one framebuffer per set of views. Both
// are created on first use and kept until the views go away.

const MAX_COLOR_ATTACHMENTS = 8

type attachmentKey struct {
	format vk.Format
	layout vk.ImageLayout
	load   vk.AttachmentLoadOp
}

type renderPassKey struct {
	colors     [MAX_COLOR_ATTACHMENTS]attachmentKey
	colorCount int
	depth      attachmentKey
	hasDepth   bool
}

type framebufferKey struct {
	pass   renderPassKey
	views  [MAX_COLOR_ATTACHMENTS + 1]hal.ImageView
	width  uint32
	height uint32
}

type renderPassCache struct {
	device       vk.Device
	passes       map[renderPassKey]vk.RenderPass
	framebuffers map[framebufferKey]vk.Framebuffer
}

func newRenderPassCache(device vk.Device) *renderPassCache {
	return &renderPassCache{
		device:       device,
		passes:       make(map[renderPassKey]vk.RenderPass),
		framebuffers: make(map[framebufferKey]vk.Framebuffer),
	}
}

func toVkLoadOp(op hal.LoadOp) vk.AttachmentLoadOp {
	if op == hal.LoadOpLoad {
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpClear
}

func renderingKey(info hal.RenderingInfo) renderPassKey {
	if len(info.Color) > MAX_COLOR_ATTACHMENTS {
		panicf("%d color attachments exceed the limit of %d", len(info.Color), MAX_COLOR_ATTACHMENTS)
	}
	var key renderPassKey
	for i, c := range info.Color {
		key.colors[i] = attachmentKey{format: toVkFormat(c.Format), layout: toVkLayout(c.Layout), load: toVkLoadOp(c.Load)}
	}
	key.colorCount = len(info.Color)
	if info.Depth != nil {
		key.hasDepth = true
		key.depth = attachmentKey{
			format: toVkFormat(info.Depth.Format),
			layout: toVkLayout(info.Depth.Layout),
			load:   toVkLoadOp(info.Depth.Load),
		}
	}
	return key
}

// pipelineKey is the render pass a pipeline is created against. Compatibility only depends on formats, so the
// layouts and load ops are fixed.
func pipelineKey(colors []hal.Format, depth hal.Format) renderPassKey {
	if len(colors) > MAX_COLOR_ATTACHMENTS {
		panicf("%d color attachments exceed the limit of %d", len(colors), MAX_COLOR_ATTACHMENTS)
	}
	var key renderPassKey
	for i, f := range colors {
		key.colors[i] = attachmentKey{format: toVkFormat(f), layout: vk.ImageLayoutColorAttachmentOptimal, load: vk.AttachmentLoadOpClear}
	}
	key.colorCount = len(colors)
	if depth != hal.FormatUndefined {
		key.hasDepth = true
		key.depth = attachmentKey{format: toVkFormat(depth), layout: vk.ImageLayoutDepthStencilAttachmentOptimal, load: vk.AttachmentLoadOpClear}
	}
	return key
}

func (c *renderPassCache) renderPass(key renderPassKey) (vk.RenderPass, error) {
	if rp, ok := c.passes[key]; ok {
		return rp, nil
	}
	rp, err := c.createRenderPass(key)
	if err != nil {
		return nil, err
	}
	c.passes[key] = rp
	return rp, nil
}

// createRenderPass keeps every attachment in the layout it arrives in. Layout changes happen through explicit
// barriers before the scope begins.
func (c *renderPassCache) createRenderPass(key renderPassKey) (vk.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, 0, key.colorCount+1)
	colorRefs := make([]vk.AttachmentReference, key.colorCount)
	for i := 0; i < key.colorCount; i++ {
		a := key.colors[i]
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         a.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         a.load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.layout,
			FinalLayout:    a.layout,
		})
		colorRefs[i] = vk.AttachmentReference{Attachment: uint32(i), Layout: a.layout}
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if key.hasDepth {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.depth.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         key.depth.load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  key.depth.load,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  key.depth.layout,
			FinalLayout:    key.depth.layout,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(key.colorCount),
			Layout:     key.depth.layout,
		}
	}

	// Attachments written by an earlier scope in the same layout get no barrier, this dependency orders them.
	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageLateFragmentTestsBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
	}
	renderPassInfo := &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	return VkCreateRenderPass(c.device, renderPassInfo, nil)
}

func (c *renderPassCache) framebuffer(key framebufferKey, rp vk.RenderPass, views []vk.ImageView) (vk.Framebuffer, error) {
	if fb, ok := c.framebuffers[key]; ok {
		return fb, nil
	}
	framebufferInfo := &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           key.width,
		Height:          key.height,
		Layers:          1,
	}
	fb, err := VkCreateFrameBuffer(c.device, framebufferInfo, nil)
	if err != nil {
		return nil, err
	}
	c.framebuffers[key] = fb
	return fb, nil
}

// evict destroys every framebuffer that references view.
func (c *renderPassCache) evict(view hal.ImageView) {
	for key, fb := range c.framebuffers {
		for _, v := range key.views {
			if v == view {
				vk.DestroyFramebuffer(c.device, fb, nil)
				delete(c.framebuffers, key)
				break
			}
		}
	}
}

func (c *renderPassCache) destroy() {
	for key, fb := range c.framebuffers {
		vk.DestroyFramebuffer(c.device, fb, nil)
		delete(c.framebuffers, key)
	}
	for key, rp := range c.passes {
		vk.DestroyRenderPass(c.device, rp, nil)
		delete(c.passes, key)
	}
}
