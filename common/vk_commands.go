package common

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

// REMAINING_MIP_LEVELS is VK_REMAINING_MIP_LEVELS.
const REMAINING_MIP_LEVELS = ^uint32(0)

// CommandBuffer records into a primary Vulkan command buffer. Handles passed to it are resolved through the device
// that allocated it, so recording with a stale handle panics.
type CommandBuffer struct {
	dc     *Device
	handle vk.CommandBuffer
}

var _ hal.CommandBuffer = (*CommandBuffer)(nil)

func (cb *CommandBuffer) Begin(oneTime bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTime {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return resultError(vk.BeginCommandBuffer(cb.handle, &beginInfo), "vkBeginCommandBuffer")
}

func (cb *CommandBuffer) End() error {
	return resultError(vk.EndCommandBuffer(cb.handle), "vkEndCommandBuffer")
}

// PipelineBarrier transitions the mip range of an image. Access masks and stages follow from the two layouts.
// A MipCount of 0 covers every level from BaseMip on.
func (cb *CommandBuffer) PipelineBarrier(b hal.ImageBarrier) {
	img := cb.dc.images.mustGet(uint64(b.Image), "image")
	srcAccess, srcStage := layoutSync(b.OldLayout)
	dstAccess, dstStage := layoutSync(b.NewLayout)
	levels := b.MipCount
	if levels == 0 {
		levels = REMAINING_MIP_LEVELS
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           toVkLayout(b.OldLayout),
		NewLayout:           toVkLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     barrierAspect(b.Aspect, img.format),
			BaseMipLevel:   b.BaseMip,
			LevelCount:     levels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(
		cb.handle,
		srcStage, dstStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
}

// barrierAspect adds the stencil aspect for combined depth stencil formats, whose layouts change together.
func barrierAspect(a hal.ImageAspect, format vk.Format) vk.ImageAspectFlags {
	if a&hal.AspectDepth != 0 && fromVkFormat(format).HasStencil() {
		a |= hal.AspectStencil
	}
	return toVkAspect(a)
}

func (cb *CommandBuffer) BlitImage(info hal.BlitInfo) {
	src := cb.dc.images.mustGet(uint64(info.Src), "image")
	dst := cb.dc.images.mustGet(uint64(info.Dst), "image")
	aspect := toVkAspect(info.Aspect)
	region := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       info.SrcMip,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcOffsets: [2]vk.Offset3D{{}, blitCorner(info.SrcExtent)},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       info.DstMip,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		DstOffsets: [2]vk.Offset3D{{}, blitCorner(info.DstExtent)},
	}
	filter := vk.FilterLinear
	if info.Aspect&hal.AspectColor == 0 {
		filter = vk.FilterNearest
	}
	vk.CmdBlitImage(cb.handle,
		src.handle, toVkLayout(info.SrcLayout),
		dst.handle, toVkLayout(info.DstLayout),
		1, []vk.ImageBlit{region}, filter)
}

func (cb *CommandBuffer) CopyBuffer(src, dst hal.Buffer, srcOffset, dstOffset, size uint64) {
	copyRegions := []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}}
	vk.CmdCopyBuffer(cb.handle,
		cb.dc.buffers.mustGet(uint64(src), "buffer").handle,
		cb.dc.buffers.mustGet(uint64(dst), "buffer").handle,
		1, copyRegions)
}

// CopyBufferToImage fills mip 0 of a color image from tightly packed buffer contents.
func (cb *CommandBuffer) CopyBufferToImage(src hal.Buffer, dst hal.Image, layout hal.ImageLayout, extent hal.Extent3D) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: max(extent.Depth, 1)},
	}
	vk.CmdCopyBufferToImage(cb.handle,
		cb.dc.buffers.mustGet(uint64(src), "buffer").handle,
		cb.dc.images.mustGet(uint64(dst), "image").handle,
		toVkLayout(layout), 1, []vk.BufferImageCopy{region})
}

// BeginRendering begins a render pass matching info. The attachment layouts must already be in place.
func (cb *CommandBuffer) BeginRendering(info hal.RenderingInfo) {
	key := renderingKey(info)
	rp, err := cb.dc.passes.renderPass(key)
	if err != nil {
		panicf("failed to create render pass: %v", err)
	}

	fbKey := framebufferKey{pass: key, width: info.Area.Width, height: info.Area.Height}
	views := make([]vk.ImageView, 0, len(info.Color)+1)
	clearValues := make([]vk.ClearValue, 0, len(info.Color)+1)
	for i, c := range info.Color {
		fbKey.views[i] = c.View
		views = append(views, cb.dc.views.mustGet(uint64(c.View), "image view").handle)
		clearValues = append(clearValues, vk.NewClearValue(c.Clear.Color[:]))
	}
	if d := info.Depth; d != nil {
		fbKey.views[len(info.Color)] = d.View
		views = append(views, cb.dc.views.mustGet(uint64(d.View), "image view").handle)
		clearValues = append(clearValues, vk.NewClearDepthStencil(d.Clear.Depth, d.Clear.Stencil))
	}
	fb, err := cb.dc.passes.framebuffer(fbKey, rp, views)
	if err != nil {
		panicf("failed to create framebuffer: %v", err)
	}

	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toVkExtent(info.Area),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cb.handle, &renderPassInfo, vk.SubpassContentsInline)
}

func (cb *CommandBuffer) EndRendering() {
	vk.CmdEndRenderPass(cb.handle)
}

func (cb *CommandBuffer) SetViewport(v hal.Viewport) {
	viewport := []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}}
	vk.CmdSetViewport(cb.handle, 0, 1, viewport)
}

func (cb *CommandBuffer) SetScissor(r hal.Rect) {
	scissor := []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: toVkExtent(r.Extent),
	}}
	vk.CmdSetScissor(cb.handle, 0, 1, scissor)
}

func (cb *CommandBuffer) BindPipeline(p hal.Pipeline) {
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointGraphics, cb.dc.pipelines.mustGet(uint64(p), "pipeline"))
}

func (cb *CommandBuffer) BindDescriptorSet(layout hal.PipelineLayout, index uint32, set hal.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb.handle, vk.PipelineBindPointGraphics,
		cb.dc.pipeLayouts.mustGet(uint64(layout), "pipeline layout"),
		index, 1, []vk.DescriptorSet{cb.dc.sets.mustGet(uint64(set), "descriptor set")},
		0, nil)
}

func (cb *CommandBuffer) BindVertexBuffer(buf hal.Buffer, offset uint64) {
	vertBuffers := []vk.Buffer{cb.dc.buffers.mustGet(uint64(buf), "buffer").handle}
	offsets := []vk.DeviceSize{vk.DeviceSize(offset)}
	vk.CmdBindVertexBuffers(cb.handle, 0, uint32(len(vertBuffers)), vertBuffers, offsets)
}

func (cb *CommandBuffer) BindIndexBuffer(buf hal.Buffer, offset uint64, t hal.IndexType) {
	vk.CmdBindIndexBuffer(cb.handle, cb.dc.buffers.mustGet(uint64(buf), "buffer").handle, vk.DeviceSize(offset), toVkIndexType(t))
}

func (cb *CommandBuffer) PushConstants(layout hal.PipelineLayout, stages hal.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(cb.handle,
		cb.dc.pipeLayouts.mustGet(uint64(layout), "pipeline layout"),
		toVkStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
