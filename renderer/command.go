package renderer

import "GPU_render_graph/hal"

// CommandRecorder wraps a hal.CommandBuffer with the recording helpers the renderer needs. Image layout changes
// go through TransitionLayout so the barrier and the caller's view of the layout never disagree.
type CommandRecorder struct {
	cmd hal.CommandBuffer
}

func NewCommandRecorder(cmd hal.CommandBuffer) *CommandRecorder {
	return &CommandRecorder{cmd: cmd}
}

func (r *CommandRecorder) Handle() hal.CommandBuffer {
	return r.cmd
}

func (r *CommandRecorder) Begin() error {
	return r.cmd.Begin(true)
}

func (r *CommandRecorder) End() error {
	return r.cmd.End()
}

// aspectFor guesses the aspect of an image from the layouts it moves between.
func aspectFor(from, to hal.ImageLayout) hal.ImageAspect {
	if from == hal.LayoutDepthAttachment || to == hal.LayoutDepthAttachment {
		return hal.AspectDepth
	}
	return hal.AspectColor
}

// TransitionLayout moves every mip level of img from one layout to another. Depth images are recognized by either layout
// being the depth attachment layout. Use TransitionAspect for a depth image moving between other layouts.
func (r *CommandRecorder) TransitionLayout(img hal.Image, from, to hal.ImageLayout) {
	r.TransitionAspect(img, aspectFor(from, to), from, to)
}

func (r *CommandRecorder) TransitionAspect(img hal.Image, aspect hal.ImageAspect, from, to hal.ImageLayout) {
	r.TransitionMips(img, aspect, from, to, 0, 0)
}

// TransitionMips moves mipCount levels starting at baseMip. A mipCount of zero means all remaining levels.
func (r *CommandRecorder) TransitionMips(img hal.Image, aspect hal.ImageAspect, from, to hal.ImageLayout, baseMip, mipCount uint32) {
	r.cmd.PipelineBarrier(hal.ImageBarrier{
		Image:     img,
		Aspect:    aspect,
		OldLayout: from,
		NewLayout: to,
		BaseMip:   baseMip,
		MipCount:  mipCount,
	})
}

// CopyImageToImage blits the first mip of src onto dst, scaling between the extents. src must be in
// TransferSrc and dst in TransferDst layout.
func (r *CommandRecorder) CopyImageToImage(src, dst hal.Image, srcSize, dstSize hal.Extent3D) {
	r.BlitMip(src, dst, srcSize, dstSize, 0, 0, hal.AspectColor)
}

func (r *CommandRecorder) BlitMip(src, dst hal.Image, srcSize, dstSize hal.Extent3D, srcMip, dstMip uint32, aspect hal.ImageAspect) {
	r.cmd.BlitImage(hal.BlitInfo{
		Src:       src,
		SrcLayout: hal.LayoutTransferSrc,
		SrcExtent: srcSize,
		SrcMip:    srcMip,
		Dst:       dst,
		DstLayout: hal.LayoutTransferDst,
		DstExtent: dstSize,
		DstMip:    dstMip,
		Aspect:    aspect,
	})
}

func (r *CommandRecorder) CopyBuffer(src, dst hal.Buffer, size uint64) {
	r.cmd.CopyBuffer(src, dst, 0, 0, size)
}

// CopyBufferToImage expects dst in TransferDst layout.
func (r *CommandRecorder) CopyBufferToImage(src hal.Buffer, dst hal.Image, extent hal.Extent3D) {
	r.cmd.CopyBufferToImage(src, dst, hal.LayoutTransferDst, extent)
}

func (r *CommandRecorder) BeginRendering(info hal.RenderingInfo) {
	r.cmd.BeginRendering(info)
}

func (r *CommandRecorder) EndRendering() {
	r.cmd.EndRendering()
}

// SetViewport covers the whole extent with the standard 0..1 depth range.
func (r *CommandRecorder) SetViewport(size hal.Extent2D) {
	r.cmd.SetViewport(hal.Viewport{
		Width:    float32(size.Width),
		Height:   float32(size.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
}

func (r *CommandRecorder) SetScissor(size hal.Extent2D) {
	r.cmd.SetScissor(hal.Rect{Extent: size})
}

func (r *CommandRecorder) BindPipeline(p hal.Pipeline) {
	r.cmd.BindPipeline(p)
}

func (r *CommandRecorder) BindDescriptorSet(layout hal.PipelineLayout, index uint32, set hal.DescriptorSet) {
	r.cmd.BindDescriptorSet(layout, index, set)
}

func (r *CommandRecorder) BindVertexBuffer(buf hal.Buffer) {
	r.cmd.BindVertexBuffer(buf, 0)
}

func (r *CommandRecorder) BindIndexBuffer(buf hal.Buffer, t hal.IndexType) {
	r.cmd.BindIndexBuffer(buf, 0, t)
}

func (r *CommandRecorder) PushConstants(layout hal.PipelineLayout, stages hal.ShaderStage, data []byte) {
	r.cmd.PushConstants(layout, stages, 0, data)
}

func (r *CommandRecorder) Draw(vertexCount, instanceCount uint32) {
	r.cmd.Draw(vertexCount, instanceCount, 0, 0)
}

func (r *CommandRecorder) DrawIndexed(indexCount, instanceCount uint32) {
	r.cmd.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}
