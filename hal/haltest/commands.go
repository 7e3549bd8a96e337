package haltest

import (
	"fmt"

	"GPU_render_graph/hal"
)

type Op int

const (
	OpBarrier Op = iota
	OpBlit
	OpCopyBuffer
	OpCopyBufferToImage
	OpBeginRendering
	OpEndRendering
	OpViewport
	OpScissor
	OpBindPipeline
	OpBindDescriptorSet
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpPushConstants
	OpDraw
	OpDrawIndexed
)

var opNames = []string{
	"barrier", "blit", "copy_buffer", "copy_buffer_to_image", "begin_rendering", "end_rendering",
	"viewport", "scissor", "bind_pipeline", "bind_descriptor_set", "bind_vertex_buffer",
	"bind_index_buffer", "push_constants", "draw", "draw_indexed",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op        Op
	Barrier   hal.ImageBarrier
	Blit      hal.BlitInfo
	Rendering hal.RenderingInfo
	Viewport  hal.Viewport
	Scissor   hal.Rect
	Pipeline  hal.Pipeline
	Set       hal.DescriptorSet
	SetIndex  uint32
	Src       hal.Buffer
	Buffer    hal.Buffer
	Image     hal.Image
	Data      []byte
	Count     uint32
}

// CommandBuffer records commands in order. Resetting its pool clears them.
type CommandBuffer struct {
	recording bool
	begun     int
	Commands  []Command
}

func (c *CommandBuffer) reset() {
	c.recording = false
	c.Commands = nil
}

// Recording reports whether Begin was called without a matching End.
func (c *CommandBuffer) Recording() bool { return c.recording }

// Begins counts the calls to Begin over the buffer's lifetime.
func (c *CommandBuffer) Begins() int { return c.begun }

// Filter returns the recorded commands of one kind.
func (c *CommandBuffer) Filter(op Op) []Command {
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Op == op {
			out = append(out, cmd)
		}
	}
	return out
}

// Barriers returns the recorded barriers that touch img.
func (c *CommandBuffer) Barriers(img hal.Image) []hal.ImageBarrier {
	var out []hal.ImageBarrier
	for _, cmd := range c.Commands {
		if cmd.Op == OpBarrier && cmd.Barrier.Image == img {
			out = append(out, cmd.Barrier)
		}
	}
	return out
}

func (c *CommandBuffer) Begin(bool) error {
	if c.recording {
		return fmt.Errorf("haltest: begin on a recording command buffer")
	}
	c.recording = true
	c.begun++
	c.Commands = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("haltest: end on a command buffer that is not recording")
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) PipelineBarrier(b hal.ImageBarrier) {
	c.add(Command{Op: OpBarrier, Barrier: b})
}

func (c *CommandBuffer) BlitImage(info hal.BlitInfo) { c.add(Command{Op: OpBlit, Blit: info}) }

func (c *CommandBuffer) CopyBuffer(src, dst hal.Buffer, _, _, size uint64) {
	c.add(Command{Op: OpCopyBuffer, Src: src, Buffer: dst, Count: uint32(size)})
}

func (c *CommandBuffer) CopyBufferToImage(src hal.Buffer, dst hal.Image, _ hal.ImageLayout, _ hal.Extent3D) {
	c.add(Command{Op: OpCopyBufferToImage, Buffer: src, Image: dst})
}

func (c *CommandBuffer) BeginRendering(info hal.RenderingInfo) {
	c.add(Command{Op: OpBeginRendering, Rendering: info})
}

func (c *CommandBuffer) EndRendering() { c.add(Command{Op: OpEndRendering}) }

func (c *CommandBuffer) SetViewport(v hal.Viewport) {
	c.add(Command{Op: OpViewport, Viewport: v})
}

func (c *CommandBuffer) SetScissor(r hal.Rect) { c.add(Command{Op: OpScissor, Scissor: r}) }

func (c *CommandBuffer) BindPipeline(p hal.Pipeline) {
	c.add(Command{Op: OpBindPipeline, Pipeline: p})
}

func (c *CommandBuffer) BindDescriptorSet(_ hal.PipelineLayout, index uint32, set hal.DescriptorSet) {
	c.add(Command{Op: OpBindDescriptorSet, Set: set, SetIndex: index})
}

func (c *CommandBuffer) BindVertexBuffer(buf hal.Buffer, _ uint64) {
	c.add(Command{Op: OpBindVertexBuffer, Buffer: buf})
}

func (c *CommandBuffer) BindIndexBuffer(buf hal.Buffer, _ uint64, _ hal.IndexType) {
	c.add(Command{Op: OpBindIndexBuffer, Buffer: buf})
}

func (c *CommandBuffer) PushConstants(_ hal.PipelineLayout, _ hal.ShaderStage, _ uint32, data []byte) {
	c.add(Command{Op: OpPushConstants, Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) Draw(vertexCount, _, _, _ uint32) {
	c.add(Command{Op: OpDraw, Count: vertexCount})
}

func (c *CommandBuffer) DrawIndexed(indexCount, _, _ uint32, _ int32, _ uint32) {
	c.add(Command{Op: OpDrawIndexed, Count: indexCount})
}
