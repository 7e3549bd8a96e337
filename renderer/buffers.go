package renderer

import (
	"fmt"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

// Buffer is a device buffer with the description it was created from.
type Buffer struct {
	dev    hal.Device
	Handle hal.Buffer
	Size   uint64
	Usage  hal.BufferUsage
	Memory hal.MemoryUsage
}

func NewBuffer(dev hal.Device, size uint64, usage hal.BufferUsage, memory hal.MemoryUsage) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer of zero size")
	}
	h, err := dev.CreateBuffer(hal.BufferDesc{Size: size, Usage: usage, Memory: memory})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create buffer of %d bytes", size)
	}
	return &Buffer{dev: dev, Handle: h, Size: size, Usage: usage, Memory: memory}, nil
}

// Write copies data into a host visible buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.Memory != hal.MemoryCPUToGPU {
		return fmt.Errorf("buffer %d is not host visible", b.Handle)
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d exceeds buffer size %d", len(data), offset, b.Size)
	}
	return b.dev.WriteBuffer(b.Handle, offset, data)
}

// Info describes the whole buffer for a descriptor write.
func (b *Buffer) Info() hal.BufferInfo {
	return hal.BufferInfo{Buffer: b.Handle, Range: b.Size}
}

func (b *Buffer) Destroy() {
	if b.Handle != 0 {
		b.dev.DestroyBuffer(b.Handle)
		b.Handle = 0
	}
}

// NewGPUBuffer creates a device local buffer filled with data through a staging buffer.
func NewGPUBuffer(ctx *Context, data []byte, usage hal.BufferUsage) (*Buffer, error) {
	size := uint64(len(data))
	staging, err := NewBuffer(ctx.Device(), size, hal.BufferUsageTransferSrc, hal.MemoryCPUToGPU)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Write(0, data); err != nil {
		return nil, errors.Wrap(err, "failed to fill staging buffer")
	}

	buf, err := NewBuffer(ctx.Device(), size, usage|hal.BufferUsageTransferDst, hal.MemoryGPUOnly)
	if err != nil {
		return nil, err
	}
	err = ctx.SubmitImmediate(func(rec *CommandRecorder) {
		rec.CopyBuffer(staging.Handle, buf.Handle, size)
	})
	if err != nil {
		buf.Destroy()
		return nil, errors.Wrap(err, "failed to upload buffer")
	}
	return buf, nil
}

// VertexBuffer holds interleaved vertices of a fixed stride.
type VertexBuffer struct {
	*Buffer
	Count uint32
}

func NewVertexBuffer(ctx *Context, data []byte, stride uint32) (*VertexBuffer, error) {
	if stride == 0 || uint64(len(data))%uint64(stride) != 0 {
		return nil, fmt.Errorf("vertex data of %d bytes is not a multiple of stride %d", len(data), stride)
	}
	buf, err := NewGPUBuffer(ctx, data, hal.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	return &VertexBuffer{Buffer: buf, Count: uint32(len(data)) / stride}, nil
}

func (v *VertexBuffer) Bind(rec *CommandRecorder) {
	rec.BindVertexBuffer(v.Handle)
}

type IndexBuffer struct {
	*Buffer
	Count uint32
	Type  hal.IndexType
}

func NewIndexBuffer(ctx *Context, indices []uint32) (*IndexBuffer, error) {
	buf, err := NewGPUBuffer(ctx, Uint32Bytes(indices), hal.BufferUsageIndex)
	if err != nil {
		return nil, err
	}
	return &IndexBuffer{Buffer: buf, Count: uint32(len(indices)), Type: hal.IndexUint32}, nil
}

func (ib *IndexBuffer) Bind(rec *CommandRecorder) {
	rec.BindIndexBuffer(ib.Handle, ib.Type)
}

// Mesh pairs a vertex buffer with an optional index buffer.
type Mesh struct {
	Name     string
	Vertices *VertexBuffer
	Indices  *IndexBuffer
}

// Draw binds the mesh and issues an indexed draw when it has indices.
func (m *Mesh) Draw(rec *CommandRecorder, instances uint32) {
	m.Vertices.Bind(rec)
	if m.Indices == nil {
		rec.Draw(m.Vertices.Count, instances)
		return
	}
	m.Indices.Bind(rec)
	rec.DrawIndexed(m.Indices.Count, instances)
}

func (m *Mesh) Destroy() {
	if m.Vertices != nil {
		m.Vertices.Destroy()
	}
	if m.Indices != nil {
		m.Indices.Destroy()
	}
}
