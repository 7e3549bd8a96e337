package renderer

import (
	"image"
	"image/color"
	"testing"

	"GPU_render_graph/hal"
	"GPU_render_graph/hal/haltest"
)

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{256, 256, 9},
		{1280, 720, 11},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := MipLevels(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestNewTextureWithMips(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex, err := NewTexture(ctx, checker(8, 4), true)
	if err != nil {
		t.Fatalf("NewTexture() error = %v", err)
	}
	defer tex.Destroy()

	if tex.MipLevels != 4 || tex.View == 0 {
		t.Fatalf("texture = %+v", tex)
	}
	desc, _ := dev.ImageDesc(tex.Image)
	if desc.MipLevels != 4 || desc.Format != TEXTURE_FORMAT || desc.Usage&hal.UsageSampled == 0 {
		t.Errorf("image desc = %+v", desc)
	}

	cb := dev.Submits[len(dev.Submits)-1].CommandBuffer.(*haltest.CommandBuffer)
	blits := cb.Filter(haltest.OpBlit)
	if len(blits) != 3 {
		t.Fatalf("blits = %d, want 3", len(blits))
	}
	wantDst := []hal.Extent3D{{Width: 4, Height: 2, Depth: 1}, {Width: 2, Height: 1, Depth: 1}, {Width: 1, Height: 1, Depth: 1}}
	for i, b := range blits {
		if b.Blit.SrcMip != uint32(i) || b.Blit.DstMip != uint32(i+1) || b.Blit.DstExtent != wantDst[i] {
			t.Errorf("blit %d = %+v", i, b.Blit)
		}
	}

	// every level must end up readable by shaders exactly once
	final := map[uint32]int{}
	for _, b := range cb.Barriers(tex.Image) {
		if b.NewLayout == hal.LayoutShaderReadOnly {
			final[b.BaseMip]++
		}
	}
	for level := uint32(0); level < tex.MipLevels; level++ {
		if final[level] != 1 {
			t.Errorf("mip %d moved to shader read only %d times", level, final[level])
		}
	}
	if len(cb.Filter(haltest.OpCopyBufferToImage)) != 1 {
		t.Error("pixels not copied into the image")
	}
}

func TestNewTextureSubImage(t *testing.T) {
	ctx, dev := newTestContext(t)
	sub := checker(16, 16).SubImage(image.Rect(4, 4, 8, 6))
	tex, err := NewTexture(ctx, sub, false)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()
	if tex.Extent != (hal.Extent3D{Width: 4, Height: 2, Depth: 1}) || tex.MipLevels != 1 {
		t.Errorf("texture = %+v", tex)
	}
	cb := dev.Submits[len(dev.Submits)-1].CommandBuffer.(*haltest.CommandBuffer)
	if len(cb.Filter(haltest.OpBlit)) != 0 {
		t.Error("blits recorded without mips")
	}
}

func TestVertexAndIndexBuffers(t *testing.T) {
	ctx, dev := newTestContext(t)

	if _, err := NewVertexBuffer(ctx, make([]byte, 30), 8); err == nil {
		t.Error("NewVertexBuffer() accepted data that is not a multiple of the stride")
	}
	vb, err := NewVertexBuffer(ctx, Float32Bytes([]float32{0, 0, 1, 0, 0, 1}), 8)
	if err != nil {
		t.Fatal(err)
	}
	ib, err := NewIndexBuffer(ctx, []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	mesh := &Mesh{Name: "tri", Vertices: vb, Indices: ib}
	defer mesh.Destroy()
	if vb.Count != 3 || ib.Count != 3 || ib.Size != 12 {
		t.Errorf("counts = %d/%d size %d", vb.Count, ib.Count, ib.Size)
	}

	cb := dev.Submits[len(dev.Submits)-1].CommandBuffer.(*haltest.CommandBuffer)
	copies := cb.Filter(haltest.OpCopyBuffer)
	if len(copies) != 1 || copies[0].Buffer != ib.Handle || copies[0].Count != 12 {
		t.Errorf("index upload copies = %+v", copies)
	}

	draw := &haltest.CommandBuffer{}
	mesh.Draw(NewCommandRecorder(draw), 1)
	idx := draw.Filter(haltest.OpDrawIndexed)
	if len(idx) != 1 || idx[0].Count != 3 {
		t.Errorf("draws = %+v", draw.Commands)
	}
}

func TestBufferWrite(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	gpu, err := NewBuffer(dev, 16, hal.BufferUsageVertex, hal.MemoryGPUOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := gpu.Write(0, []byte{1}); err == nil {
		t.Error("Write() to device local memory error = nil")
	}
	host, _ := NewBuffer(dev, 16, hal.BufferUsageUniform, hal.MemoryCPUToGPU)
	if err := host.Write(12, []byte{1, 2, 3, 4, 5}); err == nil {
		t.Error("Write() past the end error = nil")
	}
	if err := host.Write(12, []byte{1, 2, 3, 4}); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if _, err := NewBuffer(dev, 0, hal.BufferUsageUniform, hal.MemoryCPUToGPU); err == nil {
		t.Error("NewBuffer(0) error = nil")
	}
}
