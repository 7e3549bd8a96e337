package renderer

import (
	"testing"
	"time"

	"GPU_render_graph/hal"
	"GPU_render_graph/hal/haltest"
)

func newTestContext(t *testing.T) (*Context, *haltest.Device) {
	t.Helper()
	dev := haltest.NewDevice(hal.Extent2D{Width: 800, Height: 600})
	cfg := DefaultConfig()
	cfg.Renderer.FenceTimeout = 2 * time.Second
	ctx, err := NewContext(dev, cfg)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(ctx.Shutdown)
	return ctx, dev
}

func TestNewContext(t *testing.T) {
	ctx, dev := newTestContext(t)
	if got := ctx.Frames().Count(); got != DEFAULT_FRAMES_IN_FLIGHT {
		t.Errorf("Frames().Count() = %d, want %d", got, DEFAULT_FRAMES_IN_FLIGHT)
	}
	if ctx.DepthFormat() != dev.DepthFormat {
		t.Errorf("DepthFormat() = %v, want %v", ctx.DepthFormat(), dev.DepthFormat)
	}
	for i := 0; i < ctx.Frames().Count(); i++ {
		f := ctx.Frames().frames[i]
		if !dev.FenceSignaled(f.Fence) {
			t.Errorf("frame %d fence not created signalled", i)
		}
		if f.PresentSemaphore == f.RenderSemaphore {
			t.Errorf("frame %d shares one semaphore for acquire and render", i)
		}
	}
}

func TestNewContextRejectsInvalidConfig(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 800, Height: 600})
	cfg := DefaultConfig()
	cfg.Renderer.FramesInFlight = 0
	if _, err := NewContext(dev, cfg); err == nil {
		t.Fatal("NewContext() error = nil with zero frames in flight")
	}
}

func TestSubmitImmediate(t *testing.T) {
	ctx, dev := newTestContext(t)
	src, _ := dev.CreateBuffer(hal.BufferDesc{Size: 64})
	dst, _ := dev.CreateBuffer(hal.BufferDesc{Size: 64})

	for i := 0; i < 2; i++ {
		err := ctx.SubmitImmediate(func(rec *CommandRecorder) {
			rec.CopyBuffer(src, dst, 64)
		})
		if err != nil {
			t.Fatalf("SubmitImmediate() #%d error = %v", i, err)
		}
	}
	if len(dev.Submits) != 2 {
		t.Fatalf("submits = %d, want 2", len(dev.Submits))
	}
	last := dev.Submits[1]
	if last.Fence != ctx.uploadFence {
		t.Errorf("submit fence = %d, want upload fence %d", last.Fence, ctx.uploadFence)
	}
	if last.Wait != 0 || last.Signal != 0 {
		t.Errorf("immediate submit uses semaphores: wait %d signal %d", last.Wait, last.Signal)
	}
	if dev.FenceSignaled(ctx.uploadFence) {
		t.Error("upload fence left signalled after SubmitImmediate")
	}
	cb := last.CommandBuffer.(*haltest.CommandBuffer)
	copies := cb.Filter(haltest.OpCopyBuffer)
	if len(copies) != 1 || copies[0].Src != src || copies[0].Buffer != dst {
		t.Errorf("copies = %+v, want one copy %d -> %d", copies, src, dst)
	}
}

func TestRecreateSwapchain(t *testing.T) {
	ctx, dev := newTestContext(t)
	if err := ctx.RecreateSwapchain(hal.Extent2D{Width: 1024, Height: 0}); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	want := hal.Extent2D{Width: 1024, Height: 1}
	if got := ctx.SwapchainExtent(); got != want {
		t.Errorf("SwapchainExtent() = %v, want %v", got, want)
	}
	if dev.PresentMode() != hal.PresentMailbox {
		t.Errorf("PresentMode() = %v, want mailbox", dev.PresentMode())
	}
}
