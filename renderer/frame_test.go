package renderer

import (
	"testing"
	"time"

	"GPU_render_graph/hal"
	"GPU_render_graph/hal/haltest"
)

func drawTarget(t *testing.T, dev *haltest.Device) hal.Image {
	t.Helper()
	img, err := dev.CreateImage(hal.ImageDesc{Extent: hal.Extent3D{Width: 800, Height: 600, Depth: 1}, Format: COLOR_ATTACHMENT_FORMAT, MipLevels: 1})
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestFrameIndexCycles(t *testing.T) {
	ctx, dev := newTestContext(t)
	img := drawTarget(t, dev)
	size := hal.Extent2D{Width: 800, Height: 600}

	want := []uint32{0, 1, 2, 0, 1, 2, 0}
	for i, w := range want {
		if got := ctx.Frames().FrameNumber(); got != w {
			t.Fatalf("cycle %d: FrameNumber() = %d, want %d", i, got, w)
		}
		if !ctx.BeginFrame() {
			t.Fatalf("cycle %d: BeginFrame() = false", i)
		}
		if !ctx.EndFrame(img, size) {
			t.Fatalf("cycle %d: EndFrame() = false", i)
		}
	}
	if len(dev.Presents) != len(want) {
		t.Errorf("presents = %d, want %d", len(dev.Presents), len(want))
	}
	if ctx.Stats().Frames() != uint64(len(want)) {
		t.Errorf("Stats().Frames() = %d, want %d", ctx.Stats().Frames(), len(want))
	}
}

func TestBeginFrameWaitsForSlotFence(t *testing.T) {
	ctx, dev := newTestContext(t)
	dev.ManualFences = true
	img := drawTarget(t, dev)
	size := hal.Extent2D{Width: 800, Height: 600}

	for i := 0; i < ctx.Frames().Count(); i++ {
		if !ctx.BeginFrame() || !ctx.EndFrame(img, size) {
			t.Fatalf("cycle %d failed", i)
		}
	}
	// the ring wrapped around: slot 0 is still in flight
	slot0 := ctx.Frames().Current().Fence

	done := make(chan bool)
	go func() {
		done <- ctx.BeginFrame()
	}()

	select {
	case <-done:
		t.Fatal("BeginFrame() returned before the slot's fence signalled")
	case <-time.After(50 * time.Millisecond):
	}

	dev.SignalFence(slot0)
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("BeginFrame() = false after the fence signalled")
		}
	case <-time.After(time.Second):
		t.Fatal("BeginFrame() still blocked after the fence signalled")
	}
	if ctx.Frames().FrameNumber() != 0 {
		t.Errorf("FrameNumber() = %d, want 0", ctx.Frames().FrameNumber())
	}
}

func TestBeginFrameOutOfDate(t *testing.T) {
	ctx, dev := newTestContext(t)
	dev.OutOfDateOnAcquire = 1
	f := ctx.Frames().Current()

	if ctx.BeginFrame() {
		t.Fatal("BeginFrame() = true with an out of date swapchain")
	}
	if ctx.Frames().FrameNumber() != 0 {
		t.Errorf("FrameNumber() = %d after out of date acquire, want 0", ctx.Frames().FrameNumber())
	}
	if !dev.FenceSignaled(f.Fence) {
		t.Error("fence was reset although nothing was submitted")
	}
	if f.state != frameIdle {
		t.Errorf("frame state = %v, want idle", f.state)
	}
	if ctx.Stats().Skipped() != 1 {
		t.Errorf("Stats().Skipped() = %d, want 1", ctx.Stats().Skipped())
	}
	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false after the swapchain recovered")
	}
}

func TestReusedSlotIdleAfterOutOfDateAcquire(t *testing.T) {
	ctx, dev := newTestContext(t)
	img := drawTarget(t, dev)
	size := hal.Extent2D{Width: 800, Height: 600}

	for i := 0; i < ctx.Frames().Count(); i++ {
		if !ctx.BeginFrame() || !ctx.EndFrame(img, size) {
			t.Fatalf("cycle %d failed", i)
		}
	}
	f := ctx.Frames().Current()
	if f.state != frameSubmitted {
		t.Fatalf("wrapped slot state = %v, want submitted", f.state)
	}

	dev.OutOfDateOnAcquire = 1
	if ctx.BeginFrame() {
		t.Fatal("BeginFrame() = true with an out of date swapchain")
	}
	if f.state != frameIdle {
		t.Errorf("frame state = %v after its fence signalled, want idle", f.state)
	}
	if ctx.EndFrame(img, size) {
		t.Error("EndFrame() = true for an idle slot")
	}
}

func TestEndFrameOutOfDatePresent(t *testing.T) {
	ctx, dev := newTestContext(t)
	dev.OutOfDateOnPresent = 1
	img := drawTarget(t, dev)

	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	if ctx.EndFrame(img, hal.Extent2D{Width: 800, Height: 600}) {
		t.Fatal("EndFrame() = true with an out of date swapchain")
	}
	if len(dev.Submits) != 1 {
		t.Errorf("submits = %d, want 1", len(dev.Submits))
	}
	if ctx.Frames().FrameNumber() != 1 {
		t.Errorf("FrameNumber() = %d, want 1: a submitted frame always advances", ctx.Frames().FrameNumber())
	}
}

func TestEndFrameCopiesToSwapchain(t *testing.T) {
	ctx, dev := newTestContext(t)
	img := drawTarget(t, dev)
	drawSize := hal.Extent2D{Width: 800, Height: 600}

	f := ctx.Frames().Current()
	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	swap := dev.SwapchainImages()[ctx.Frames().SwapchainImageIndex()]
	if !ctx.EndFrame(img, drawSize) {
		t.Fatal("EndFrame() = false")
	}

	cb := f.Recorder.Handle().(*haltest.CommandBuffer)
	barriers := cb.Barriers(swap)
	want := [][2]hal.ImageLayout{
		{hal.LayoutUndefined, hal.LayoutTransferDst},
		{hal.LayoutTransferDst, hal.LayoutPresentSrc},
	}
	if len(barriers) != len(want) {
		t.Fatalf("swapchain barriers = %+v, want %d", barriers, len(want))
	}
	for i, w := range want {
		if barriers[i].OldLayout != w[0] || barriers[i].NewLayout != w[1] {
			t.Errorf("barrier %d = %v -> %v, want %v -> %v", i, barriers[i].OldLayout, barriers[i].NewLayout, w[0], w[1])
		}
	}
	blits := cb.Filter(haltest.OpBlit)
	if len(blits) != 1 || blits[0].Blit.Src != img || blits[0].Blit.Dst != swap {
		t.Fatalf("blits = %+v, want one %d -> %d", blits, img, swap)
	}
	if blits[0].Blit.SrcExtent != drawSize.To3D() || blits[0].Blit.DstExtent != dev.SwapchainExtent().To3D() {
		t.Errorf("blit extents = %v -> %v", blits[0].Blit.SrcExtent, blits[0].Blit.DstExtent)
	}

	sub := dev.Submits[0]
	if sub.Wait != f.PresentSemaphore || sub.Signal != f.RenderSemaphore || sub.Fence != f.Fence {
		t.Errorf("submit = %+v, want wait %d signal %d fence %d", sub, f.PresentSemaphore, f.RenderSemaphore, f.Fence)
	}
	if cb.Recording() {
		t.Error("command buffer still recording after EndFrame")
	}
}

func TestEndFrameWithoutBegin(t *testing.T) {
	ctx, dev := newTestContext(t)
	if ctx.EndFrame(drawTarget(t, dev), hal.Extent2D{Width: 1, Height: 1}) {
		t.Fatal("EndFrame() = true without BeginFrame")
	}
	if len(dev.Submits) != 0 {
		t.Errorf("submits = %d, want 0", len(dev.Submits))
	}
}

func TestNewFrameRingRejectsZero(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	if _, err := NewFrameRing(dev, 0, time.Second, nil); err == nil {
		t.Fatal("NewFrameRing(0) error = nil")
	}
}
