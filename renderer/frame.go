package renderer

import (
	"time"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

type frameState int

const (
	frameIdle frameState = iota
	frameRecording
	frameSubmitted
)

// Frame owns everything one frame in flight records and synchronizes with.
type Frame struct {
	Fence            hal.Fence
	PresentSemaphore hal.Semaphore
	RenderSemaphore  hal.Semaphore
	CommandPool      hal.CommandPool
	Recorder         *CommandRecorder

	state frameState
}

// FrameRing cycles through a fixed number of frames in flight. The CPU records into one slot while the GPU
// may still be executing the others. A slot is only reused after its fence signalled.
type FrameRing struct {
	dev     hal.Device
	frames  []Frame
	index   uint32
	image   uint32
	timeout time.Duration
	stats   *Stats
}

func NewFrameRing(dev hal.Device, count int, timeout time.Duration, stats *Stats) (*FrameRing, error) {
	if count < 1 {
		return nil, errors.Errorf("frame ring needs at least one frame, got %d", count)
	}
	if stats == nil {
		stats = NewStats()
	}
	r := &FrameRing{dev: dev, frames: make([]Frame, count), timeout: timeout, stats: stats}
	for i := range r.frames {
		if err := r.createFrame(&r.frames[i]); err != nil {
			r.Shutdown()
			return nil, errors.Wrapf(err, "failed to create frame %d", i)
		}
	}
	return r, nil
}

func (r *FrameRing) createFrame(f *Frame) error {
	var err error
	// signalled so the first wait on every slot returns immediately
	if f.Fence, err = r.dev.CreateFence(true); err != nil {
		return err
	}
	if f.PresentSemaphore, err = r.dev.CreateSemaphore(); err != nil {
		return err
	}
	if f.RenderSemaphore, err = r.dev.CreateSemaphore(); err != nil {
		return err
	}
	if f.CommandPool, err = r.dev.CreateCommandPool(); err != nil {
		return err
	}
	cmd, err := r.dev.AllocateCommandBuffer(f.CommandPool)
	if err != nil {
		return err
	}
	f.Recorder = NewCommandRecorder(cmd)
	return nil
}

// BeginFrame waits until the current slot is free, acquires the next swapchain image and starts recording.
// It returns false when the swapchain is out of date. The slot is then idle with its fence still signalled, and
// the caller should recreate the swapchain and try again. A fence that does not signal within the timeout is fatal.
func (r *FrameRing) BeginFrame() bool {
	f := r.Current()
	if err := r.dev.WaitFence(f.Fence, r.timeout); err != nil {
		fatalf("frame %d: fence wait failed after %v: %v", r.index, r.timeout, err)
	}
	// the fence signalled, so whatever this slot submitted last has finished
	f.state = frameIdle
	img, err := r.dev.AcquireNextImage(r.timeout, f.PresentSemaphore)
	switch {
	case errors.Is(err, hal.ErrOutOfDate):
		Logger().Warn("swapchain out of date on acquire", "frame", r.index)
		r.stats.SkipFrame()
		return false
	case errors.Is(err, hal.ErrSuboptimal):
		// the image is still valid and the semaphore will signal
	case err != nil:
		fatalf("frame %d: acquire failed: %v", r.index, err)
	}
	r.image = img

	if err := r.dev.ResetFence(f.Fence); err != nil {
		fatalf("frame %d: fence reset failed: %v", r.index, err)
	}
	if err := r.dev.ResetCommandPool(f.CommandPool); err != nil {
		fatalf("frame %d: command pool reset failed: %v", r.index, err)
	}
	if err := f.Recorder.Begin(); err != nil {
		fatalf("frame %d: begin recording failed: %v", r.index, err)
	}
	f.state = frameRecording
	r.stats.BeginFrame()
	return true
}

// EndFrame copies drawImage onto the acquired swapchain image, submits the frame and presents it. drawImage
// must be in TransferSrc layout. The ring advances to the next slot once the frame is submitted. It returns
// false when presenting found the swapchain out of date or suboptimal.
func (r *FrameRing) EndFrame(drawImage hal.Image, drawSize hal.Extent2D) bool {
	f := r.Current()
	if f.state != frameRecording {
		Logger().Warn("EndFrame without a recording frame", "frame", r.index)
		return false
	}
	rec := f.Recorder
	swap := r.dev.SwapchainImages()[r.image]
	swapSize := r.dev.SwapchainExtent()

	rec.TransitionLayout(swap, hal.LayoutUndefined, hal.LayoutTransferDst)
	rec.CopyImageToImage(drawImage, swap, drawSize.To3D(), swapSize.To3D())
	rec.TransitionLayout(swap, hal.LayoutTransferDst, hal.LayoutPresentSrc)
	if err := rec.End(); err != nil {
		fatalf("frame %d: end recording failed: %v", r.index, err)
	}

	err := r.dev.Submit(hal.SubmitInfo{
		CommandBuffer: rec.Handle(),
		Wait:          f.PresentSemaphore,
		Signal:        f.RenderSemaphore,
		Fence:         f.Fence,
	})
	if err != nil {
		fatalf("frame %d: submit failed: %v", r.index, err)
	}
	f.state = frameSubmitted
	r.stats.EndFrame()

	err = r.dev.Present(r.image, f.RenderSemaphore)
	r.index = (r.index + 1) % uint32(len(r.frames))
	switch {
	case errors.Is(err, hal.ErrOutOfDate), errors.Is(err, hal.ErrSuboptimal):
		Logger().Warn("swapchain needs recreation after present", "err", err)
		return false
	case err != nil:
		fatalf("present failed: %v", err)
	}
	return true
}

// Current is the slot being recorded, or the one BeginFrame will use next.
func (r *FrameRing) Current() *Frame {
	return &r.frames[r.index]
}

// Recorder is the recorder of the current slot.
func (r *FrameRing) Recorder() *CommandRecorder {
	return r.Current().Recorder
}

// FrameNumber is the index of the current slot, in [0, Count()).
func (r *FrameRing) FrameNumber() uint32 {
	return r.index
}

func (r *FrameRing) SwapchainImageIndex() uint32 {
	return r.image
}

func (r *FrameRing) Count() int {
	return len(r.frames)
}

// Shutdown destroys every slot. The device must be idle.
func (r *FrameRing) Shutdown() {
	for i := range r.frames {
		f := &r.frames[i]
		if f.CommandPool != 0 {
			r.dev.DestroyCommandPool(f.CommandPool)
		}
		if f.RenderSemaphore != 0 {
			r.dev.DestroySemaphore(f.RenderSemaphore)
		}
		if f.PresentSemaphore != 0 {
			r.dev.DestroySemaphore(f.PresentSemaphore)
		}
		if f.Fence != 0 {
			r.dev.DestroyFence(f.Fence)
		}
		*f = Frame{}
	}
}
