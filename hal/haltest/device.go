// Package haltest provides an in-memory hal.Device. It records every command it is given, tracks object
// lifetimes and simulates the few GPU behaviours the renderer reacts to: fences completing, descriptor pools
// running dry and swapchains going out of date.
package haltest

import (
	"fmt"
	"sync"
	"time"

	"GPU_render_graph/hal"
)

var (
	_ hal.Device        = (*Device)(nil)
	_ hal.CommandBuffer = (*CommandBuffer)(nil)
)

type fence struct {
	signaled bool
	done     chan struct{}
}

type pool struct {
	maxSets uint32
	sizes   map[hal.DescriptorType]uint32
	sets    uint32
	used    map[hal.DescriptorType]uint32
	resets  int
}

// Device is a fake hal.Device. The exported fields configure its behaviour and may be changed between calls.
type Device struct {
	// ManualFences keeps submitted fences unsignalled until SignalFence is called.
	ManualFences bool
	// OutOfDateOnAcquire and OutOfDateOnPresent make the next n calls report hal.ErrOutOfDate.
	OutOfDateOnAcquire int
	OutOfDateOnPresent int
	// FailAllocations makes every descriptor set allocation fail with this error when set.
	FailAllocations error
	DepthFormat     hal.Format
	Capabilities    hal.SurfaceCapabilities
	ImageCount      int

	mu         sync.Mutex
	next       uint64
	images     map[hal.Image]hal.ImageDesc
	views      map[hal.ImageView]hal.Image
	buffers    map[hal.Buffer][]byte
	samplers   map[hal.Sampler]hal.SamplerDesc
	layouts    map[hal.DescriptorSetLayout][]hal.DescriptorBinding
	pools      map[hal.DescriptorPool]*pool
	sets       map[hal.DescriptorSet]hal.DescriptorSetLayout
	writes     []hal.DescriptorWrite
	fences     map[hal.Fence]*fence
	semaphores map[hal.Semaphore]bool
	cmdPools   map[hal.CommandPool][]*CommandBuffer
	pipelines  map[hal.Pipeline]hal.PipelineDesc
	pLayouts   map[hal.PipelineLayout][]hal.DescriptorSetLayout

	swapImages  []hal.Image
	swapViews   []hal.ImageView
	extent      hal.Extent2D
	presentMode hal.PresentMode
	acquireIdx  uint32

	Submits     []hal.SubmitInfo
	Presents    []uint32
	WaitIdles   int
	Recreates   []hal.Extent2D
	PoolsMade   int
	LayoutsMade int
}

// NewDevice returns a fake device with a swapchain of three images sized extent.
func NewDevice(extent hal.Extent2D) *Device {
	d := &Device{
		DepthFormat: hal.FormatD32Sfloat,
		Capabilities: hal.SurfaceCapabilities{
			MinExtent:     hal.Extent2D{Width: 1, Height: 1},
			MaxExtent:     hal.Extent2D{Width: 16384, Height: 16384},
			CurrentExtent: extent,
			MinImageCount: 2,
			MaxImageCount: 8,
		},
		ImageCount:  3,
		images:      map[hal.Image]hal.ImageDesc{},
		views:       map[hal.ImageView]hal.Image{},
		buffers:     map[hal.Buffer][]byte{},
		samplers:    map[hal.Sampler]hal.SamplerDesc{},
		layouts:     map[hal.DescriptorSetLayout][]hal.DescriptorBinding{},
		pools:       map[hal.DescriptorPool]*pool{},
		sets:        map[hal.DescriptorSet]hal.DescriptorSetLayout{},
		fences:      map[hal.Fence]*fence{},
		semaphores:  map[hal.Semaphore]bool{},
		cmdPools:    map[hal.CommandPool][]*CommandBuffer{},
		pipelines:   map[hal.Pipeline]hal.PipelineDesc{},
		pLayouts:    map[hal.PipelineLayout][]hal.DescriptorSetLayout{},
		presentMode: hal.PresentMailbox,
	}
	d.buildSwapchain(extent)
	return d
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) buildSwapchain(extent hal.Extent2D) {
	for _, v := range d.swapViews {
		delete(d.views, v)
	}
	for _, img := range d.swapImages {
		delete(d.images, img)
	}
	d.swapImages = d.swapImages[:0]
	d.swapViews = d.swapViews[:0]
	d.extent = extent
	for i := 0; i < d.ImageCount; i++ {
		img := hal.Image(d.handle())
		d.images[img] = hal.ImageDesc{Extent: extent.To3D(), Format: hal.FormatB8G8R8A8Srgb, Usage: hal.UsageColorAttachment | hal.UsageTransferDst, MipLevels: 1}
		v := hal.ImageView(d.handle())
		d.views[v] = img
		d.swapImages = append(d.swapImages, img)
		d.swapViews = append(d.swapViews, v)
	}
	d.acquireIdx = 0
}

func (d *Device) AdapterName() string { return "haltest" }

func (d *Device) CreateImage(desc hal.ImageDesc) (hal.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return 0, fmt.Errorf("haltest: zero sized image %v", desc.Extent)
	}
	img := hal.Image(d.handle())
	d.images[img] = desc
	return img, nil
}

func (d *Device) CreateImageView(img hal.Image, _ hal.Format, _ hal.ImageAspect, _ uint32) (hal.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[img]; !ok {
		return 0, fmt.Errorf("haltest: view of unknown image %d", img)
	}
	v := hal.ImageView(d.handle())
	d.views[v] = img
	return v, nil
}

func (d *Device) DestroyImageView(v hal.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, v)
}

func (d *Device) DestroyImage(img hal.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, img)
}

func (d *Device) SupportedDepthFormat() (hal.Format, error) { return d.DepthFormat, nil }

// ImageDesc returns the description a live image was created with.
func (d *Device) ImageDesc(img hal.Image) (hal.ImageDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.images[img]
	return desc, ok
}

// LiveImages counts images that were created and not destroyed, swapchain images excluded.
func (d *Device) LiveImages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images) - len(d.swapImages)
}

func (d *Device) CreateBuffer(desc hal.BufferDesc) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := hal.Buffer(d.handle())
	d.buffers[b] = make([]byte, desc.Size)
	return b, nil
}

func (d *Device) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("haltest: write to unknown buffer %d", buf)
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("haltest: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

func (d *Device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buf)
}

// BufferData returns a copy of a buffer's contents.
func (d *Device) BufferData(buf hal.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buffers[buf]...)
}

func (d *Device) CreateSampler(desc hal.SamplerDesc) (hal.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := hal.Sampler(d.handle())
	d.samplers[s] = desc
	return s, nil
}

func (d *Device) DestroySampler(s hal.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, s)
}

func (d *Device) CreateDescriptorSetLayout(bindings []hal.DescriptorBinding) (hal.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := hal.DescriptorSetLayout(d.handle())
	d.layouts[l] = append([]hal.DescriptorBinding(nil), bindings...)
	d.LayoutsMade++
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l hal.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, l)
}

// LayoutBindings returns the bindings a layout was created from.
func (d *Device) LayoutBindings(l hal.DescriptorSetLayout) []hal.DescriptorBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layouts[l]
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []hal.DescriptorPoolSize) (hal.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &pool{maxSets: maxSets, sizes: map[hal.DescriptorType]uint32{}, used: map[hal.DescriptorType]uint32{}}
	for _, s := range sizes {
		p.sizes[s.Type] += s.Count
	}
	h := hal.DescriptorPool(d.handle())
	d.pools[h] = p
	d.PoolsMade++
	return h, nil
}

func (d *Device) ResetDescriptorPool(h hal.DescriptorPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[h]
	if !ok {
		return fmt.Errorf("haltest: reset of unknown pool %d", h)
	}
	p.sets = 0
	p.used = map[hal.DescriptorType]uint32{}
	p.resets++
	return nil
}

func (d *Device) DestroyDescriptorPool(h hal.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pools, h)
}

// PoolResets returns how often a pool was reset and whether it is still alive.
func (d *Device) PoolResets(h hal.DescriptorPool) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[h]
	if !ok {
		return 0, false
	}
	return p.resets, true
}

func (d *Device) AllocateDescriptorSet(h hal.DescriptorPool, l hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailAllocations != nil {
		return 0, d.FailAllocations
	}
	p, ok := d.pools[h]
	if !ok {
		return 0, fmt.Errorf("haltest: allocate from unknown pool %d", h)
	}
	bindings, ok := d.layouts[l]
	if !ok {
		return 0, fmt.Errorf("haltest: allocate with unknown layout %d", l)
	}
	if p.sets+1 > p.maxSets {
		return 0, hal.ErrOutOfPoolMemory
	}
	need := map[hal.DescriptorType]uint32{}
	for _, b := range bindings {
		need[b.Type] += b.Count
	}
	for t, n := range need {
		if p.used[t]+n > p.sizes[t] {
			return 0, hal.ErrOutOfPoolMemory
		}
	}
	for t, n := range need {
		p.used[t] += n
	}
	p.sets++
	s := hal.DescriptorSet(d.handle())
	d.sets[s] = l
	return s, nil
}

func (d *Device) UpdateDescriptorSets(writes []hal.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, writes...)
}

// Writes returns every descriptor write issued so far.
func (d *Device) Writes() []hal.DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.DescriptorWrite(nil), d.writes...)
}

func (d *Device) CreatePipelineLayout(sets []hal.DescriptorSetLayout, _ uint32, _ hal.ShaderStage) (hal.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := hal.PipelineLayout(d.handle())
	d.pLayouts[l] = append([]hal.DescriptorSetLayout(nil), sets...)
	return l, nil
}

func (d *Device) DestroyPipelineLayout(l hal.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pLayouts, l)
}

func (d *Device) CreateGraphicsPipeline(desc hal.PipelineDesc) (hal.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(desc.Vertex) == 0 {
		return 0, fmt.Errorf("haltest: pipeline without vertex stage")
	}
	p := hal.Pipeline(d.handle())
	d.pipelines[p] = desc
	return p, nil
}

func (d *Device) DestroyPipeline(p hal.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
}

// PipelineDesc returns the description a live pipeline was created from.
func (d *Device) PipelineDesc(p hal.Pipeline) (hal.PipelineDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.pipelines[p]
	return desc, ok
}

func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &fence{done: make(chan struct{})}
	if signaled {
		f.signaled = true
		close(f.done)
	}
	h := hal.Fence(d.handle())
	d.fences[h] = f
	return h, nil
}

func (d *Device) WaitFence(h hal.Fence, timeout time.Duration) error {
	d.mu.Lock()
	f, ok := d.fences[h]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("haltest: wait on unknown fence %d", h)
	}
	select {
	case <-f.done:
		return nil
	case <-time.After(timeout):
		return hal.ErrTimeout
	}
}

func (d *Device) ResetFence(h hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("haltest: reset of unknown fence %d", h)
	}
	if f.signaled {
		d.fences[h] = &fence{done: make(chan struct{})}
	}
	return nil
}

// SignalFence completes the work gated on a fence as the GPU would.
func (d *Device) SignalFence(h hal.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signal(h)
}

func (d *Device) signal(h hal.Fence) {
	f, ok := d.fences[h]
	if !ok || f.signaled {
		return
	}
	f.signaled = true
	close(f.done)
}

// FenceSignaled reports the state of a fence.
func (d *Device) FenceSignaled(h hal.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[h]
	return ok && f.signaled
}

func (d *Device) DestroyFence(h hal.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, h)
}

func (d *Device) CreateSemaphore() (hal.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := hal.Semaphore(d.handle())
	d.semaphores[s] = true
	return s, nil
}

func (d *Device) DestroySemaphore(s hal.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, s)
}

func (d *Device) CreateCommandPool() (hal.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := hal.CommandPool(d.handle())
	d.cmdPools[p] = nil
	return p, nil
}

func (d *Device) ResetCommandPool(p hal.CommandPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	bufs, ok := d.cmdPools[p]
	if !ok {
		return fmt.Errorf("haltest: reset of unknown command pool %d", p)
	}
	for _, cb := range bufs {
		cb.reset()
	}
	return nil
}

func (d *Device) DestroyCommandPool(p hal.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cmdPools, p)
}

func (d *Device) AllocateCommandBuffer(p hal.CommandPool) (hal.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cmdPools[p]; !ok {
		return nil, fmt.Errorf("haltest: allocate from unknown command pool %d", p)
	}
	cb := &CommandBuffer{}
	d.cmdPools[p] = append(d.cmdPools[p], cb)
	return cb, nil
}

func (d *Device) Submit(info hal.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := info.CommandBuffer.(*CommandBuffer); ok && cb.recording {
		return fmt.Errorf("haltest: submit of a command buffer still recording")
	}
	d.Submits = append(d.Submits, info)
	if info.Fence != 0 && !d.ManualFences {
		d.signal(info.Fence)
	}
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WaitIdles++
	return nil
}

func (d *Device) AcquireNextImage(_ time.Duration, _ hal.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OutOfDateOnAcquire > 0 {
		d.OutOfDateOnAcquire--
		return 0, hal.ErrOutOfDate
	}
	idx := d.acquireIdx
	d.acquireIdx = (d.acquireIdx + 1) % uint32(len(d.swapImages))
	return idx, nil
}

func (d *Device) Present(imageIndex uint32, _ hal.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OutOfDateOnPresent > 0 {
		d.OutOfDateOnPresent--
		return hal.ErrOutOfDate
	}
	d.Presents = append(d.Presents, imageIndex)
	return nil
}

func (d *Device) RecreateSwapchain(size hal.Extent2D, mode hal.PresentMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WaitIdles++
	size = hal.ClampExtent(size, d.Capabilities)
	d.Recreates = append(d.Recreates, size)
	d.presentMode = mode
	d.buildSwapchain(size)
	return nil
}

func (d *Device) SwapchainImages() []hal.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.Image(nil), d.swapImages...)
}

func (d *Device) SwapchainImageViews() []hal.ImageView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.ImageView(nil), d.swapViews...)
}

func (d *Device) SwapchainExtent() hal.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

func (d *Device) SurfaceFormat() hal.SurfaceFormat {
	return hal.SurfaceFormat{Format: hal.FormatB8G8R8A8Srgb}
}

func (d *Device) PresentMode() hal.PresentMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presentMode
}

func (d *Device) Destroy() {}
