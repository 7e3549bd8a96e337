package common

import (
	"time"

	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

type commandPool struct {
	handle  vk.CommandPool
	buffers []*CommandBuffer
}

func (dc *Device) CreateFence(signaled bool) (hal.Fence, error) {
	f, err := VKSCreateFence(dc.D, signaled)
	if err != nil {
		return 0, err
	}
	return hal.Fence(dc.fences.add(f)), nil
}

func (dc *Device) WaitFence(h hal.Fence, timeout time.Duration) error {
	f := dc.fences.mustGet(uint64(h), "fence")
	return resultError(vk.WaitForFences(dc.D, 1, []vk.Fence{f}, vk.True, uint64(timeout.Nanoseconds())), "vkWaitForFences")
}

func (dc *Device) ResetFence(h hal.Fence) error {
	f := dc.fences.mustGet(uint64(h), "fence")
	return resultError(vk.ResetFences(dc.D, 1, []vk.Fence{f}), "vkResetFences")
}

func (dc *Device) DestroyFence(h hal.Fence) {
	if f, ok := dc.fences.remove(uint64(h)); ok {
		vk.DestroyFence(dc.D, f, nil)
	}
}

func (dc *Device) CreateSemaphore() (hal.Semaphore, error) {
	s, err := VKSCreateSemaphore(dc.D)
	if err != nil {
		return 0, err
	}
	return hal.Semaphore(dc.semaphores.add(s)), nil
}

func (dc *Device) DestroySemaphore(h hal.Semaphore) {
	if s, ok := dc.semaphores.remove(uint64(h)); ok {
		vk.DestroySemaphore(dc.D, s, nil)
	}
}

// CreateCommandPool creates a pool on the device's queue family. Buffers are reset together with their pool.
func (dc *Device) CreateCommandPool() (hal.CommandPool, error) {
	p, err := VKSCreateCommandPool(dc.D, 0, dc.family)
	if err != nil {
		return 0, err
	}
	return hal.CommandPool(dc.cmdPools.add(&commandPool{handle: p})), nil
}

func (dc *Device) ResetCommandPool(h hal.CommandPool) error {
	p := dc.cmdPools.mustGet(uint64(h), "command pool")
	return resultError(vk.ResetCommandPool(dc.D, p.handle, 0), "vkResetCommandPool")
}

// DestroyCommandPool frees the pool's command buffers with it.
func (dc *Device) DestroyCommandPool(h hal.CommandPool) {
	p, ok := dc.cmdPools.remove(uint64(h))
	if !ok {
		return
	}
	for _, cb := range p.buffers {
		cb.dc = nil
	}
	vk.DestroyCommandPool(dc.D, p.handle, nil)
}

func (dc *Device) AllocateCommandBuffer(h hal.CommandPool) (hal.CommandBuffer, error) {
	p := dc.cmdPools.mustGet(uint64(h), "command pool")
	buffers, err := VKSAllocatePrimaryCommandBuffers(dc.D, p.handle, 1)
	if err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dc: dc, handle: buffers[0]}
	p.buffers = append(p.buffers, cb)
	return cb, nil
}

// Submit queues one command buffer. The wait semaphore blocks all commands since the first use of an acquired
// swapchain image may be a transfer as well as a render pass.
func (dc *Device) Submit(info hal.SubmitInfo) error {
	cb, ok := info.CommandBuffer.(*CommandBuffer)
	if !ok || cb.dc != dc {
		panicf("command buffer %T was not allocated by this device", info.CommandBuffer)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	if info.Wait != 0 {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{dc.semaphores.mustGet(uint64(info.Wait), "semaphore")}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		}
	}
	if info.Signal != 0 {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{dc.semaphores.mustGet(uint64(info.Signal), "semaphore")}
	}
	var fence vk.Fence
	if info.Fence != 0 {
		fence = dc.fences.mustGet(uint64(info.Fence), "fence")
	}
	return resultError(vk.QueueSubmit(dc.Queue, 1, []vk.SubmitInfo{submitInfo}, fence), "vkQueueSubmit")
}
