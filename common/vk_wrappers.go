package common

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/veandco/go-sdl2/sdl"
)

// Utility functions wrapping the raw go bindings to provide a more go-lang style interface. This should not
// hide or alter behavior and only allow for more tidy core code by tweaking signatures.

func VkCreateInstance(pCreateInfo *vk.InstanceCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Instance, error) {
	var in vk.Instance
	if err := resultError(vk.CreateInstance(pCreateInfo, pAllocator, &in), "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(in); err != nil {
		return nil, err
	}
	return in, nil
}

func SdlCreateVkSurface(win *sdl.Window, instance vk.Instance) (vk.Surface, error) {
	surfPtr, err := win.VulkanCreateSurface(instance)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(uintptr(surfPtr)), nil
}

func VkCreateDevice(physicalDevice vk.PhysicalDevice, pCreateInfo *vk.DeviceCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Device, error) {
	var d vk.Device
	if err := resultError(vk.CreateDevice(physicalDevice, pCreateInfo, pAllocator, &d), "vkCreateDevice"); err != nil {
		return nil, err
	}
	return d, nil
}

func VkGetDeviceQueue(device vk.Device, queueFamilyIndex uint32, queueIndex uint32) vk.Queue {
	var q vk.Queue
	vk.GetDeviceQueue(device, queueFamilyIndex, queueIndex, &q)
	return q
}

func VkCreateSwapChain(device vk.Device, pCreateInfo *vk.SwapchainCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Swapchain, error) {
	var sc vk.Swapchain
	if err := resultError(vk.CreateSwapchain(device, pCreateInfo, pAllocator, &sc), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}
	return sc, nil
}

func VkCreateImageView(device vk.Device, pCreateInfo *vk.ImageViewCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.ImageView, error) {
	var iv vk.ImageView
	if err := resultError(vk.CreateImageView(device, pCreateInfo, pAllocator, &iv), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return iv, nil
}

func VkCreateRenderPass(device vk.Device, pCreateInfo *vk.RenderPassCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.RenderPass, error) {
	var rp vk.RenderPass
	if err := resultError(vk.CreateRenderPass(device, pCreateInfo, pAllocator, &rp), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	return rp, nil
}

func VkCreateFrameBuffer(device vk.Device, pCreateInfo *vk.FramebufferCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	if err := resultError(vk.CreateFramebuffer(device, pCreateInfo, pAllocator, &fb), "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	return fb, nil
}

func VkCreatePipelineLayout(device vk.Device, pCreateInfo *vk.PipelineLayoutCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.PipelineLayout, error) {
	var pl vk.PipelineLayout
	if err := resultError(vk.CreatePipelineLayout(device, pCreateInfo, pAllocator, &pl), "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}
	return pl, nil
}

func VkCreateGraphicsPipelines(device vk.Device, pipelineCache vk.PipelineCache, createInfoCount uint32, pCreateInfos []vk.GraphicsPipelineCreateInfo, pAllocator *vk.AllocationCallbacks) ([]vk.Pipeline, error) {
	gp := make([]vk.Pipeline, createInfoCount)
	if err := resultError(vk.CreateGraphicsPipelines(device, pipelineCache, createInfoCount, pCreateInfos, pAllocator, gp), "vkCreateGraphicsPipelines"); err != nil {
		return nil, err
	}
	return gp, nil
}

func VkCreateShaderModule(device vk.Device, pCreateInfo *vk.ShaderModuleCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.ShaderModule, error) {
	var sm vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(device, pCreateInfo, pAllocator, &sm), "vkCreateShaderModule"); err != nil {
		return nil, err
	}
	return sm, nil
}

func VkCreateCommandPool(device vk.Device, pCreateInfo *vk.CommandPoolCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.CommandPool, error) {
	var cp vk.CommandPool
	if err := resultError(vk.CreateCommandPool(device, pCreateInfo, pAllocator, &cp), "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return cp, nil
}

func VkCreateBuffer(device vk.Device, pCreateInfo *vk.BufferCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Buffer, error) {
	var buf vk.Buffer
	if err := resultError(vk.CreateBuffer(device, pCreateInfo, pAllocator, &buf), "vkCreateBuffer"); err != nil {
		return nil, err
	}
	return buf, nil
}

func VkAllocateMemory(device vk.Device, pAllocateInfo *vk.MemoryAllocateInfo, pAllocator *vk.AllocationCallbacks) (vk.DeviceMemory, error) {
	var dm vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(device, pAllocateInfo, pAllocator, &dm), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return dm, nil
}

func VkBindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, memoryOffset vk.DeviceSize) error {
	return resultError(vk.BindBufferMemory(device, buffer, memory, memoryOffset), "vkBindBufferMemory")
}

func VkBindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, memoryOffset vk.DeviceSize) error {
	return resultError(vk.BindImageMemory(device, image, memory, memoryOffset), "vkBindImageMemory")
}

func VkMapMemory(device vk.Device, memory vk.DeviceMemory, offset vk.DeviceSize, size vk.DeviceSize, flags vk.MemoryMapFlags) (unsafe.Pointer, error) {
	var pData unsafe.Pointer
	if err := resultError(vk.MapMemory(device, memory, offset, size, flags, &pData), "vkMapMemory"); err != nil {
		return nil, err
	}
	return pData, nil
}

func VkCreateImage(device vk.Device, pCreateInfo *vk.ImageCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Image, error) {
	var img vk.Image
	if err := resultError(vk.CreateImage(device, pCreateInfo, pAllocator, &img), "vkCreateImage"); err != nil {
		return nil, err
	}
	return img, nil
}

func VkCreateSampler(device vk.Device, pCreateInfo *vk.SamplerCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Sampler, error) {
	var s vk.Sampler
	if err := resultError(vk.CreateSampler(device, pCreateInfo, pAllocator, &s), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return s, nil
}

func VkCreateDescriptorSetLayout(device vk.Device, pCreateInfo *vk.DescriptorSetLayoutCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.DescriptorSetLayout, error) {
	var l vk.DescriptorSetLayout
	if err := resultError(vk.CreateDescriptorSetLayout(device, pCreateInfo, pAllocator, &l), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return l, nil
}

func VkCreateDescriptorPool(device vk.Device, pCreateInfo *vk.DescriptorPoolCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.DescriptorPool, error) {
	var p vk.DescriptorPool
	if err := resultError(vk.CreateDescriptorPool(device, pCreateInfo, pAllocator, &p), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return p, nil
}

func VkCreateFence(device vk.Device, pCreateInfo *vk.FenceCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Fence, error) {
	var f vk.Fence
	if err := resultError(vk.CreateFence(device, pCreateInfo, pAllocator, &f), "vkCreateFence"); err != nil {
		return nil, err
	}
	return f, nil
}

func VkCreateSemaphore(device vk.Device, pCreateInfo *vk.SemaphoreCreateInfo, pAllocator *vk.AllocationCallbacks) (vk.Semaphore, error) {
	var s vk.Semaphore
	if err := resultError(vk.CreateSemaphore(device, pCreateInfo, pAllocator, &s), "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return s, nil
}
