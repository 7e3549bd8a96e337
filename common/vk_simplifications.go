package common

import (
	vk "github.com/goki/vulkan"
)

// Utility functions providing slightly altered versions of the raw go bindings and wrapped functions. These
// altered versions only hide very obvious default values that will not need to change most of the time. Each
// simplification function states what it defaults. Names are prefixed with VKS which stands for
// (V)ul(K)an (S)implified.

// VKSAllocateCommandBuffers simplifies vk.AllocateCommandBuffers(...) by assuming the number of desired
// CommandBuffers to create is provided in the vk.CommandBufferAllocateInfo parameter.
func VKSAllocateCommandBuffers(device vk.Device, pAllocateInfo *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, pAllocateInfo.CommandBufferCount)
	if err := resultError(vk.AllocateCommandBuffers(device, pAllocateInfo, buffers), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return buffers, nil
}

// VKSAllocatePrimaryCommandBuffers allocates count primary level command buffers from cmdPool.
func VKSAllocatePrimaryCommandBuffers(device vk.Device, cmdPool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	return VKSAllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
}

// VKSCreateCommandPool implicitly instantiates the CreateInfo for the command pool based on the provided
// arguments. The CreateInfo only holds two interesting values in this case.
func VKSCreateCommandPool(device vk.Device, flags vk.CommandPoolCreateFlags, queueFamilyIndex uint32) (vk.CommandPool, error) {
	return VkCreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: queueFamilyIndex,
	}, nil)
}

// VKSCreate2DImageView creates an identity swizzled 2D view over the first mipLevels levels of image.
func VKSCreate2DImageView(device vk.Device, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags, mipLevels uint32) (vk.ImageView, error) {
	return VkCreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}, nil)
}

// VKSCreateSemaphore creates a binary semaphore.
func VKSCreateSemaphore(device vk.Device) (vk.Semaphore, error) {
	return VkCreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil)
}

// VKSCreateFence creates a fence, optionally already signalled.
func VKSCreateFence(device vk.Device, signaled bool) (vk.Fence, error) {
	info := &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	return VkCreateFence(device, info, nil)
}
