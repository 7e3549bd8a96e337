package common

import (
	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

// queueFamilies describes every queue family of pd, including whether it can present to surf.
func queueFamilies(pd vk.PhysicalDevice, surf vk.Surface, props []vk.QueueFamilyProperties) []hal.QueueFamily {
	families := make([]hal.QueueFamily, len(props))
	for i := range props {
		var presentSupport vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surf, &presentSupport)
		families[i] = hal.QueueFamily{
			Graphics: isBitSet(props[i], vk.QueueGraphicsBit),
			Compute:  isBitSet(props[i], vk.QueueComputeBit),
			Present:  presentSupport == vk.True,
		}
	}
	return families
}

func isBitSet(qFamily vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
	return vk.QueueFlagBits(qFamily.QueueFlags)&bit > 0
}

// queueCreateInfos requests one queue of the single family used for graphics, compute and present.
func queueCreateInfos(family uint32) []vk.DeviceQueueCreateInfo {
	return []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
}
