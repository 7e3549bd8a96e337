package common

import (
	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

// Conversions between the renderer's vocabulary and the Vulkan enumerations.

var formats = map[hal.Format]vk.Format{
	hal.FormatUndefined:          vk.FormatUndefined,
	hal.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	hal.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	hal.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	hal.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	hal.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
	hal.FormatR32G32Sfloat:       vk.FormatR32g32Sfloat,
	hal.FormatR32G32B32Sfloat:    vk.FormatR32g32b32Sfloat,
	hal.FormatR32G32B32A32Sfloat: vk.FormatR32g32b32a32Sfloat,
	hal.FormatD32Sfloat:          vk.FormatD32Sfloat,
	hal.FormatD32SfloatS8Uint:    vk.FormatD32SfloatS8Uint,
	hal.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
}

func toVkFormat(f hal.Format) vk.Format {
	return formats[f]
}

// fromVkFormat reports formats the renderer has no name for as undefined.
func fromVkFormat(f vk.Format) hal.Format {
	for h, v := range formats {
		if v == f {
			return h
		}
	}
	return hal.FormatUndefined
}

func toVkLayout(l hal.ImageLayout) vk.ImageLayout {
	switch l {
	case hal.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case hal.LayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case hal.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case hal.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case hal.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case hal.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

// layoutSync is the access mask and pipeline stage of everything that may touch an image while it sits in a
// layout. A barrier leaving the layout waits on them, a barrier entering it makes them wait.
func layoutSync(l hal.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case hal.LayoutColorAttachment:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case hal.LayoutDepthAttachment:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case hal.LayoutShaderReadOnly:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case hal.LayoutTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case hal.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case hal.LayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

func toVkAspect(a hal.ImageAspect) vk.ImageAspectFlags {
	var f vk.ImageAspectFlagBits
	if a&hal.AspectColor != 0 {
		f |= vk.ImageAspectColorBit
	}
	if a&hal.AspectDepth != 0 {
		f |= vk.ImageAspectDepthBit
	}
	if a&hal.AspectStencil != 0 {
		f |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(f)
}

func toVkImageUsage(u hal.ImageUsage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	if u&hal.UsageColorAttachment != 0 {
		f |= vk.ImageUsageColorAttachmentBit
	}
	if u&hal.UsageDepthAttachment != 0 {
		f |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&hal.UsageSampled != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if u&hal.UsageTransferSrc != 0 {
		f |= vk.ImageUsageTransferSrcBit
	}
	if u&hal.UsageTransferDst != 0 {
		f |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(f)
}

func toVkBufferUsage(u hal.BufferUsage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	if u&hal.BufferUsageVertex != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if u&hal.BufferUsageIndex != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if u&hal.BufferUsageUniform != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if u&hal.BufferUsageStorage != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if u&hal.BufferUsageTransferSrc != 0 {
		f |= vk.BufferUsageTransferSrcBit
	}
	if u&hal.BufferUsageTransferDst != 0 {
		f |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(f)
}

func memoryProperties(m hal.MemoryUsage) vk.MemoryPropertyFlags {
	if m == hal.MemoryCPUToGPU {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

// hal descriptor types and shader stages share the Vulkan values.
func toVkDescriptorType(t hal.DescriptorType) vk.DescriptorType { return vk.DescriptorType(t) }
func toVkStages(s hal.ShaderStage) vk.ShaderStageFlags          { return vk.ShaderStageFlags(s) }

func toVkFilter(f hal.Filter) vk.Filter {
	if f == hal.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkMipmapMode(f hal.Filter) vk.SamplerMipmapMode {
	if f == hal.FilterNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func toVkAddressMode(a hal.AddressMode) vk.SamplerAddressMode {
	switch a {
	case hal.AddressMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case hal.AddressClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case hal.AddressClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func toVkTopology(t hal.Topology) vk.PrimitiveTopology {
	switch t {
	case hal.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case hal.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case hal.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func toVkPolygonMode(p hal.PolygonMode) vk.PolygonMode {
	switch p {
	case hal.PolygonLine:
		return vk.PolygonModeLine
	case hal.PolygonPoint:
		return vk.PolygonModePoint
	default:
		return vk.PolygonModeFill
	}
}

func toVkCullMode(c hal.CullMode) vk.CullModeFlags {
	switch c {
	case hal.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case hal.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func toVkIndexType(t hal.IndexType) vk.IndexType {
	if t == hal.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

var presentModes = map[hal.PresentMode]vk.PresentMode{
	hal.PresentImmediate:   vk.PresentModeImmediate,
	hal.PresentMailbox:     vk.PresentModeMailbox,
	hal.PresentFifo:        vk.PresentModeFifo,
	hal.PresentFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func toVkPresentMode(m hal.PresentMode) vk.PresentMode {
	if v, ok := presentModes[m]; ok {
		return v
	}
	return vk.PresentModeFifo
}

// fromVkPresentModes drops modes the renderer does not know, such as the shared refresh modes.
func fromVkPresentModes(modes []vk.PresentMode) []hal.PresentMode {
	out := make([]hal.PresentMode, 0, len(modes))
	for _, m := range modes {
		for h, v := range presentModes {
			if v == m {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

func fromVkDeviceType(t vk.PhysicalDeviceType) hal.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return hal.DeviceTypeIntegratedGPU
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return hal.DeviceTypeDiscreteGPU
	case vk.PhysicalDeviceTypeVirtualGpu:
		return hal.DeviceTypeVirtualGPU
	case vk.PhysicalDeviceTypeCpu:
		return hal.DeviceTypeCPU
	default:
		return hal.DeviceTypeOther
	}
}

func toVkExtent(e hal.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) hal.Extent2D {
	return hal.Extent2D{Width: e.Width, Height: e.Height}
}

// blitCorner is the exclusive far corner of a blit region.
func blitCorner(e hal.Extent3D) vk.Offset3D {
	return vk.Offset3D{X: int32(e.Width), Y: int32(e.Height), Z: int32(max(e.Depth, 1))}
}
