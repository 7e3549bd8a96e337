// Package hal is the backend neutral vocabulary the renderer is written against. The Vulkan backend in
// package common implements it on real hardware and package haltest implements it in memory for tests.
package hal

import "fmt"

// Opaque object handles. The zero value of every handle is the null handle.
type (
	Image               uint64
	ImageView           uint64
	Buffer              uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	Fence               uint64
	Semaphore           uint64
	CommandPool         uint64
	Pipeline            uint64
	PipelineLayout      uint64
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

func (e Extent2D) To3D() Extent3D {
	return Extent3D{Width: e.Width, Height: e.Height, Depth: 1}
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR16G16B16A16Sfloat
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

var formatNames = map[Format]string{
	FormatUndefined:          "undefined",
	FormatR8G8B8A8Unorm:      "r8g8b8a8_unorm",
	FormatR8G8B8A8Srgb:       "r8g8b8a8_srgb",
	FormatB8G8R8A8Unorm:      "b8g8r8a8_unorm",
	FormatB8G8R8A8Srgb:       "b8g8r8a8_srgb",
	FormatR16G16B16A16Sfloat: "r16g16b16a16_sfloat",
	FormatR32G32Sfloat:       "r32g32_sfloat",
	FormatR32G32B32Sfloat:    "r32g32b32_sfloat",
	FormatR32G32B32A32Sfloat: "r32g32b32a32_sfloat",
	FormatD32Sfloat:          "d32_sfloat",
	FormatD32SfloatS8Uint:    "d32_sfloat_s8_uint",
	FormatD24UnormS8Uint:     "d24_unorm_s8_uint",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// ParseFormat resolves the names used by shader descriptions ("r32g32b32_sfloat", ...).
func ParseFormat(s string) (Format, bool) {
	for f, n := range formatNames {
		if n == s {
			return f, true
		}
	}
	return FormatUndefined, false
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

// ImageLayout is the access state an image is in on the GPU.
type ImageLayout uint32

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutColorAttachment:
		return "ColorAttachmentOptimal"
	case LayoutDepthAttachment:
		return "DepthAttachmentOptimal"
	case LayoutShaderReadOnly:
		return "ShaderReadOnly"
	case LayoutTransferSrc:
		return "TransferSrc"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutPresentSrc:
		return "PresentSrc"
	default:
		return fmt.Sprintf("layout(%d)", uint32(l))
	}
}

type ImageUsage uint32

const (
	UsageColorAttachment ImageUsage = 1 << iota
	UsageDepthAttachment
	UsageSampled
	UsageTransferSrc
	UsageTransferDst
)

type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
	AspectStencil
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

// MemoryUsage states who writes the memory behind a buffer.
type MemoryUsage uint32

const (
	MemoryGPUOnly MemoryUsage = iota
	MemoryCPUToGPU
)

// DescriptorType values follow the Vulkan enumeration so that structural keys built from them stay stable.
type DescriptorType uint32

const (
	DescriptorSampler DescriptorType = iota
	DescriptorCombinedImageSampler
	DescriptorSampledImage
	DescriptorStorageImage
	DescriptorUniformTexelBuffer
	DescriptorStorageTexelBuffer
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorUniformBufferDynamic
	DescriptorStorageBufferDynamic
	DescriptorInputAttachment
)

var descriptorTypeNames = []string{
	"sampler",
	"combined_image_sampler",
	"sampled_image",
	"storage_image",
	"uniform_texel_buffer",
	"storage_texel_buffer",
	"uniform_buffer",
	"storage_buffer",
	"uniform_buffer_dynamic",
	"storage_buffer_dynamic",
	"input_attachment",
}

func (t DescriptorType) String() string {
	if int(t) < len(descriptorTypeNames) {
		return descriptorTypeNames[t]
	}
	return fmt.Sprintf("descriptor(%d)", uint32(t))
}

func ParseDescriptorType(s string) (DescriptorType, bool) {
	for i, n := range descriptorTypeNames {
		if n == s {
			return DescriptorType(i), true
		}
	}
	return 0, false
}

// ShaderStage bits follow the Vulkan stage flags.
type ShaderStage uint32

const (
	StageVertex   ShaderStage = 0x01
	StageFragment ShaderStage = 0x10
	StageCompute  ShaderStage = 0x20
	StageAll      ShaderStage = 0x7fffffff
)

func ParseShaderStage(s string) (ShaderStage, bool) {
	switch s {
	case "vertex":
		return StageVertex, true
	case "fragment":
		return StageFragment, true
	case "vertex_fragment":
		return StageVertex | StageFragment, true
	case "compute":
		return StageCompute, true
	case "all":
		return StageAll, true
	}
	return 0, false
}

type PresentMode uint32

const (
	PresentImmediate PresentMode = iota
	PresentMailbox
	PresentFifo
	PresentFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentImmediate:
		return "immediate"
	case PresentMailbox:
		return "mailbox"
	case PresentFifo:
		return "fifo"
	case PresentFifoRelaxed:
		return "fifo_relaxed"
	default:
		return fmt.Sprintf("present(%d)", uint32(m))
	}
}

func ParsePresentMode(s string) (PresentMode, bool) {
	for _, m := range []PresentMode{PresentImmediate, PresentMailbox, PresentFifo, PresentFifoRelaxed} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

type DeviceType uint32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeOther:
		return "other"
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

func ParseDeviceType(s string) (DeviceType, bool) {
	for _, t := range []DeviceType{DeviceTypeOther, DeviceTypeIntegratedGPU, DeviceTypeDiscreteGPU, DeviceTypeVirtualGPU, DeviceTypeCPU} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

type LoadOp uint32

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

type IndexType uint32

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

type Filter uint32

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode uint32

const (
	AddressRepeat AddressMode = iota
	AddressMirroredRepeat
	AddressClampToEdge
	AddressClampToBorder
)

type Topology uint32

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

type PolygonMode uint32

const (
	PolygonFill PolygonMode = iota
	PolygonLine
	PolygonPoint
)

type CullMode uint32

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// MakeVersion packs a version the way the Vulkan API version field does.
func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

func VersionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
