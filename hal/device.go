package hal

import (
	"errors"
	"time"
)

// Results a Device reports for conditions callers are expected to react on. Anything else is wrapped with
// context by the backend and treated as a failure of the call.
var (
	ErrOutOfDate       = errors.New("hal: swapchain out of date")
	ErrSuboptimal      = errors.New("hal: swapchain suboptimal")
	ErrOutOfPoolMemory = errors.New("hal: descriptor pool out of memory")
	ErrFragmentedPool  = errors.New("hal: descriptor pool fragmented")
	ErrTimeout         = errors.New("hal: wait timed out")
	ErrDeviceLost      = errors.New("hal: device lost")
	ErrUnsupported     = errors.New("hal: unsupported")
)

type ImageDesc struct {
	Extent    Extent3D
	Format    Format
	Usage     ImageUsage
	MipLevels uint32
}

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryUsage
}

type SamplerDesc struct {
	MinFilter   Filter
	MagFilter   Filter
	MipFilter   Filter
	AddressMode AddressMode
	MaxLod      float32
	Anisotropy  bool
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type BufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type ImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// DescriptorWrite fills Binding of Set with either Buffers or Images depending on Type.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffers []BufferInfo
	Images  []ImageInfo
}

type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspect
	OldLayout ImageLayout
	NewLayout ImageLayout
	BaseMip   uint32
	MipCount  uint32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderingAttachment struct {
	View   ImageView
	Format Format
	Layout ImageLayout
	Load   LoadOp
	Clear  ClearValue
}

// RenderingInfo describes one rendering scope. It is a plain value rebuilt for every pass.
type RenderingInfo struct {
	Area  Extent2D
	Color []RenderingAttachment
	Depth *RenderingAttachment
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y   int32
	Extent Extent2D
}

type BlitInfo struct {
	Src       Image
	SrcLayout ImageLayout
	SrcExtent Extent3D
	SrcMip    uint32
	Dst       Image
	DstLayout ImageLayout
	DstExtent Extent3D
	DstMip    uint32
	Aspect    ImageAspect
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type PipelineDesc struct {
	Vertex         []byte
	Fragment       []byte
	Layout         PipelineLayout
	Stride         uint32
	Attributes     []VertexAttribute
	Topology       Topology
	Polygon        PolygonMode
	Cull           CullMode
	Blend          bool
	ColorWrite     bool
	DepthTest      bool
	DepthWrite     bool
	ColorFormats   []Format
	DepthFormat    Format
	PushConstSize  uint32
	PushConstStage ShaderStage
}

type QueueFamily struct {
	Graphics bool
	Compute  bool
	Present  bool
}

// AdapterInfo is what device selection knows about one physical device.
type AdapterInfo struct {
	Name          string
	Type          DeviceType
	APIVersion    uint32
	QueueFamilies []QueueFamily
	PresentModes  []PresentMode
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace uint32
}

type SurfaceCapabilities struct {
	MinExtent     Extent2D
	MaxExtent     Extent2D
	CurrentExtent Extent2D
	MinImageCount uint32
	MaxImageCount uint32
}

// Device is the GPU a renderer records and submits work to. It also owns the presentation surface and its
// swapchain. A Device is not safe for concurrent use.
type Device interface {
	AdapterName() string

	CreateImage(desc ImageDesc) (Image, error)
	CreateImageView(img Image, format Format, aspect ImageAspect, mipLevels uint32) (ImageView, error)
	DestroyImageView(v ImageView)
	DestroyImage(img Image)
	SupportedDepthFormat() (Format, error)

	CreateBuffer(desc BufferDesc) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	DestroyBuffer(buf Buffer)

	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	ResetDescriptorPool(p DescriptorPool) error
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(p DescriptorPool, l DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(sets []DescriptorSetLayout, pushConstSize uint32, pushConstStage ShaderStage) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(desc PipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CreateFence(signaled bool) (Fence, error)
	// WaitFence returns ErrTimeout when the fence is not signalled within timeout.
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	DestroyFence(f Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	CreateCommandPool() (CommandPool, error)
	ResetCommandPool(p CommandPool) error
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffer(p CommandPool) (CommandBuffer, error)

	Submit(info SubmitInfo) error
	WaitIdle() error

	// AcquireNextImage signals the semaphore once the returned swapchain image may be written. ErrOutOfDate
	// means the swapchain must be recreated before it can be used again.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, error)
	Present(imageIndex uint32, wait Semaphore) error
	RecreateSwapchain(size Extent2D, mode PresentMode) error
	SwapchainImages() []Image
	SwapchainImageViews() []ImageView
	SwapchainExtent() Extent2D
	SurfaceFormat() SurfaceFormat
	PresentMode() PresentMode

	Destroy()
}

// CommandBuffer records GPU commands. Implementations only record: nothing executes until submitted.
type CommandBuffer interface {
	Begin(oneTime bool) error
	End() error

	PipelineBarrier(b ImageBarrier)
	BlitImage(info BlitInfo)
	CopyBuffer(src, dst Buffer, srcOffset, dstOffset, size uint64)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout, extent Extent3D)

	BeginRendering(info RenderingInfo)
	EndRendering()
	SetViewport(v Viewport)
	SetScissor(r Rect)

	BindPipeline(p Pipeline)
	BindDescriptorSet(layout PipelineLayout, index uint32, set DescriptorSet)
	BindVertexBuffer(buf Buffer, offset uint64)
	BindIndexBuffer(buf Buffer, offset uint64, t IndexType)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
