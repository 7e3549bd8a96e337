package common

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

// This Code section contains allocation helper functions. It aims to simplify the allocation of buffers and
// images on the selected device. Every buffer and image gets its own device memory allocation.

type buffer struct {
	handle vk.Buffer
	mem    vk.DeviceMemory
	size   uint64
	// mapped is set for CPU writable buffers, which stay mapped for their whole lifetime.
	mapped unsafe.Pointer
}

type image struct {
	handle vk.Image
	mem    vk.DeviceMemory
	format vk.Format
	// swap images belong to the swapchain and are never freed through DestroyImage.
	swap bool
}

type imageView struct {
	handle vk.ImageView
	image  hal.Image
	swap   bool
}

func (dc *Device) CreateBuffer(desc hal.BufferDesc) (hal.Buffer, error) {
	if desc.Size == 0 {
		return 0, errors.New("buffer size must be positive")
	}
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toVkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	buf, err := VkCreateBuffer(dc.D, &bufferInfo, nil)
	if err != nil {
		return 0, err
	}

	bufRequirements := readBufferMemoryRequirements(dc.D, buf)
	mem, err := dc.allocate(bufRequirements, memoryProperties(desc.Memory))
	if err != nil {
		vk.DestroyBuffer(dc.D, buf, nil)
		return 0, err
	}
	// Associate allocated memory with buffer handle
	if err := VkBindBufferMemory(dc.D, buf, mem, 0); err != nil {
		vk.DestroyBuffer(dc.D, buf, nil)
		vk.FreeMemory(dc.D, mem, nil)
		return 0, err
	}

	b := &buffer{handle: buf, mem: mem, size: desc.Size}
	if desc.Memory == hal.MemoryCPUToGPU {
		b.mapped, err = VkMapMemory(dc.D, mem, 0, vk.DeviceSize(desc.Size), 0)
		if err != nil {
			vk.DestroyBuffer(dc.D, buf, nil)
			vk.FreeMemory(dc.D, mem, nil)
			return 0, err
		}
	}
	return hal.Buffer(dc.buffers.add(b)), nil
}

// WriteBuffer copies data into a CPU writable buffer. Memory is host coherent so no flush is needed.
func (dc *Device) WriteBuffer(h hal.Buffer, offset uint64, data []byte) error {
	b := dc.buffers.mustGet(uint64(h), "buffer")
	if b.mapped == nil {
		return errors.Errorf("buffer %d is not host visible", h)
	}
	if offset+uint64(len(data)) > b.size {
		return errors.Errorf("write of %d bytes at %d exceeds buffer %d of %d bytes", len(data), offset, h, b.size)
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (dc *Device) DestroyBuffer(h hal.Buffer) {
	b, ok := dc.buffers.remove(uint64(h))
	if !ok {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(dc.D, b.mem)
	}
	vk.DestroyBuffer(dc.D, b.handle, nil)
	vk.FreeMemory(dc.D, b.mem, nil)
}

func (dc *Device) CreateImage(desc hal.ImageDesc) (hal.Image, error) {
	format := toVkFormat(desc.Format)
	if format == vk.FormatUndefined {
		return 0, errUnsupported("image format", desc.Format)
	}
	imageInfo := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  max(desc.Extent.Depth, 1),
		},
		MipLevels:     max(desc.MipLevels, 1),
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img, err := VkCreateImage(dc.D, imageInfo, nil)
	if err != nil {
		return 0, err
	}

	memRequirements := readImageMemoryRequirements(dc.D, img)
	mem, err := dc.allocate(memRequirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(dc.D, img, nil)
		return 0, err
	}
	if err := VkBindImageMemory(dc.D, img, mem, 0); err != nil {
		vk.DestroyImage(dc.D, img, nil)
		vk.FreeMemory(dc.D, mem, nil)
		return 0, err
	}
	return hal.Image(dc.images.add(&image{handle: img, mem: mem, format: format})), nil
}

func (dc *Device) DestroyImage(h hal.Image) {
	img, ok := dc.images.get(uint64(h))
	if !ok || img.swap {
		return
	}
	dc.images.remove(uint64(h))
	vk.DestroyImage(dc.D, img.handle, nil)
	vk.FreeMemory(dc.D, img.mem, nil)
}

func (dc *Device) CreateImageView(h hal.Image, format hal.Format, aspect hal.ImageAspect, mipLevels uint32) (hal.ImageView, error) {
	img := dc.images.mustGet(uint64(h), "image")
	vkFormat := toVkFormat(format)
	if vkFormat == vk.FormatUndefined {
		vkFormat = img.format
	}
	view, err := VKSCreate2DImageView(dc.D, img.handle, vkFormat, toVkAspect(aspect), max(mipLevels, 1))
	if err != nil {
		return 0, err
	}
	return hal.ImageView(dc.views.add(&imageView{handle: view, image: h})), nil
}

// DestroyImageView also drops every cached framebuffer the view is attached to.
func (dc *Device) DestroyImageView(h hal.ImageView) {
	v, ok := dc.views.get(uint64(h))
	if !ok || v.swap {
		return
	}
	dc.views.remove(uint64(h))
	dc.passes.evict(h)
	vk.DestroyImageView(dc.D, v.handle, nil)
}

func (dc *Device) CreateSampler(desc hal.SamplerDesc) (hal.Sampler, error) {
	samplerInfo := &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toVkFilter(desc.MagFilter),
		MinFilter:               toVkFilter(desc.MinFilter),
		MipmapMode:              toVkMipmapMode(desc.MipFilter),
		AddressModeU:            toVkAddressMode(desc.AddressMode),
		AddressModeV:            toVkAddressMode(desc.AddressMode),
		AddressModeW:            toVkAddressMode(desc.AddressMode),
		MipLodBias:              0,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  desc.MaxLod,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if desc.Anisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = dc.PdProps.Limits.MaxSamplerAnisotropy
	}
	s, err := VkCreateSampler(dc.D, samplerInfo, nil)
	if err != nil {
		return 0, err
	}
	return hal.Sampler(dc.samplers.add(s)), nil
}

func (dc *Device) DestroySampler(h hal.Sampler) {
	if s, ok := dc.samplers.remove(uint64(h)); ok {
		vk.DestroySampler(dc.D, s, nil)
	}
}

func (dc *Device) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	memType, err := findMemoryType(dc.PdMemoryProps, req.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	return VkAllocateMemory(dc.D, &allocInfo, nil)
}

func findMemoryType(memProps vk.PhysicalDeviceMemoryProperties, typeFilter uint32, propFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		ofType := (typeFilter & (1 << i)) > 0
		hasProperties := memProps.MemoryTypes[i].PropertyFlags&propFlags == propFlags
		if ofType && hasProperties {
			return i, nil
		}
	}
	return 0, errors.Errorf("no memory type in %b with properties %b", typeFilter, propFlags)
}
