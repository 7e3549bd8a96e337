package common

import (
	"time"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

type swapChain struct {
	Handle vk.Swapchain

	Format      vk.SurfaceFormat
	PresentMode hal.PresentMode
	Extent      hal.Extent2D

	// Images and ImgViews are registered with the device so the renderer can address them like any other image.
	Images   []hal.Image
	ImgViews []hal.ImageView
}

// newSwapChain creates a swapchain for size, clamped to what the surface supports. old is passed on as the
// retired swapchain and may be nil.
func newSwapChain(dc *Device, old *swapChain, size hal.Extent2D, mode hal.PresentMode) (*swapChain, error) {
	support := readSurfaceSupport(dc.PhysicalDevice, dc.win.Surf)
	surfaceFormats := make([]hal.SurfaceFormat, 0, len(support.formats))
	for _, f := range support.formats {
		if hf := fromVkFormat(f.Format); hf != hal.FormatUndefined {
			surfaceFormats = append(surfaceFormats, hal.SurfaceFormat{Format: hf, ColorSpace: uint32(f.ColorSpace)})
		}
	}
	chosen, ok := hal.ChooseSurfaceFormat(surfaceFormats)
	if !ok {
		return nil, errUnsupported("surface formats", support.formats)
	}

	caps := support.capabilities
	extent := hal.ClampExtent(size, hal.SurfaceCapabilities{
		MinExtent:     fromVkExtent(caps.MinImageExtent),
		MaxExtent:     fromVkExtent(caps.MaxImageExtent),
		CurrentExtent: fromVkExtent(caps.CurrentExtent),
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
	})

	sc := &swapChain{
		Format:      vk.SurfaceFormat{Format: toVkFormat(chosen.Format), ColorSpace: vk.ColorSpace(chosen.ColorSpace)},
		PresentMode: hal.ChoosePresentMode(fromVkPresentModes(support.presentModes), mode),
		Extent:      extent,
	}

	// Calc reasonable image count for swap chain, a max count of 0 means unlimited
	imgCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imgCount > caps.MaxImageCount {
		imgCount = caps.MaxImageCount
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          dc.win.Surf,
		MinImageCount:    imgCount,
		ImageFormat:      sc.Format.Format,
		ImageColorSpace:  sc.Format.ColorSpace,
		ImageExtent:      toVkExtent(extent),
		ImageArrayLayers: 1,
		// Transfer destination so passes can blit into the swapchain image
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(sc.PresentMode),
		Clipped:          vk.True,
	}
	if old != nil {
		createInfo.OldSwapchain = old.Handle
	}

	var err error
	sc.Handle, err = VkCreateSwapChain(dc.D, createInfo, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create swapchain")
	}
	if err := sc.registerImages(dc); err != nil {
		sc.destroy(dc)
		return nil, err
	}
	dc.log.Info("created swapchain",
		"extent", sc.Extent,
		"images", len(sc.Images),
		"format", chosen.Format,
		"present", sc.PresentMode)
	return sc, nil
}

func (sc *swapChain) registerImages(dc *Device) error {
	imgs := readSwapChainImages(dc.D, sc.Handle)
	sc.Images = make([]hal.Image, 0, len(imgs))
	sc.ImgViews = make([]hal.ImageView, 0, len(imgs))
	for _, img := range imgs {
		view, err := VKSCreate2DImageView(dc.D, img, sc.Format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1)
		if err != nil {
			return err
		}
		h := hal.Image(dc.images.add(&image{handle: img, format: sc.Format.Format, swap: true}))
		sc.Images = append(sc.Images, h)
		sc.ImgViews = append(sc.ImgViews, hal.ImageView(dc.views.add(&imageView{handle: view, image: h, swap: true})))
	}
	return nil
}

func (sc *swapChain) destroy(dc *Device) {
	for _, h := range sc.ImgViews {
		dc.passes.evict(h)
		if v, ok := dc.views.remove(uint64(h)); ok {
			vk.DestroyImageView(dc.D, v.handle, nil)
		}
	}
	for _, h := range sc.Images {
		dc.images.remove(uint64(h))
	}
	vk.DestroySwapchain(dc.D, sc.Handle, nil)
}

// RecreateSwapchain waits for the device to idle and replaces the swapchain. Handles of the previous images and
// views are invalid afterwards.
func (dc *Device) RecreateSwapchain(size hal.Extent2D, mode hal.PresentMode) error {
	if err := dc.WaitIdle(); err != nil {
		return err
	}
	sc, err := newSwapChain(dc, dc.swap, size, mode)
	if err != nil {
		return err
	}
	dc.swap.destroy(dc)
	dc.swap = sc
	return nil
}

func (dc *Device) AcquireNextImage(timeout time.Duration, signal hal.Semaphore) (uint32, error) {
	sem := dc.semaphores.mustGet(uint64(signal), "semaphore")
	var idx uint32
	ret := vk.AcquireNextImage(dc.D, dc.swap.Handle, uint64(timeout.Nanoseconds()), sem, nil, &idx)
	return idx, resultError(ret, "vkAcquireNextImageKHR")
}

func (dc *Device) Present(imageIndex uint32, wait hal.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{dc.swap.Handle},
		PImageIndices:  []uint32{imageIndex},
	}
	if wait != 0 {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{dc.semaphores.mustGet(uint64(wait), "semaphore")}
	}
	return resultError(vk.QueuePresent(dc.Queue, &presentInfo), "vkQueuePresentKHR")
}

func (dc *Device) SwapchainImages() []hal.Image         { return dc.swap.Images }
func (dc *Device) SwapchainImageViews() []hal.ImageView { return dc.swap.ImgViews }
func (dc *Device) SwapchainExtent() hal.Extent2D        { return dc.swap.Extent }
func (dc *Device) PresentMode() hal.PresentMode         { return dc.swap.PresentMode }

func (dc *Device) SurfaceFormat() hal.SurfaceFormat {
	return hal.SurfaceFormat{Format: fromVkFormat(dc.swap.Format.Format), ColorSpace: uint32(dc.swap.Format.ColorSpace)}
}
