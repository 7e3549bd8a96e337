package common

import (
	"log/slog"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

var DEVICE_EXTENSIONS = []string{
	"VK_KHR_swapchain",
}

// Options selects and configures the device created on a Window.
type Options struct {
	MinAPIVersion uint32
	Preferred     hal.DeviceType
	PresentMode   hal.PresentMode
	Validation    bool
	Logger        *slog.Logger
}

// Device represents the interfacing objects between the SDL window, the Hardware running Vulkan and the rest of
// the rendering engine. It implements hal.Device: every Vulkan object it creates is handed out as an opaque
// handle and looked up again when the renderer passes it back.
type Device struct {
	log *slog.Logger
	win *Window

	PhysicalDevice vk.PhysicalDevice
	PdProps        vk.PhysicalDeviceProperties
	PdMemoryProps  vk.PhysicalDeviceMemoryProperties
	adapter        hal.AdapterInfo
	family         uint32

	D     vk.Device
	Queue vk.Queue

	swap *swapChain

	images      *registry[*image]
	views       *registry[*imageView]
	buffers     *registry[*buffer]
	samplers    *registry[vk.Sampler]
	setLayouts  *registry[vk.DescriptorSetLayout]
	pools       *registry[*descriptorPool]
	sets        *registry[vk.DescriptorSet]
	pipeLayouts *registry[vk.PipelineLayout]
	pipelines   *registry[vk.Pipeline]
	fences      *registry[vk.Fence]
	semaphores  *registry[vk.Semaphore]
	cmdPools    *registry[*commandPool]

	passes *renderPassCache
}

var _ hal.Device = (*Device)(nil)

// NewDevice picks a physical device for the window's surface, creates the logical device with a single queue
// that graphics, compute and present share, and builds the swapchain at the window's drawable size.
func NewDevice(w *Window, opts Options) (*Device, error) {
	dc := &Device{
		log:         loggerOrDiscard(opts.Logger),
		win:         w,
		images:      newRegistry[*image](),
		views:       newRegistry[*imageView](),
		buffers:     newRegistry[*buffer](),
		samplers:    newRegistry[vk.Sampler](),
		setLayouts:  newRegistry[vk.DescriptorSetLayout](),
		pools:       newRegistry[*descriptorPool](),
		sets:        newRegistry[vk.DescriptorSet](),
		pipeLayouts: newRegistry[vk.PipelineLayout](),
		pipelines:   newRegistry[vk.Pipeline](),
		fences:      newRegistry[vk.Fence](),
		semaphores:  newRegistry[vk.Semaphore](),
		cmdPools:    newRegistry[*commandPool](),
	}
	if err := dc.selectPhysicalDevice(opts); err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(opts.Validation); err != nil {
		return nil, err
	}
	dc.passes = newRenderPassCache(dc.D)

	swap, err := newSwapChain(dc, nil, w.DrawableSize(), opts.PresentMode)
	if err != nil {
		dc.Destroy()
		return nil, err
	}
	dc.swap = swap
	return dc, nil
}

// selectPhysicalDevice describes every physical device that offers the swapchain extension and lets
// hal.SelectAdapter choose among them.
func (dc *Device) selectPhysicalDevice(opts Options) error {
	available, err := readPhysicalDevices(dc.win.Inst)
	if err != nil {
		return err
	}
	var (
		candidates []vk.PhysicalDevice
		infos      []hal.AdapterInfo
	)
	for _, pd := range available {
		props := readPhysicalDeviceProperties(pd)
		name := vk.ToString(props.DeviceName[:])
		families := readQueueFamilies(pd)
		dc.log.Info("physical device",
			"name", name,
			"type", fromVkDeviceType(props.DeviceType).String(),
			"vendor", vendorName(props.VendorID),
			"driver", driverVersion(props.VendorID, props.DriverVersion),
			"api", hal.VersionString(props.ApiVersion),
			"queues", describeQueueFamilies(families))

		if !dc.checkDeviceExtensionSupport(pd, name) {
			continue
		}
		support := readSurfaceSupport(pd, dc.win.Surf)
		if len(support.formats) == 0 {
			dc.log.Warn("skipping physical device without surface formats", "name", name)
			continue
		}
		candidates = append(candidates, pd)
		infos = append(infos, hal.AdapterInfo{
			Name:          name,
			Type:          fromVkDeviceType(props.DeviceType),
			APIVersion:    props.ApiVersion,
			QueueFamilies: queueFamilies(pd, dc.win.Surf, families),
			PresentModes:  fromVkPresentModes(support.presentModes),
		})
	}

	idx, ok := hal.SelectAdapter(infos, opts.MinAPIVersion, opts.Preferred)
	if !ok {
		panicf("no physical device supports Vulkan %s with a graphics, compute and present queue",
			hal.VersionString(opts.MinAPIVersion))
	}
	dc.PhysicalDevice = candidates[idx]
	dc.adapter = infos[idx]
	dc.family, _ = dc.adapter.QueueFamilyIndex()
	dc.PdProps = readPhysicalDeviceProperties(dc.PhysicalDevice)
	dc.PdMemoryProps = readDeviceMemoryProperties(dc.PhysicalDevice)
	dc.log.Info("selected physical device",
		"name", dc.adapter.Name,
		"type", dc.adapter.Type.String(),
		"queue_family", dc.family)
	return nil
}

func (dc *Device) checkDeviceExtensionSupport(pd vk.PhysicalDevice, name string) bool {
	supported, err := readDeviceExtensionNames(pd)
	if err != nil {
		dc.log.Warn("failed to read device extensions", "name", name, "err", err)
		return false
	}
	if missing := Missing(DEVICE_EXTENSIONS, supported); len(missing) > 0 {
		dc.log.Warn("skipping physical device", "name", name, "missing_extensions", missing)
		return false
	}
	return true
}

func (dc *Device) createLogicalDevice(validation bool) error {
	queueInfos := queueCreateInfos(dc.family)
	deviceFeatures := vk.PhysicalDeviceFeatures{ // We explicitly enable anisotropic sampling, more interesting stuff could be added here
		SamplerAnisotropy: vk.True,
	}
	deviceCreateInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(DEVICE_EXTENSIONS)),
		PpEnabledExtensionNames: TerminatedStrs(DEVICE_EXTENSIONS),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
	}
	if validation {
		deviceCreateInfo.EnabledLayerCount = uint32(len(VALIDATION_LAYERS))
		deviceCreateInfo.PpEnabledLayerNames = TerminatedStrs(VALIDATION_LAYERS)
	}

	var err error
	dc.D, err = VkCreateDevice(dc.PhysicalDevice, deviceCreateInfo, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}
	dc.Queue = VkGetDeviceQueue(dc.D, dc.family, 0)
	return nil
}

func (dc *Device) AdapterName() string {
	return dc.adapter.Name
}

// SupportedDepthFormat returns the first depth format in preference order the device can use as an optimally
// tiled depth attachment.
func (dc *Device) SupportedDepthFormat() (hal.Format, error) {
	f, ok := hal.FirstSupportedFormat(hal.DepthFormatCandidates, func(f hal.Format) bool {
		props := readFormatProperties(dc.PhysicalDevice, toVkFormat(f))
		return vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)&vk.FormatFeatureDepthStencilAttachmentBit != 0
	})
	if !ok {
		return hal.FormatUndefined, errUnsupported("depth formats", hal.DepthFormatCandidates)
	}
	return f, nil
}

func (dc *Device) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(dc.D), "vkDeviceWaitIdle")
}

// Destroy waits for the device to idle and releases everything still registered, then the device itself. Objects
// the renderer forgot to destroy are logged. It does not destroy the window the device was created on.
func (dc *Device) Destroy() {
	if dc.D == nil {
		return
	}
	if err := dc.WaitIdle(); err != nil {
		dc.log.Error("failed to wait for device idle before teardown", "err", err)
	}
	dc.destroyLeftovers()
	if dc.swap != nil {
		dc.swap.destroy(dc)
		dc.swap = nil
	}
	if dc.passes != nil {
		dc.passes.destroy()
	}
	vk.DestroyDevice(dc.D, nil)
	dc.D = nil
}

func (dc *Device) destroyLeftovers() {
	leaked := map[string]int{
		"pipeline":              dc.pipelines.len(),
		"pipeline_layout":       dc.pipeLayouts.len(),
		"descriptor_pool":       dc.pools.len(),
		"descriptor_set_layout": dc.setLayouts.len(),
		"command_pool":          dc.cmdPools.len(),
		"fence":                 dc.fences.len(),
		"semaphore":             dc.semaphores.len(),
		"sampler":               dc.samplers.len(),
		"buffer":                dc.buffers.len(),
	}
	for kind, n := range leaked {
		if n > 0 {
			dc.log.Warn("destroying leftover objects", "kind", kind, "count", n)
		}
	}
	dc.pipelines.each(func(h uint64, _ vk.Pipeline) { dc.DestroyPipeline(hal.Pipeline(h)) })
	dc.pipeLayouts.each(func(h uint64, _ vk.PipelineLayout) { dc.DestroyPipelineLayout(hal.PipelineLayout(h)) })
	dc.pools.each(func(h uint64, _ *descriptorPool) { dc.DestroyDescriptorPool(hal.DescriptorPool(h)) })
	dc.setLayouts.each(func(h uint64, _ vk.DescriptorSetLayout) { dc.DestroyDescriptorSetLayout(hal.DescriptorSetLayout(h)) })
	dc.cmdPools.each(func(h uint64, _ *commandPool) { dc.DestroyCommandPool(hal.CommandPool(h)) })
	dc.fences.each(func(h uint64, _ vk.Fence) { dc.DestroyFence(hal.Fence(h)) })
	dc.semaphores.each(func(h uint64, _ vk.Semaphore) { dc.DestroySemaphore(hal.Semaphore(h)) })
	dc.samplers.each(func(h uint64, _ vk.Sampler) { dc.DestroySampler(hal.Sampler(h)) })
	dc.buffers.each(func(h uint64, _ *buffer) { dc.DestroyBuffer(hal.Buffer(h)) })
	dc.views.each(func(h uint64, v *imageView) {
		if !v.swap {
			dc.DestroyImageView(hal.ImageView(h))
		}
	})
	dc.images.each(func(h uint64, img *image) {
		if !img.swap {
			dc.DestroyImage(hal.Image(h))
		}
	})
}
