package common

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Read operations that require duplicated function calls, allocations and dereferencing. They are pulled out
// to provide a more go-lang feel and tidy the core code.

// ReadInstanceExtensionPropertyNames is a convenience method obfuscating the Vulkan defined
// []vk.ExtensionProperties type in favor of their respective names in order to simplify support checks to a
// point of string comparisons.
func ReadInstanceExtensionPropertyNames() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, errors.Wrap(err, "failed to read number of instance extensions")
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d instance extensions", count)
	}
	return extensionNames(props), nil
}

// ReadInstanceLayerPropertyNames does the same for instance (validation) layers.
func ReadInstanceLayerPropertyNames() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, errors.Wrap(err, "failed to read number of instance layers")
	}
	layers := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d instance layers", count)
	}
	names := make([]string, len(layers))
	for i := range layers {
		layers[i].Deref()
		names[i] = vk.ToString(layers[i].LayerName[:])
	}
	return names, nil
}

func readDeviceExtensionNames(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)); err != nil {
		return nil, errors.Wrap(err, "failed to read number of device extensions")
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &count, props)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d device extensions", count)
	}
	return extensionNames(props), nil
}

func extensionNames(props []vk.ExtensionProperties) []string {
	names := make([]string, len(props))
	for i := range props {
		props[i].Deref()
		names[i] = vk.ToString(props[i].ExtensionName[:])
	}
	return names
}

func readPhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var count uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "failed to read number of physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, devices)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d physical devices", count)
	}
	return devices, nil
}

func readPhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	return props
}

func readQueueFamilies(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i := range families {
		families[i].Deref()
		families[i].MinImageTransferGranularity.Deref()
	}
	return families
}

// surfaceSupport is what a surface offers on one physical device.
type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func readSurfaceSupport(pd vk.PhysicalDevice, surface vk.Surface) surfaceSupport {
	s := surfaceSupport{}
	vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &s.capabilities)
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	s.formats = make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, s.formats)
	for i := range s.formats {
		s.formats[i].Deref()
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)
	s.presentModes = make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, s.presentModes)
	return s
}

func readSwapChainImages(device vk.Device, swapChain vk.Swapchain) []vk.Image {
	var count uint32
	vk.GetSwapchainImages(device, swapChain, &count, nil)
	imgs := make([]vk.Image, count)
	vk.GetSwapchainImages(device, swapChain, &count, imgs)
	return imgs
}

func readDeviceMemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &props)
	props.Deref()
	for i := range props.MemoryTypes {
		props.MemoryTypes[i].Deref()
	}
	for i := range props.MemoryHeaps {
		props.MemoryHeaps[i].Deref()
	}
	return props
}

func readBufferMemoryRequirements(device vk.Device, b vk.Buffer) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, b, &req)
	req.Deref()
	return req
}

func readImageMemoryRequirements(device vk.Device, img vk.Image) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img, &req)
	req.Deref()
	return req
}

func readFormatProperties(pd vk.PhysicalDevice, format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(pd, format, &props)
	props.Deref()
	return props
}
