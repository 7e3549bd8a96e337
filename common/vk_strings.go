package common

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
)

// Human readable descriptions of physical devices for the start-up log.

func vendorName(id uint32) string {
	// https://www.reddit.com/r/vulkan/comments/4ta9nj/is_there_a_comprehensive_list_of_the_names_and/
	switch id {
	case 0x1002:
		return "AMD"
	case 0x1010:
		return "ImgTec"
	case 0x10DE:
		return "NVIDIA"
	case 0x13B5:
		return "ARM"
	case 0x5143:
		return "Qualcomm"
	case 0x8086:
		return "INTEL"
	case 0x10005:
		return "Mesa"
	default:
		return "unknown"
	}
}

// driverVersion decodes the vendor specific packing of the driver version. Only NVIDIA deviates from the API
// version layout.
func driverVersion(vendor uint32, raw uint32) string {
	if vendor == 0x10DE {
		return fmt.Sprintf("%d.%d.%d.%d", (raw>>22)&0x3ff, (raw>>14)&0x0ff, (raw>>6)&0x0ff, raw&0x003f)
	}
	return fmt.Sprintf("%d.%d.%d", raw>>22, (raw>>12)&0x3ff, raw&0xfff)
}

func queueFlagNames(bits vk.QueueFlags) []string {
	flags := vk.QueueFlagBits(bits)
	var names []string
	if flags&vk.QueueGraphicsBit != 0 {
		names = append(names, "graphics")
	}
	if flags&vk.QueueComputeBit != 0 {
		names = append(names, "compute")
	}
	if flags&vk.QueueTransferBit != 0 {
		names = append(names, "transfer")
	}
	if flags&vk.QueueSparseBindingBit != 0 {
		names = append(names, "sparse")
	}
	return names
}

func describeQueueFamilies(families []vk.QueueFamilyProperties) string {
	parts := make([]string, len(families))
	for i, q := range families {
		parts[i] = fmt.Sprintf("%d:%dx[%s]", i, q.QueueCount, strings.Join(queueFlagNames(q.QueueFlags), ","))
	}
	return strings.Join(parts, " ")
}
