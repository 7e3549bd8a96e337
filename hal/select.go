package hal

// QueueFamilyIndex returns the first queue family that can do graphics, compute and present at once.
func (a AdapterInfo) QueueFamilyIndex() (uint32, bool) {
	for i, qf := range a.QueueFamilies {
		if qf.Graphics && qf.Compute && qf.Present {
			return uint32(i), true
		}
	}
	return 0, false
}

// Capable reports whether the adapter can drive the renderer at the given API version.
func (a AdapterInfo) Capable(minAPIVersion uint32) bool {
	if a.APIVersion < minAPIVersion {
		return false
	}
	if _, ok := a.QueueFamilyIndex(); !ok {
		return false
	}
	return len(a.PresentModes) > 0
}

// SelectAdapter picks the adapter to create the device on. The first capable adapter of the preferred type wins
// and ends the scan; without one the last capable adapter seen is used. ok is false when nothing is capable.
func SelectAdapter(adapters []AdapterInfo, minAPIVersion uint32, preferred DeviceType) (idx int, ok bool) {
	idx = -1
	for i, a := range adapters {
		if !a.Capable(minAPIVersion) {
			continue
		}
		idx = i
		if a.Type == preferred {
			break
		}
	}
	return idx, idx >= 0
}

// ChooseSurfaceFormat defaults to the first format and switches to an 8 bit SRGB format when one is offered.
func ChooseSurfaceFormat(formats []SurfaceFormat) (SurfaceFormat, bool) {
	if len(formats) == 0 {
		return SurfaceFormat{}, false
	}
	for _, f := range formats {
		if f.Format == FormatR8G8B8A8Srgb || f.Format == FormatB8G8R8A8Srgb {
			return f, true
		}
	}
	return formats[0], true
}

// ChoosePresentMode returns want when available. Otherwise mailbox, then immediate, then FIFO which every
// surface has to support.
func ChoosePresentMode(available []PresentMode, want PresentMode) PresentMode {
	has := func(m PresentMode) bool {
		for _, a := range available {
			if a == m {
				return true
			}
		}
		return false
	}
	for _, m := range []PresentMode{want, PresentMailbox, PresentImmediate} {
		if has(m) {
			return m
		}
	}
	return PresentFifo
}

// ClampExtent clamps a requested size into the surface's supported range.
func ClampExtent(size Extent2D, caps SurfaceCapabilities) Extent2D {
	return Extent2D{
		Width:  clamp(size.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: clamp(size.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DepthFormatCandidates is the preference order for depth attachments.
var DepthFormatCandidates = []Format{FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint}

// FirstSupportedFormat returns the first candidate accepted by supported.
func FirstSupportedFormat(candidates []Format, supported func(Format) bool) (Format, bool) {
	for _, f := range candidates {
		if supported(f) {
			return f, true
		}
	}
	return FormatUndefined, false
}
