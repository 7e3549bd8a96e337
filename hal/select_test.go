package hal

import "testing"

func capableFamily() []QueueFamily {
	return []QueueFamily{{Graphics: true, Compute: true, Present: true}}
}

func TestSelectAdapter(t *testing.T) {
	v13 := MakeVersion(1, 3, 0)
	v12 := MakeVersion(1, 2, 0)
	mailbox := []PresentMode{PresentMailbox}

	tests := []struct {
		name      string
		adapters  []AdapterInfo
		preferred DeviceType
		want      int
		wantOk    bool
	}{
		{
			name:   "none",
			want:   -1,
			wantOk: false,
		},
		{
			name: "preferred wins and stops the scan",
			adapters: []AdapterInfo{
				{Name: "igpu", Type: DeviceTypeIntegratedGPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
				{Name: "dgpu", Type: DeviceTypeDiscreteGPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
				{Name: "dgpu2", Type: DeviceTypeDiscreteGPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
			},
			preferred: DeviceTypeDiscreteGPU,
			want:      1,
			wantOk:    true,
		},
		{
			name: "last capable when nothing preferred",
			adapters: []AdapterInfo{
				{Name: "igpu", Type: DeviceTypeIntegratedGPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
				{Name: "cpu", Type: DeviceTypeCPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
				{Name: "old", Type: DeviceTypeIntegratedGPU, APIVersion: v12, QueueFamilies: capableFamily(), PresentModes: mailbox},
			},
			preferred: DeviceTypeDiscreteGPU,
			want:      1,
			wantOk:    true,
		},
		{
			name: "api version too low is skipped even when preferred",
			adapters: []AdapterInfo{
				{Name: "old dgpu", Type: DeviceTypeDiscreteGPU, APIVersion: v12, QueueFamilies: capableFamily(), PresentModes: mailbox},
				{Name: "igpu", Type: DeviceTypeIntegratedGPU, APIVersion: v13, QueueFamilies: capableFamily(), PresentModes: mailbox},
			},
			preferred: DeviceTypeDiscreteGPU,
			want:      1,
			wantOk:    true,
		},
		{
			name: "split queue families are not capable",
			adapters: []AdapterInfo{
				{Name: "split", Type: DeviceTypeDiscreteGPU, APIVersion: v13, QueueFamilies: []QueueFamily{
					{Graphics: true, Compute: true},
					{Present: true},
				}, PresentModes: mailbox},
			},
			preferred: DeviceTypeDiscreteGPU,
			want:      -1,
			wantOk:    false,
		},
		{
			name: "no present modes",
			adapters: []AdapterInfo{
				{Name: "headless", Type: DeviceTypeDiscreteGPU, APIVersion: v13, QueueFamilies: capableFamily()},
			},
			preferred: DeviceTypeDiscreteGPU,
			want:      -1,
			wantOk:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectAdapter(tt.adapters, v13, tt.preferred)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("SelectAdapter() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestQueueFamilyIndex(t *testing.T) {
	a := AdapterInfo{QueueFamilies: []QueueFamily{
		{Graphics: true},
		{Compute: true, Present: true},
		{Graphics: true, Compute: true, Present: true},
	}}
	idx, ok := a.QueueFamilyIndex()
	if !ok || idx != 2 {
		t.Errorf("QueueFamilyIndex() = (%d, %v), want (2, true)", idx, ok)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	tests := []struct {
		name    string
		formats []SurfaceFormat
		want    Format
		wantOk  bool
	}{
		{"empty", nil, FormatUndefined, false},
		{"first when no srgb", []SurfaceFormat{{Format: FormatB8G8R8A8Unorm}, {Format: FormatR8G8B8A8Unorm}}, FormatB8G8R8A8Unorm, true},
		{"rgba srgb override", []SurfaceFormat{{Format: FormatB8G8R8A8Unorm}, {Format: FormatR8G8B8A8Srgb}}, FormatR8G8B8A8Srgb, true},
		{"bgra srgb override", []SurfaceFormat{{Format: FormatR16G16B16A16Sfloat}, {Format: FormatB8G8R8A8Srgb}}, FormatB8G8R8A8Srgb, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseSurfaceFormat(tt.formats)
			if got.Format != tt.want || ok != tt.wantOk {
				t.Errorf("ChooseSurfaceFormat() = (%v, %v), want (%v, %v)", got.Format, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name      string
		available []PresentMode
		want      PresentMode
		expected  PresentMode
	}{
		{"wanted available", []PresentMode{PresentFifo, PresentFifoRelaxed}, PresentFifoRelaxed, PresentFifoRelaxed},
		{"mailbox fallback", []PresentMode{PresentImmediate, PresentMailbox, PresentFifo}, PresentFifoRelaxed, PresentMailbox},
		{"immediate fallback", []PresentMode{PresentFifo, PresentImmediate}, PresentMailbox, PresentImmediate},
		{"fifo last", []PresentMode{PresentFifo}, PresentMailbox, PresentFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChoosePresentMode(tt.available, tt.want); got != tt.expected {
				t.Errorf("ChoosePresentMode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClampExtent(t *testing.T) {
	caps := SurfaceCapabilities{
		MinExtent: Extent2D{Width: 64, Height: 64},
		MaxExtent: Extent2D{Width: 4096, Height: 2160},
	}
	tests := []struct {
		in, want Extent2D
	}{
		{Extent2D{800, 600}, Extent2D{800, 600}},
		{Extent2D{0, 0}, Extent2D{64, 64}},
		{Extent2D{8000, 100}, Extent2D{4096, 100}},
		{Extent2D{100, 9000}, Extent2D{100, 2160}},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := ClampExtent(tt.in, caps); got != tt.want {
				t.Errorf("ClampExtent(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstSupportedFormat(t *testing.T) {
	supported := func(f Format) bool { return f == FormatD24UnormS8Uint }
	got, ok := FirstSupportedFormat(DepthFormatCandidates, supported)
	if !ok || got != FormatD24UnormS8Uint {
		t.Errorf("FirstSupportedFormat() = (%v, %v), want (%v, true)", got, ok, FormatD24UnormS8Uint)
	}
	if _, ok := FirstSupportedFormat(DepthFormatCandidates, func(Format) bool { return false }); ok {
		t.Errorf("FirstSupportedFormat() ok = true with no support")
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, name := range []string{"uniform_buffer", "combined_image_sampler", "input_attachment"} {
		dt, ok := ParseDescriptorType(name)
		if !ok || dt.String() != name {
			t.Errorf("ParseDescriptorType(%q) = (%v, %v)", name, dt, ok)
		}
	}
	if f, ok := ParseFormat("r32g32b32_sfloat"); !ok || f != FormatR32G32B32Sfloat {
		t.Errorf("ParseFormat() = (%v, %v), want r32g32b32_sfloat", f, ok)
	}
	if m, ok := ParsePresentMode("mailbox"); !ok || m != PresentMailbox {
		t.Errorf("ParsePresentMode() = (%v, %v), want mailbox", m, ok)
	}
	if _, ok := ParseDeviceType("quantum"); ok {
		t.Errorf("ParseDeviceType(quantum) ok = true")
	}
}
