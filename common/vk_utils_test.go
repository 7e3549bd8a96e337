package common

import (
	"reflect"
	"testing"

	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

func TestMissing(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []string
	}{
		{"all present", []string{"x", "y"}, []string{"y", "x", "z"}, nil},
		{"one missing", []string{"x", "w"}, []string{"x"}, []string{"w"}},
		{"empty required", nil, []string{"x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Missing(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Missing() = %v, want %v", got, tt.want)
			}
			if got := IsSubset(tt.a, tt.b); got != (len(tt.want) == 0) {
				t.Errorf("IsSubset() = %v", got)
			}
		})
	}
}

func TestTerminatedStrs(t *testing.T) {
	in := []string{"VK_KHR_swapchain", "done\x00", ""}
	got := TerminatedStrs(in)
	want := []string{"VK_KHR_swapchain\x00", "done\x00", "\x00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TerminatedStrs() = %q, want %q", got, want)
	}
	if in[0] != "VK_KHR_swapchain" {
		t.Errorf("input was modified: %q", in[0])
	}
}

func TestAsUint32Arr(t *testing.T) {
	words := AsUint32Arr([]byte{0x03, 0x02, 0x23, 0x07, 0xff, 0, 0, 0, 9})
	if len(words) != 2 {
		t.Fatalf("len = %d, want 2", len(words))
	}
	if AsUint32Arr([]byte{1, 2}) != nil {
		t.Errorf("short input should give nil")
	}
}

func TestDriverVersion(t *testing.T) {
	tests := []struct {
		vendor uint32
		raw    uint32
		want   string
	}{
		{0x8086, hal.MakeVersion(1, 2, 3), "1.2.3"},
		{0x10DE, 535<<22 | 104<<14 | 5<<6, "535.104.5.0"},
	}
	for _, tt := range tests {
		if got := driverVersion(tt.vendor, tt.raw); got != tt.want {
			t.Errorf("driverVersion(%#x, %d) = %q, want %q", tt.vendor, tt.raw, got, tt.want)
		}
	}
	if vendorName(0x1002) != "AMD" || vendorName(1) != "unknown" {
		t.Errorf("vendorName mismatch")
	}
}

func TestDescribeQueueFamilies(t *testing.T) {
	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), QueueCount: 16},
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 2},
	}
	want := "0:16x[graphics,compute] 1:2x[transfer]"
	if got := describeQueueFamilies(families); got != want {
		t.Errorf("describeQueueFamilies() = %q, want %q", got, want)
	}
}

func TestRenderingKey(t *testing.T) {
	info := hal.RenderingInfo{
		Area: hal.Extent2D{Width: 4, Height: 4},
		Color: []hal.RenderingAttachment{
			{View: 3, Format: hal.FormatR16G16B16A16Sfloat, Layout: hal.LayoutColorAttachment, Load: hal.LoadOpClear},
		},
		Depth: &hal.RenderingAttachment{View: 4, Format: hal.FormatD32Sfloat, Layout: hal.LayoutDepthAttachment, Load: hal.LoadOpLoad},
	}
	key := renderingKey(info)
	if key.colorCount != 1 || !key.hasDepth {
		t.Fatalf("key = %+v, want one color and a depth attachment", key)
	}
	if key.depth.load != vk.AttachmentLoadOpLoad || key.colors[0].load != vk.AttachmentLoadOpClear {
		t.Errorf("load ops = %v, %v", key.colors[0].load, key.depth.load)
	}

	other := info
	other.Color = []hal.RenderingAttachment{info.Color[0]}
	other.Color[0].View = 9
	if renderingKey(other) != key {
		t.Errorf("views must not change the render pass key")
	}

	compatible := pipelineKey([]hal.Format{hal.FormatR16G16B16A16Sfloat}, hal.FormatD32Sfloat)
	if compatible.colors[0].format != key.colors[0].format || compatible.depth.format != key.depth.format {
		t.Errorf("pipeline key formats differ from the rendering key")
	}
	if pipelineKey(nil, hal.FormatD32Sfloat).colorCount != 0 {
		t.Errorf("depth only pipeline key has color attachments")
	}
}
