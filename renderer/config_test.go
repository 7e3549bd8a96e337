package renderer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"GPU_render_graph/hal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.APIVersion() != hal.MakeVersion(1, 3, 0) {
		t.Errorf("APIVersion() = %s", hal.VersionString(cfg.APIVersion()))
	}
	if cfg.PreferredDeviceType() != hal.DeviceTypeDiscreteGPU {
		t.Errorf("PreferredDeviceType() = %v", cfg.PreferredDeviceType())
	}
	if cfg.PresentModeValue() != hal.PresentMailbox {
		t.Errorf("PresentModeValue() = %v", cfg.PresentModeValue())
	}
	ratios := cfg.PoolRatios()
	if len(ratios) != len(DefaultPoolRatios) {
		t.Fatalf("PoolRatios() = %d entries, want %d", len(ratios), len(DefaultPoolRatios))
	}
	for i, r := range ratios {
		if r != DefaultPoolRatios[i] {
			t.Errorf("ratio %d = %+v, want %+v", i, r, DefaultPoolRatios[i])
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
window:
  title: test
renderer:
  frames_in_flight: 2
  fence_timeout: 250ms
  present_mode: fifo
descriptors:
  ratios:
    uniform_buffer: 8
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Window.Title != "test" || cfg.Window.Width != 1280 {
		t.Errorf("window = %+v, want title overridden and width kept", cfg.Window)
	}
	if cfg.Renderer.FramesInFlight != 2 || cfg.Renderer.FenceTimeout != 250*time.Millisecond {
		t.Errorf("renderer = %+v", cfg.Renderer)
	}
	if cfg.PresentModeValue() != hal.PresentFifo {
		t.Errorf("PresentModeValue() = %v, want fifo", cfg.PresentModeValue())
	}
	if cfg.Descriptors.Ratios["uniform_buffer"] != 8 || cfg.Descriptors.Ratios["sampler"] != 0.5 {
		t.Errorf("ratios = %v, want uniform_buffer overridden and the rest kept", cfg.Descriptors.Ratios)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "renderer: [1, 2"},
		{"zero frames", "renderer:\n  frames_in_flight: 0\n"},
		{"unknown present mode", "renderer:\n  present_mode: vsync\n"},
		{"unknown device", "renderer:\n  preferred_device: tpu\n"},
		{"bad api version", "renderer:\n  min_api_version: one\n"},
		{"unknown descriptor type", "descriptors:\n  ratios:\n    texture: 1\n"},
		{"zero pool", "descriptors:\n  pool_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadConfig() error = nil")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file error = nil")
	}
	cfg, err := LoadConfig("")
	if err != nil || cfg.Renderer.FramesInFlight != DEFAULT_FRAMES_IN_FLIGHT {
		t.Errorf("LoadConfig(\"\") = (%+v, %v), want defaults", cfg.Renderer, err)
	}
}

func TestValidateRejectsAllZeroRatios(t *testing.T) {
	cfg := DefaultConfig()
	for name := range cfg.Descriptors.Ratios {
		cfg.Descriptors.Ratios[name] = 0
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil with every ratio at zero")
	}
	cfg.Descriptors.Ratios["storage_buffer"] = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v with one positive ratio", err)
	}
}

func TestParseAPIVersion(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"1.3", hal.MakeVersion(1, 3, 0), true},
		{"1.2.189", hal.MakeVersion(1, 2, 189), true},
		{"1", 0, false},
		{"1.x", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAPIVersion(tt.in)
			if (err == nil) != tt.ok || got != tt.want {
				t.Errorf("parseAPIVersion(%q) = (%d, %v)", tt.in, got, err)
			}
		})
	}
}
