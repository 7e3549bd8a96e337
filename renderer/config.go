package renderer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"GPU_render_graph/hal"
)

const DEFAULT_FRAMES_IN_FLIGHT = 3
const DEFAULT_FENCE_TIMEOUT = time.Second
const DEFAULT_POOL_SIZE = 1000

type Config struct {
	Window      WindowConfig     `yaml:"window"`
	Renderer    RendererConfig   `yaml:"renderer"`
	Descriptors DescriptorConfig `yaml:"descriptors"`
	Log         LogConfig        `yaml:"log"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int32  `yaml:"width"`
	Height int32  `yaml:"height"`
}

type RendererConfig struct {
	FramesInFlight  int           `yaml:"frames_in_flight"`
	FenceTimeout    time.Duration `yaml:"fence_timeout"`
	MinAPIVersion   string        `yaml:"min_api_version"`
	PreferredDevice string        `yaml:"preferred_device"`
	PresentMode     string        `yaml:"present_mode"`
	Validation      bool          `yaml:"validation"`
}

type DescriptorConfig struct {
	PoolSize uint32             `yaml:"pool_size"`
	Ratios   map[string]float32 `yaml:"ratios"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig is a triple buffered, mailbox presenting setup on a discrete GPU with Vulkan 1.3.
func DefaultConfig() Config {
	ratios := make(map[string]float32, len(DefaultPoolRatios))
	for _, r := range DefaultPoolRatios {
		ratios[r.Type.String()] = r.Ratio
	}
	return Config{
		Window: WindowConfig{Title: "Render graph", Width: 1280, Height: 720},
		Renderer: RendererConfig{
			FramesInFlight:  DEFAULT_FRAMES_IN_FLIGHT,
			FenceTimeout:    DEFAULT_FENCE_TIMEOUT,
			MinAPIVersion:   "1.3",
			PreferredDevice: hal.DeviceTypeDiscreteGPU.String(),
			PresentMode:     hal.PresentMailbox.String(),
			Validation:      true,
		},
		Descriptors: DescriptorConfig{PoolSize: DEFAULT_POOL_SIZE, Ratios: ratios},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Renderer.FramesInFlight < 1 {
		return fmt.Errorf("frames_in_flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.FenceTimeout <= 0 {
		return fmt.Errorf("fence_timeout must be positive, got %v", c.Renderer.FenceTimeout)
	}
	if _, err := parseAPIVersion(c.Renderer.MinAPIVersion); err != nil {
		return err
	}
	if _, ok := hal.ParseDeviceType(c.Renderer.PreferredDevice); !ok {
		return fmt.Errorf("unknown preferred_device %q", c.Renderer.PreferredDevice)
	}
	if _, ok := hal.ParsePresentMode(c.Renderer.PresentMode); !ok {
		return fmt.Errorf("unknown present_mode %q", c.Renderer.PresentMode)
	}
	if c.Descriptors.PoolSize == 0 {
		return fmt.Errorf("descriptors.pool_size must be positive")
	}
	for name, r := range c.Descriptors.Ratios {
		if _, ok := hal.ParseDescriptorType(name); !ok {
			return fmt.Errorf("unknown descriptor type %q in ratios", name)
		}
		if r < 0 {
			return fmt.Errorf("negative ratio %v for %s", r, name)
		}
	}
	if len(c.PoolRatios()) == 0 {
		return fmt.Errorf("descriptors.ratios must give at least one descriptor type a positive ratio")
	}
	return nil
}

func (c Config) APIVersion() uint32 {
	v, _ := parseAPIVersion(c.Renderer.MinAPIVersion)
	return v
}

func (c Config) PreferredDeviceType() hal.DeviceType {
	t, _ := hal.ParseDeviceType(c.Renderer.PreferredDevice)
	return t
}

func (c Config) PresentModeValue() hal.PresentMode {
	m, ok := hal.ParsePresentMode(c.Renderer.PresentMode)
	if !ok {
		return hal.PresentMailbox
	}
	return m
}

// PoolRatios returns the configured ratios in descriptor type order.
func (c Config) PoolRatios() []PoolRatio {
	out := make([]PoolRatio, 0, len(c.Descriptors.Ratios))
	for t := hal.DescriptorSampler; t <= hal.DescriptorInputAttachment; t++ {
		if r, ok := c.Descriptors.Ratios[t.String()]; ok && r > 0 {
			out = append(out, PoolRatio{Type: t, Ratio: r})
		}
	}
	return out
}

func parseAPIVersion(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("api version %q is not major.minor[.patch]", s)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("api version %q: %v", s, err)
		}
		nums[i] = uint32(n)
	}
	return hal.MakeVersion(nums[0], nums[1], nums[2]), nil
}
