package renderer

import (
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

// Context bundles the device with the per frame and long lived objects every pass draws through: the frame
// ring, the descriptor layout cache and allocator, and a command buffer for blocking uploads.
type Context struct {
	dev    hal.Device
	cfg    Config
	frames *FrameRing
	cache  *LayoutCache
	alloc  *Allocator
	stats  *Stats

	immPool     hal.CommandPool
	immediate   *CommandRecorder
	uploadFence hal.Fence

	depthFormat hal.Format
}

// NewContext builds a renderer context on an initialized device.
func NewContext(dev hal.Device, cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid renderer config")
	}
	c := &Context{dev: dev, cfg: cfg, stats: NewStats()}

	depth, err := dev.SupportedDepthFormat()
	if err != nil {
		return nil, errors.Wrap(err, "no depth format")
	}
	c.depthFormat = depth

	c.frames, err = NewFrameRing(dev, cfg.Renderer.FramesInFlight, cfg.Renderer.FenceTimeout, c.stats)
	if err != nil {
		return nil, err
	}
	c.cache = NewLayoutCache(dev)
	c.alloc = NewAllocator(dev, cfg.Descriptors.PoolSize, cfg.PoolRatios())

	if c.immPool, err = dev.CreateCommandPool(); err != nil {
		c.Shutdown()
		return nil, errors.Wrap(err, "failed to create upload command pool")
	}
	cmd, err := dev.AllocateCommandBuffer(c.immPool)
	if err != nil {
		c.Shutdown()
		return nil, errors.Wrap(err, "failed to allocate upload command buffer")
	}
	c.immediate = NewCommandRecorder(cmd)
	if c.uploadFence, err = dev.CreateFence(false); err != nil {
		c.Shutdown()
		return nil, errors.Wrap(err, "failed to create upload fence")
	}

	Logger().Info("renderer context ready",
		"adapter", dev.AdapterName(),
		"frames", cfg.Renderer.FramesInFlight,
		"depth", depth,
		"swapchain", dev.SwapchainExtent(),
		"present", dev.PresentMode())
	return c, nil
}

func (c *Context) Device() hal.Device            { return c.dev }
func (c *Context) Config() Config                { return c.cfg }
func (c *Context) Frames() *FrameRing            { return c.frames }
func (c *Context) LayoutCache() *LayoutCache     { return c.cache }
func (c *Context) Allocator() *Allocator         { return c.alloc }
func (c *Context) Stats() *Stats                 { return c.stats }
func (c *Context) DepthFormat() hal.Format       { return c.depthFormat }
func (c *Context) SwapchainExtent() hal.Extent2D { return c.dev.SwapchainExtent() }

// Recorder is the command recorder of the frame currently being recorded.
func (c *Context) Recorder() *CommandRecorder {
	return c.frames.Recorder()
}

func (c *Context) BeginFrame() bool {
	return c.frames.BeginFrame()
}

func (c *Context) EndFrame(drawImage hal.Image, drawSize hal.Extent2D) bool {
	return c.frames.EndFrame(drawImage, drawSize)
}

// SubmitImmediate records fn into the upload command buffer, submits it and blocks until the GPU is done.
// It is meant for uploads at load time, not for per frame work.
func (c *Context) SubmitImmediate(fn func(rec *CommandRecorder)) error {
	if err := c.dev.ResetCommandPool(c.immPool); err != nil {
		return errors.Wrap(err, "failed to reset upload command pool")
	}
	if err := c.immediate.Begin(); err != nil {
		return errors.Wrap(err, "failed to begin upload commands")
	}
	fn(c.immediate)
	if err := c.immediate.End(); err != nil {
		return errors.Wrap(err, "failed to end upload commands")
	}
	if err := c.dev.Submit(hal.SubmitInfo{CommandBuffer: c.immediate.Handle(), Fence: c.uploadFence}); err != nil {
		return errors.Wrap(err, "failed to submit upload commands")
	}
	if err := c.dev.WaitFence(c.uploadFence, c.cfg.Renderer.FenceTimeout); err != nil {
		fatalf("upload fence wait failed after %v: %v", c.cfg.Renderer.FenceTimeout, err)
	}
	return c.dev.ResetFence(c.uploadFence)
}

// RecreateSwapchain rebuilds the swapchain for a new window size using the configured present mode.
func (c *Context) RecreateSwapchain(size hal.Extent2D) error {
	if err := c.dev.RecreateSwapchain(size, c.cfg.PresentModeValue()); err != nil {
		return errors.Wrapf(err, "failed to recreate swapchain at %v", size)
	}
	Logger().Info("swapchain recreated", "requested", size, "extent", c.dev.SwapchainExtent())
	return nil
}

// Shutdown waits for the GPU and releases everything the context created. The device itself stays alive.
func (c *Context) Shutdown() {
	if err := c.dev.WaitIdle(); err != nil {
		Logger().Error("wait idle before shutdown failed", "err", err)
	}
	if c.uploadFence != 0 {
		c.dev.DestroyFence(c.uploadFence)
		c.uploadFence = 0
	}
	if c.immPool != 0 {
		c.dev.DestroyCommandPool(c.immPool)
		c.immPool = 0
	}
	if c.alloc != nil {
		c.alloc.Shutdown()
	}
	if c.cache != nil {
		c.cache.Shutdown()
	}
	if c.frames != nil {
		c.frames.Shutdown()
	}
	Logger().Info("renderer context shut down", "stats", c.stats.String())
}
