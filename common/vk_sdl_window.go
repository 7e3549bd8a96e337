package common

import (
	"fmt"
	"io"
	"log/slog"

	vk "github.com/goki/vulkan"
	"github.com/veandco/go-sdl2/sdl"

	"GPU_render_graph/hal"
)

const APPLICATION_NAME = "GPU render graph"
const APP_MAJOR, APP_MINOR, APP_PATCH = 1, 0, 0
const ENGINE_NAME = "No Engine"
const ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH = 1, 0, 0

const SDL_MAJOR, SDL_MINOR, SDL_PATCH = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

var VALIDATION_LAYERS = []string{
	"VK_LAYER_KHRONOS_validation",
}

// InstanceOptions configures the Vulkan instance a Window creates.
type InstanceOptions struct {
	APIVersion uint32
	Validation bool
	Logger     *slog.Logger
}

// Window encapsulates all window handling components and vulkan access objects to talk, to actual draw on screen. It
// uses SDL for window management and user input, for a Vulkan application. Thus simplifying the process of getting a
// vk.surface to draw on and interact with.
type Window struct {
	sdlVersion string
	log        *slog.Logger
	validation bool

	Win       *sdl.Window
	Resized   bool
	Minimized bool
	Close     bool

	// OnEvent, when set, sees every event after the window has handled it
	OnEvent func(event sdl.Event)

	Inst vk.Instance
	Surf vk.Surface
}

// NewWindow creates the SDL window, loads Vulkan through SDL and creates the instance and the window's surface.
// Missing instance extensions or validation layers are fatal. On tear down, Destroy releases the surface, the
// instance and the window in that order.
func NewWindow(title string, width int32, height int32, opts InstanceOptions) *Window {
	window := &Window{
		sdlVersion: fmt.Sprintf("v%d.%d.%d", SDL_MAJOR, SDL_MINOR, SDL_PATCH),
		log:        loggerOrDiscard(opts.Logger),
		validation: opts.Validation,
	}
	window.initSDLWindow(title, width, height)
	window.initVulkan()
	window.createVulkanInstance(opts.APIVersion)
	window.createSdlVkSurface()
	window.log.Info("created SDL/Vulkan window",
		"sdl", window.sdlVersion,
		"api", hal.VersionString(opts.APIVersion),
		"validation", opts.Validation)
	return window
}

// Destroy tears down the surface, the instance and the SDL window. The device created on this window has to be
// destroyed first.
func (w *Window) Destroy() {
	vk.DestroySurface(w.Inst, w.Surf, nil)
	vk.DestroyInstance(w.Inst, nil)
	if err := w.Win.Destroy(); err != nil {
		w.log.Error("failed to destroy SDL window", "err", err)
	}
	sdl.Quit()
}

// DrawableSize is the size of the window in pixels, which can differ from its size in screen coordinates.
func (w *Window) DrawableSize() hal.Extent2D {
	width, height := w.Win.VulkanGetDrawableSize()
	return hal.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// PollEvents drains the SDL event queue and updates Resized, Minimized and Close. While the window is minimized
// it blocks until the next event arrives, so a minimized application does not spin.
func (w *Window) PollEvents() {
	if w.Minimized {
		w.handle(sdl.WaitEvent())
	}
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.Close = true
	case *sdl.KeyboardEvent:
		if e.Keysym.Sym == sdl.K_ESCAPE && e.State == sdl.PRESSED {
			w.Close = true
		}
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.Resized = true
		case sdl.WINDOWEVENT_MINIMIZED:
			w.Minimized = true
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
			w.Minimized = false
			w.Resized = true
		}
	}
	if w.OnEvent != nil {
		w.OnEvent(event)
	}
}

func (w *Window) initSDLWindow(title string, width int32, height int32) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panicf("failed to initialize SDL: %v", err)
	}
	win, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		width,
		height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		panicf("failed to create SDL window for use with Vulkan: %v", err)
	}
	w.log.Debug("created SDL window", "title", title, "width", width, "height", height)
	w.Win = win
}

func (w *Window) initVulkan() {
	// Find and load Vulkan addresses to be able to call driver level functions via provided mechanism
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		panicf("failed to initialize Vulkan API: %v", err)
	}
}

func (w *Window) createVulkanInstance(apiVersion uint32) {
	requiredExtensions := w.Win.VulkanGetInstanceExtensions()
	w.checkInstanceExtensionSupport(requiredExtensions)
	if w.validation {
		w.checkValidationLayerSupport(VALIDATION_LAYERS)
	}

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   TerminatedStr(APPLICATION_NAME),
		ApplicationVersion: vk.MakeVersion(APP_MAJOR, APP_MINOR, APP_PATCH),
		PEngineName:        TerminatedStr(ENGINE_NAME),
		EngineVersion:      vk.MakeVersion(ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH),
		ApiVersion:         apiVersion,
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        applicationInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: TerminatedStrs(requiredExtensions),
	}
	if w.validation {
		createInfo.EnabledLayerCount = uint32(len(VALIDATION_LAYERS))
		createInfo.PpEnabledLayerNames = TerminatedStrs(VALIDATION_LAYERS)
	}
	ins, err := VkCreateInstance(createInfo, nil)
	if err != nil {
		panicf("failed to create instance: %v", err)
	}
	w.Inst = ins
}

func (w *Window) checkInstanceExtensionSupport(required []string) {
	supported, err := ReadInstanceExtensionPropertyNames()
	if err != nil {
		panicf("%v", err)
	}
	w.log.Debug("instance extensions", "required", required, "available", len(supported))
	if missing := Missing(required, supported); len(missing) > 0 {
		panicf("instance extensions not supported: %v", missing)
	}
}

func (w *Window) checkValidationLayerSupport(required []string) {
	supported, err := ReadInstanceLayerPropertyNames()
	if err != nil {
		panicf("%v", err)
	}
	w.log.Debug("instance layers", "required", required, "available", supported)
	if missing := Missing(required, supported); len(missing) > 0 {
		panicf("validation layers not supported: %v", missing)
	}
}

func (w *Window) createSdlVkSurface() {
	surf, err := SdlCreateVkSurface(w.Win, w.Inst)
	if err != nil {
		panicf("failed to create SDL window's Vulkan surface: %v", err)
	}
	w.Surf = surf
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
