package main

import (
	"flag"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"

	"GPU_render_graph/common"
	"GPU_render_graph/hal"
	"GPU_render_graph/passes"
	"GPU_render_graph/renderer"
)

const SHADER_DIR = "shaders"
const STATS_INTERVAL = 5 * time.Second

var configPath = flag.String("config", "config.yaml", "path of the YAML configuration file")

func init() {
	// SDL and the Vulkan surface have to stay on the main thread
	runtime.LockOSThread()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)
	log.Printf("Using GoLang: [%s]", runtime.Version())
}

// app is the demo scene: a spinning cube over a floor, drawn by the forward pass chain.
type app struct {
	ctx   *renderer.Context
	graph *renderer.RenderGraph
	scene *passes.Scene
	fwd   *passes.Forward
	cube  *renderer.Mesh
	floor *renderer.Mesh
	spin  *passes.Object
	start time.Time
}

func newApp(ctx *renderer.Context, size hal.Extent2D) (*app, error) {
	a := &app{ctx: ctx, graph: renderer.NewRenderGraph(ctx), start: time.Now()}

	cam := passes.NewCamera(45, 0.1, 100)
	a.scene = passes.NewScene(cam)
	a.resetCamera()

	var err error
	v, id := passes.CubeGeometry()
	if a.cube, err = passes.NewMesh(ctx, "cube", v, id); err != nil {
		return nil, err
	}
	v, id = passes.PlaneGeometry()
	if a.floor, err = passes.NewMesh(ctx, "floor", v, id); err != nil {
		a.cube.Destroy()
		return nil, err
	}
	a.spin = a.scene.Add(a.cube, mgl32.Ident4())
	a.scene.Add(a.floor, mgl32.Translate3D(0, -1, 0).Mul4(mgl32.Scale3D(3, 1, 3)))

	if a.fwd, err = passes.NewForward(a.graph, a.scene, SHADER_DIR, size); err != nil {
		a.cube.Destroy()
		a.floor.Destroy()
		return nil, err
	}
	if err := a.graph.Build(); err != nil {
		a.destroy()
		return nil, err
	}
	return a, nil
}

func (a *app) resetCamera() {
	cam := a.scene.Camera
	cam.ProjectionType = passes.CAM_PERSPECTIVE_PROJECTION
	cam.Pos = mgl32.Vec3{0, 1.5, 4}
	cam.LookDir = mgl32.Vec3{0, 0, -1}
	cam.SetTarget(mgl32.Vec3{})
}

func (a *app) onEvent(event sdl.Event) {
	ev, ok := event.(*sdl.KeyboardEvent)
	if !ok || ev.Type != sdl.KEYUP {
		return
	}
	cam := a.scene.Camera
	switch ev.Keysym.Sym {
	case sdl.K_1:
		if cam.ProjectionType == passes.CAM_PERSPECTIVE_PROJECTION {
			cam.ProjectionType = passes.CAM_ORTHOGRAPHIC_PROJECTION
		} else {
			cam.ProjectionType = passes.CAM_PERSPECTIVE_PROJECTION
		}
		log.Printf("Switching projection to -> %d", cam.ProjectionType)
	case sdl.K_2:
		if cam.LookTarget != nil {
			cam.LookDir = cam.LookTarget.Sub(cam.Pos).Normalize()
			cam.ClearTarget()
		} else {
			cam.SetTarget(mgl32.Vec3{})
		}
	case sdl.K_3:
		a.resetCamera()
	case sdl.K_w:
		cam.Move(mgl32.Vec3{0, 0, -0.25})
	case sdl.K_a:
		cam.Move(mgl32.Vec3{-0.25, 0, 0})
	case sdl.K_s:
		cam.Move(mgl32.Vec3{0, 0, 0.25})
	case sdl.K_d:
		cam.Move(mgl32.Vec3{0.25, 0, 0})
	case sdl.K_q:
		cam.Turn(10, mgl32.Vec3{0, 1, 0})
	case sdl.K_e:
		cam.Turn(-10, mgl32.Vec3{0, 1, 0})
	case sdl.K_PLUS, sdl.K_KP_PLUS:
		a.fwd.Composite.Exposure *= 1.25
	case sdl.K_MINUS, sdl.K_KP_MINUS:
		a.fwd.Composite.Exposure /= 1.25
	}
}

func (a *app) onDraw(elapsed float64) {
	axis := mgl32.Vec3{1, 1, 0}.Normalize()
	a.spin.Model = mgl32.HomogRotate3D(float32(elapsed)*mgl32.DegToRad(45), axis)
}

// resize follows a window size change: swapchain first, then the graph attachments.
func (a *app) resize(size hal.Extent2D) error {
	if size.Width == 0 || size.Height == 0 {
		return nil
	}
	if err := a.ctx.RecreateSwapchain(size); err != nil {
		return err
	}
	return a.graph.Resize(size)
}

func (a *app) loop(w *common.Window) {
	lastStats := time.Now()
	for {
		w.PollEvents()
		if w.Close {
			return
		}
		if w.Minimized {
			continue
		}
		if w.Resized {
			w.Resized = false
			if err := a.resize(w.DrawableSize()); err != nil {
				log.Panicf("Failed to resize to %v: %v", w.DrawableSize(), err)
			}
		}

		a.onDraw(time.Since(a.start).Seconds())
		if !a.ctx.BeginFrame() {
			w.Resized = true
			continue
		}
		a.graph.Execute()
		if !a.ctx.EndFrame(a.graph.OutputImage(), a.graph.OutputSize()) {
			w.Resized = true
		}

		if time.Since(lastStats) >= STATS_INTERVAL {
			renderer.Logger().Info("frame stats", "stats", a.ctx.Stats().String())
			lastStats = time.Now()
		}
	}
}

// destroy waits for the GPU before releasing anything a frame in flight may still use.
func (a *app) destroy() {
	if err := a.ctx.Device().WaitIdle(); err != nil {
		renderer.Logger().Error("wait idle before teardown failed", "err", err)
	}
	a.graph.Shutdown()
	if a.fwd != nil {
		a.fwd.Destroy()
	}
	a.cube.Destroy()
	a.floor.Destroy()
}

func main() {
	flag.Parse()
	cfg, err := renderer.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := renderer.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	renderer.SetLogger(logger)

	window := common.NewWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, common.InstanceOptions{
		APIVersion: cfg.APIVersion(),
		Validation: cfg.Renderer.Validation,
		Logger:     logger,
	})
	defer window.Destroy()

	dev, err := common.NewDevice(window, common.Options{
		MinAPIVersion: cfg.APIVersion(),
		Preferred:     cfg.PreferredDeviceType(),
		PresentMode:   cfg.PresentModeValue(),
		Validation:    cfg.Renderer.Validation,
		Logger:        logger,
	})
	if err != nil {
		log.Panicf("Failed to create device: %v", err)
	}
	defer dev.Destroy()

	ctx, err := renderer.NewContext(dev, cfg)
	if err != nil {
		log.Panicf("Failed to create render context: %v", err)
	}
	defer ctx.Shutdown()

	a, err := newApp(ctx, window.DrawableSize())
	if err != nil {
		log.Panicf("Failed to set up the scene: %v", err)
	}
	defer a.destroy()

	window.OnEvent = a.onEvent
	a.loop(window)
}
