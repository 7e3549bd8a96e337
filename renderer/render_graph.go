package renderer

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

// Format of every color attachment the graph allocates.
const COLOR_ATTACHMENT_FORMAT = hal.FormatR16G16B16A16Sfloat

type AttachmentKind int

const (
	AttachmentColor AttachmentKind = iota
	AttachmentDepth
)

func (k AttachmentKind) String() string {
	if k == AttachmentDepth {
		return "depth"
	}
	return "color"
}

type AttachmentStage int

const (
	StageInput AttachmentStage = iota
	StageOutput
)

// AttachmentState selects whether a pass clears an output or keeps what earlier passes wrote.
type AttachmentState int

const (
	StateClear AttachmentState = iota
	StateLoad
)

// AttachmentDescription is how a pass declares its use of a named attachment.
type AttachmentDescription struct {
	Name  string
	Kind  AttachmentKind
	Stage AttachmentStage
	State AttachmentState
	Size  hal.Extent2D
}

// Attachment is a named image the graph owns, with one image per frame slot. Its layout is tracked per slot
// and only changes through the graph's transitions.
type Attachment struct {
	Desc    AttachmentDescription
	Format  hal.Format
	Images  []hal.Image
	Views   []hal.ImageView
	layouts []hal.ImageLayout
}

func (a *Attachment) Aspect() hal.ImageAspect {
	if a.Desc.Kind == AttachmentDepth {
		return hal.AspectDepth
	}
	return hal.AspectColor
}

// Layout is the layout the slot's image is in once the commands recorded so far have executed.
func (a *Attachment) Layout(slot uint32) hal.ImageLayout {
	return a.layouts[slot]
}

// PassBase carries the state every pass shares. Embed it and the embedding type gets Base for free.
type PassBase struct {
	Name       string
	Size       hal.Extent2D
	ColorClear mgl32.Vec4
	DepthClear float32

	attachments []AttachmentDescription
}

func NewPassBase(name string, size hal.Extent2D) PassBase {
	return PassBase{Name: name, Size: size, ColorClear: mgl32.Vec4{0, 0, 0, 1}, DepthClear: 1}
}

func (p *PassBase) Base() *PassBase { return p }

// Attachments returns the declarations in the order they were made.
func (p *PassBase) Attachments() []AttachmentDescription {
	return p.attachments
}

func (p *PassBase) AddInputAttachment(name string, kind AttachmentKind, size hal.Extent2D, state AttachmentState) {
	p.addAttachment(AttachmentDescription{Name: name, Kind: kind, Stage: StageInput, State: state, Size: size})
}

func (p *PassBase) AddOutputAttachment(name string, kind AttachmentKind, size hal.Extent2D, state AttachmentState) {
	p.addAttachment(AttachmentDescription{Name: name, Kind: kind, Stage: StageOutput, State: state, Size: size})
}

// addAttachment ignores a second declaration of the same name in the same stage.
func (p *PassBase) addAttachment(d AttachmentDescription) {
	for _, a := range p.attachments {
		if a.Name == d.Name && a.Stage == d.Stage {
			Logger().Warn("attachment already declared, ignoring", "pass", p.Name, "attachment", d.Name)
			return
		}
	}
	p.attachments = append(p.attachments, d)
}

// Pass is one step of the frame. OnRender is called between BeginRendering and EndRendering with the pass's
// outputs bound and its inputs readable by shaders.
type Pass interface {
	Base() *PassBase
	OnRender(g *RenderGraph)
}

// RenderGraph runs its passes in the order they were added and moves every attachment into the layout each
// use requires. The output attachment ends up in TransferSrc, ready to be copied to the swapchain.
type RenderGraph struct {
	ctx         *Context
	passes      []Pass
	attachments map[string]*Attachment
	order       []string
	output      string
	built       bool
}

func NewRenderGraph(ctx *Context) *RenderGraph {
	return &RenderGraph{ctx: ctx, attachments: map[string]*Attachment{}}
}

func (g *RenderGraph) Context() *Context { return g.ctx }
func (g *RenderGraph) Passes() []Pass    { return g.passes }
func (g *RenderGraph) Output() string    { return g.output }

// Recorder is the recorder of the frame being executed.
func (g *RenderGraph) Recorder() *CommandRecorder {
	return g.ctx.Recorder()
}

// AddPass appends p. Attachments it names for the first time are registered with the first declaration's kind
// and size, and allocated right away when the graph is already built. Later declarations of a known name reuse
// the existing attachment.
func (g *RenderGraph) AddPass(p Pass) {
	g.passes = append(g.passes, p)
	for _, d := range p.Base().Attachments() {
		if a, ok := g.attachments[d.Name]; ok {
			if a.Desc.Kind != d.Kind {
				Logger().Warn("attachment redeclared with a different kind", "attachment", d.Name,
					"pass", p.Base().Name, "kind", a.Desc.Kind, "declared", d.Kind)
			}
			continue
		}
		a := &Attachment{Desc: d}
		g.attachments[d.Name] = a
		g.order = append(g.order, d.Name)
		if g.built {
			if err := g.createAttachment(a); err != nil {
				Logger().Error("failed to create attachment of a pass added after Build", "attachment", d.Name,
					"pass", p.Base().Name, "err", err)
				g.destroyAttachments()
			}
		}
	}
	Logger().Debug("pass added", "pass", p.Base().Name, "attachments", len(p.Base().Attachments()))
}

func (g *RenderGraph) SetOutputAttachment(name string) {
	g.output = name
}

// Build validates the graph and allocates the images of every attachment. Building again releases the images
// of the previous build first.
func (g *RenderGraph) Build() error {
	a, ok := g.attachments[g.output]
	if !ok {
		return errors.Errorf("output attachment %q is not declared by any pass", g.output)
	}
	if a.Desc.Kind != AttachmentColor {
		return errors.Errorf("output attachment %q must be a color attachment", g.output)
	}
	if g.built {
		g.destroyAttachments()
	}
	for _, name := range g.order {
		if err := g.createAttachment(g.attachments[name]); err != nil {
			g.destroyAttachments()
			return errors.Wrapf(err, "failed to create attachment %s", name)
		}
	}
	g.built = true
	Logger().Info("render graph built", "passes", len(g.passes), "attachments", len(g.order), "output", g.output)
	return nil
}

func (g *RenderGraph) createAttachment(a *Attachment) error {
	dev := g.ctx.Device()
	slots := g.ctx.Frames().Count()
	desc := hal.ImageDesc{Extent: a.Desc.Size.To3D(), MipLevels: 1}
	switch a.Desc.Kind {
	case AttachmentColor:
		desc.Format = COLOR_ATTACHMENT_FORMAT
		desc.Usage = hal.UsageColorAttachment | hal.UsageSampled | hal.UsageTransferSrc | hal.UsageTransferDst
	case AttachmentDepth:
		desc.Format = g.ctx.DepthFormat()
		desc.Usage = hal.UsageDepthAttachment | hal.UsageSampled
	}
	a.Format = desc.Format
	a.Images = make([]hal.Image, 0, slots)
	a.Views = make([]hal.ImageView, 0, slots)
	a.layouts = make([]hal.ImageLayout, 0, slots)
	for i := 0; i < slots; i++ {
		img, err := dev.CreateImage(desc)
		if err != nil {
			return err
		}
		a.Images = append(a.Images, img)
		view, err := dev.CreateImageView(img, desc.Format, a.Aspect(), 1)
		if err != nil {
			return err
		}
		a.Views = append(a.Views, view)
		a.layouts = append(a.layouts, hal.LayoutUndefined)
	}
	return nil
}

func (g *RenderGraph) destroyAttachments() {
	dev := g.ctx.Device()
	for _, name := range g.order {
		a := g.attachments[name]
		for _, v := range a.Views {
			dev.DestroyImageView(v)
		}
		for _, img := range a.Images {
			dev.DestroyImage(img)
		}
		a.Images, a.Views, a.layouts = nil, nil, nil
	}
	g.built = false
}

// Attachment returns a built attachment. Asking for an unknown name, or for any name before Build, is a
// programming error and panics.
func (g *RenderGraph) Attachment(name string) *Attachment {
	a, ok := g.attachments[name]
	if !ok {
		log.Panicf("render graph: unknown attachment %q", name)
	}
	if !g.built {
		log.Panicf("render graph: attachment %q requested before Build", name)
	}
	return a
}

// AttachmentImage is the image of name for the current frame slot.
func (g *RenderGraph) AttachmentImage(name string) hal.Image {
	return g.Attachment(name).Images[g.slot()]
}

func (g *RenderGraph) AttachmentView(name string) hal.ImageView {
	return g.Attachment(name).Views[g.slot()]
}

// AttachmentViews returns the views of name for every frame slot, for passes that build descriptor sets per slot.
func (g *RenderGraph) AttachmentViews(name string) []hal.ImageView {
	return g.Attachment(name).Views
}

func (g *RenderGraph) slot() uint32 {
	return g.ctx.Frames().FrameNumber()
}

// TransitionAttachment records a barrier moving the current slot's image of name to layout.
func (g *RenderGraph) TransitionAttachment(name string, layout hal.ImageLayout) {
	g.transition(g.Attachment(name), layout)
}

func (g *RenderGraph) transition(a *Attachment, layout hal.ImageLayout) {
	slot := g.slot()
	if a.layouts[slot] == layout {
		return
	}
	g.Recorder().TransitionAspect(a.Images[slot], a.Aspect(), a.layouts[slot], layout)
	a.layouts[slot] = layout
}

func loadOp(s AttachmentState) hal.LoadOp {
	if s == StateLoad {
		return hal.LoadOpLoad
	}
	return hal.LoadOpClear
}

// Execute records every pass into the current frame.
func (g *RenderGraph) Execute() {
	if !g.built {
		log.Panicf("render graph: Execute before Build")
	}
	rec := g.Recorder()
	slot := g.slot()
	for _, p := range g.passes {
		base := p.Base()
		start := hrtime.Now()

		info := hal.RenderingInfo{Area: base.Size}
		for _, d := range base.Attachments() {
			a := g.attachments[d.Name]
			if d.Stage == StageInput {
				g.transition(a, hal.LayoutShaderReadOnly)
				continue
			}
			att := hal.RenderingAttachment{View: a.Views[slot], Format: a.Format, Load: loadOp(d.State)}
			switch d.Kind {
			case AttachmentColor:
				g.transition(a, hal.LayoutColorAttachment)
				att.Layout = hal.LayoutColorAttachment
				att.Clear.Color = base.ColorClear
				info.Color = append(info.Color, att)
			case AttachmentDepth:
				g.transition(a, hal.LayoutDepthAttachment)
				att.Layout = hal.LayoutDepthAttachment
				att.Clear.Depth = base.DepthClear
				info.Depth = &att
			}
		}

		rec.SetViewport(base.Size)
		rec.SetScissor(base.Size)
		rec.BeginRendering(info)
		p.OnRender(g)
		rec.EndRendering()

		for _, d := range base.Attachments() {
			if d.Stage == StageOutput && d.Kind == AttachmentColor {
				g.transition(g.attachments[d.Name], hal.LayoutTransferSrc)
			}
		}
		g.ctx.Stats().RecordPass(base.Name, hrtime.Since(start))
	}
	g.transition(g.attachments[g.output], hal.LayoutTransferSrc)
}

// OutputImage is the current slot's image of the output attachment, in TransferSrc after Execute.
func (g *RenderGraph) OutputImage() hal.Image {
	return g.AttachmentImage(g.output)
}

func (g *RenderGraph) OutputSize() hal.Extent2D {
	return g.Attachment(g.output).Desc.Size
}

// Resize moves the graph to a new output size and rebuilds the attachment images. Passes and attachments sized
// like the output follow it; anything declared with another size, a shadow map say, keeps it. The GPU must not
// be using the images, so it waits for the device to go idle first.
func (g *RenderGraph) Resize(size hal.Extent2D) error {
	if size.Width == 0 || size.Height == 0 {
		return fmt.Errorf("render graph: cannot resize to %v", size)
	}
	if err := g.ctx.Device().WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before resize")
	}
	follows := func(hal.Extent2D) bool { return true }
	if out, ok := g.attachments[g.output]; ok {
		old := out.Desc.Size
		follows = func(s hal.Extent2D) bool { return s == old }
	}
	for _, p := range g.passes {
		base := p.Base()
		if follows(base.Size) {
			base.Size = size
		}
		for i := range base.attachments {
			if follows(base.attachments[i].Size) {
				base.attachments[i].Size = size
			}
		}
	}
	for _, a := range g.attachments {
		if follows(a.Desc.Size) {
			a.Desc.Size = size
		}
	}
	if !g.built {
		return nil
	}
	return g.Build()
}

// Shutdown releases the attachment images. Passes own their own resources.
func (g *RenderGraph) Shutdown() {
	if g.built {
		g.destroyAttachments()
	}
}
