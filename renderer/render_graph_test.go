package renderer

import (
	"strings"
	"testing"

	"GPU_render_graph/hal"
	"GPU_render_graph/hal/haltest"
)

type testPass struct {
	PassBase
	order    *[]string
	onRender func(g *RenderGraph)
}

func newTestPass(name string, order *[]string) *testPass {
	return &testPass{PassBase: NewPassBase(name, hal.Extent2D{Width: 800, Height: 600}), order: order}
}

func (p *testPass) OnRender(g *RenderGraph) {
	if p.order != nil {
		*p.order = append(*p.order, p.Name)
	}
	if p.onRender != nil {
		p.onRender(g)
	}
}

var size800 = hal.Extent2D{Width: 800, Height: 600}

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic mentioning %q", contains)
		}
		if !strings.Contains(r.(string), contains) {
			t.Fatalf("panic %q does not mention %q", r, contains)
		}
	}()
	fn()
}

func TestSinglePassGraph(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)

	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")

	expectPanic(t, "before Build", func() { g.Attachment("A") })

	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	a := g.Attachment("A")
	if len(a.Images) != ctx.Frames().Count() || dev.LiveImages() != ctx.Frames().Count() {
		t.Fatalf("images = %d, live = %d, want one per frame slot", len(a.Images), dev.LiveImages())
	}
	desc, _ := dev.ImageDesc(a.Images[0])
	wantUsage := hal.UsageColorAttachment | hal.UsageSampled | hal.UsageTransferSrc | hal.UsageTransferDst
	if desc.Format != hal.FormatR16G16B16A16Sfloat || desc.Usage != wantUsage || desc.Extent != size800.To3D() {
		t.Errorf("image desc = %+v", desc)
	}
	for slot := uint32(0); slot < uint32(len(a.Images)); slot++ {
		if a.Layout(slot) != hal.LayoutUndefined {
			t.Errorf("slot %d starts in %v, want undefined", slot, a.Layout(slot))
		}
	}
}

func TestTwoPassGraphLayouts(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)

	var order []string
	p1 := newTestPass("P1", &order)
	p1.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	p2 := newTestPass("P2", &order)
	p2.AddInputAttachment("A", AttachmentColor, size800, StateClear)
	p2.AddOutputAttachment("B", AttachmentColor, size800, StateClear)
	g.AddPass(p1)
	g.AddPass(p2)
	g.SetOutputAttachment("B")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	if dev.LiveImages() != 2*ctx.Frames().Count() {
		t.Errorf("live images = %d, want %d: a shared name is allocated once", dev.LiveImages(), 2*ctx.Frames().Count())
	}

	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	g.Execute()
	if strings.Join(order, ",") != "P1,P2" {
		t.Errorf("pass order = %v, want declaration order", order)
	}

	cb := ctx.Recorder().Handle().(*haltest.CommandBuffer)
	checkBarriers(t, "A", cb.Barriers(g.AttachmentImage("A")), []hal.ImageLayout{
		hal.LayoutUndefined, hal.LayoutColorAttachment, hal.LayoutTransferSrc, hal.LayoutShaderReadOnly,
	})
	checkBarriers(t, "B", cb.Barriers(g.AttachmentImage("B")), []hal.ImageLayout{
		hal.LayoutUndefined, hal.LayoutColorAttachment, hal.LayoutTransferSrc,
	})

	slot := ctx.Frames().FrameNumber()
	if l := g.Attachment("A").Layout(slot); l != hal.LayoutShaderReadOnly {
		t.Errorf("A tracked layout = %v, want shader read only", l)
	}
	if l := g.Attachment("B").Layout(slot); l != hal.LayoutTransferSrc {
		t.Errorf("B tracked layout = %v, want transfer src", l)
	}
	if n := len(cb.Filter(haltest.OpBeginRendering)); n != 2 {
		t.Errorf("rendering scopes = %d, want 2", n)
	}
	if ctx.Stats().PassTime("P1") <= 0 && ctx.Stats().PassTime("P2") <= 0 {
		t.Error("no pass timings recorded")
	}
}

// checkBarriers verifies that barriers walk through layouts in order, each starting where the previous ended.
func checkBarriers(t *testing.T, name string, barriers []hal.ImageBarrier, layouts []hal.ImageLayout) {
	t.Helper()
	if len(barriers) != len(layouts)-1 {
		t.Fatalf("%s: %d barriers, want %d: %+v", name, len(barriers), len(layouts)-1, barriers)
	}
	for i, b := range barriers {
		if b.OldLayout != layouts[i] || b.NewLayout != layouts[i+1] {
			t.Errorf("%s barrier %d = %v -> %v, want %v -> %v", name, i, b.OldLayout, b.NewLayout, layouts[i], layouts[i+1])
		}
	}
}

func TestBuildUnknownOutput(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("Missing")

	err := g.Build()
	if err == nil || !strings.Contains(err.Error(), "Missing") {
		t.Fatalf("Build() error = %v, want one naming the output", err)
	}
	if dev.LiveImages() != 0 {
		t.Errorf("live images = %d after failed Build, want 0", dev.LiveImages())
	}
	expectPanic(t, "before Build", func() { g.AttachmentImage("A") })
}

func TestBuildRejectsDepthOutput(t *testing.T) {
	ctx, _ := newTestContext(t)
	g := NewRenderGraph(ctx)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("D", AttachmentDepth, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("D")
	if err := g.Build(); err == nil {
		t.Fatal("Build() error = nil with a depth output")
	}
}

func TestUnknownAttachmentPanics(t *testing.T) {
	ctx, _ := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	expectPanic(t, "unknown attachment", func() { g.Attachment("Nope") })
}

func TestDepthAndLoadAttachments(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)

	pre := newTestPass("Depth", nil)
	pre.AddOutputAttachment("D", AttachmentDepth, size800, StateClear)
	pre.DepthClear = 0.5
	scene := newTestPass("Scene", nil)
	scene.AddOutputAttachment("C", AttachmentColor, size800, StateClear)
	scene.AddOutputAttachment("D", AttachmentDepth, size800, StateLoad)
	scene.ColorClear[0] = 0.25
	g.AddPass(pre)
	g.AddPass(scene)
	g.SetOutputAttachment("C")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	d := g.attachments["D"]
	desc, _ := dev.ImageDesc(d.Images[0])
	if desc.Format != dev.DepthFormat || desc.Usage != hal.UsageDepthAttachment|hal.UsageSampled {
		t.Errorf("depth image desc = %+v", desc)
	}

	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	g.Execute()
	cb := ctx.Recorder().Handle().(*haltest.CommandBuffer)

	depthBarriers := cb.Barriers(g.AttachmentImage("D"))
	if len(depthBarriers) != 1 || depthBarriers[0].Aspect != hal.AspectDepth || depthBarriers[0].NewLayout != hal.LayoutDepthAttachment {
		t.Errorf("depth barriers = %+v, want a single transition into depth attachment", depthBarriers)
	}

	scopes := cb.Filter(haltest.OpBeginRendering)
	if len(scopes) != 2 {
		t.Fatalf("rendering scopes = %d, want 2", len(scopes))
	}
	first, second := scopes[0].Rendering, scopes[1].Rendering
	if len(first.Color) != 0 || first.Depth == nil || first.Depth.Load != hal.LoadOpClear || first.Depth.Clear.Depth != 0.5 {
		t.Errorf("depth pre pass rendering = %+v", first)
	}
	if second.Depth == nil || second.Depth.Load != hal.LoadOpLoad {
		t.Errorf("scene depth = %+v, want load", second.Depth)
	}
	if len(second.Color) != 1 || second.Color[0].Clear.Color[0] != 0.25 || second.Color[0].Layout != hal.LayoutColorAttachment {
		t.Errorf("scene color = %+v", second.Color)
	}
	if second.Area != size800 {
		t.Errorf("render area = %v, want %v", second.Area, size800)
	}
	vp := cb.Filter(haltest.OpViewport)
	if len(vp) != 2 || vp[1].Viewport.Width != 800 || vp[1].Viewport.MaxDepth != 1 {
		t.Errorf("viewports = %+v", vp)
	}
}

func TestDuplicateDeclarationIgnored(t *testing.T) {
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateLoad)
	p.AddInputAttachment("A", AttachmentColor, size800, StateClear)

	got := p.Attachments()
	if len(got) != 2 {
		t.Fatalf("declarations = %+v, want output and input once each", got)
	}
	if got[0].State != StateClear {
		t.Errorf("second output declaration overwrote the first: %+v", got[0])
	}
}

func TestTransitionAttachment(t *testing.T) {
	ctx, _ := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	g.Execute()
	g.TransitionAttachment("A", hal.LayoutShaderReadOnly)
	g.TransitionAttachment("A", hal.LayoutShaderReadOnly)

	cb := ctx.Recorder().Handle().(*haltest.CommandBuffer)
	checkBarriers(t, "A", cb.Barriers(g.AttachmentImage("A")), []hal.ImageLayout{
		hal.LayoutUndefined, hal.LayoutColorAttachment, hal.LayoutTransferSrc, hal.LayoutShaderReadOnly,
	})
	if l := g.Attachment("A").Layout(ctx.Frames().FrameNumber()); l != hal.LayoutShaderReadOnly {
		t.Errorf("tracked layout = %v, want shader read only", l)
	}
}

func TestLayoutsTrackedPerSlot(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < ctx.Frames().Count()+1; i++ {
		if !ctx.BeginFrame() {
			t.Fatal("BeginFrame() = false")
		}
		slot := ctx.Frames().FrameNumber()
		before := g.Attachment("A").Layout(slot)
		g.Execute()
		cb := ctx.Recorder().Handle().(*haltest.CommandBuffer)
		first := cb.Barriers(g.AttachmentImage("A"))[0]
		if first.OldLayout != before {
			t.Errorf("frame %d: first barrier leaves %v but slot was tracked in %v", i, first.OldLayout, before)
		}
		if !ctx.EndFrame(g.OutputImage(), g.OutputSize()) {
			t.Fatal("EndFrame() = false")
		}
	}
	if len(dev.Presents) != ctx.Frames().Count()+1 {
		t.Errorf("presents = %d", len(dev.Presents))
	}
}

func TestResize(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)
	p := newTestPass("P", nil)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	p.AddOutputAttachment("D", AttachmentDepth, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	old := g.Attachment("A").Images[0]
	idles := dev.WaitIdles

	next := hal.Extent2D{Width: 1024, Height: 768}
	if err := g.Resize(next); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if dev.WaitIdles != idles+1 {
		t.Errorf("wait idles = %d, want %d", dev.WaitIdles, idles+1)
	}
	if _, alive := dev.ImageDesc(old); alive {
		t.Error("old attachment image still alive after Resize")
	}
	if dev.LiveImages() != 2*ctx.Frames().Count() {
		t.Errorf("live images = %d, want %d", dev.LiveImages(), 2*ctx.Frames().Count())
	}
	desc, _ := dev.ImageDesc(g.Attachment("D").Images[0])
	if desc.Extent != next.To3D() {
		t.Errorf("depth extent = %v, want %v", desc.Extent, next.To3D())
	}
	if p.Size != next || p.Attachments()[0].Size != next {
		t.Errorf("pass size = %v, declaration size = %v, want %v", p.Size, p.Attachments()[0].Size, next)
	}
	if err := g.Resize(hal.Extent2D{}); err == nil {
		t.Error("Resize() to zero error = nil")
	}
}

func TestAddPassAfterBuild(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)

	var order []string
	p := newTestPass("P", &order)
	p.AddOutputAttachment("A", AttachmentColor, size800, StateClear)
	g.AddPass(p)
	g.SetOutputAttachment("A")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}

	q := newTestPass("Q", &order)
	q.AddInputAttachment("A", AttachmentColor, size800, StateClear)
	q.AddOutputAttachment("B", AttachmentColor, size800, StateClear)
	g.AddPass(q)

	if n := len(g.Attachment("B").Images); n != ctx.Frames().Count() {
		t.Fatalf("B images = %d, want one per frame slot", n)
	}
	if dev.LiveImages() != 2*ctx.Frames().Count() {
		t.Errorf("live images = %d, want %d", dev.LiveImages(), 2*ctx.Frames().Count())
	}
	if !ctx.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	g.Execute()
	if strings.Join(order, ",") != "P,Q" {
		t.Errorf("pass order = %v", order)
	}
	cb := ctx.Recorder().Handle().(*haltest.CommandBuffer)
	checkBarriers(t, "B", cb.Barriers(g.AttachmentImage("B")), []hal.ImageLayout{
		hal.LayoutUndefined, hal.LayoutColorAttachment, hal.LayoutTransferSrc,
	})
}

func TestResizeKeepsFixedSizeAttachments(t *testing.T) {
	ctx, dev := newTestContext(t)
	g := NewRenderGraph(ctx)
	t.Cleanup(g.Shutdown)

	shadowSize := hal.Extent2D{Width: 2048, Height: 2048}
	shadow := newTestPass("Shadow", nil)
	shadow.Size = shadowSize
	shadow.AddOutputAttachment("ShadowMap", AttachmentDepth, shadowSize, StateClear)
	scene := newTestPass("Main", nil)
	scene.AddInputAttachment("ShadowMap", AttachmentDepth, shadowSize, StateClear)
	scene.AddOutputAttachment("Color", AttachmentColor, size800, StateClear)
	g.AddPass(shadow)
	g.AddPass(scene)
	g.SetOutputAttachment("Color")
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}

	next := hal.Extent2D{Width: 1024, Height: 768}
	if err := g.Resize(next); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	tests := []struct {
		attachment string
		want       hal.Extent2D
	}{
		{"ShadowMap", shadowSize},
		{"Color", next},
	}
	for _, tt := range tests {
		t.Run(tt.attachment, func(t *testing.T) {
			a := g.Attachment(tt.attachment)
			if a.Desc.Size != tt.want {
				t.Errorf("size = %v, want %v", a.Desc.Size, tt.want)
			}
			desc, _ := dev.ImageDesc(a.Images[0])
			if desc.Extent != tt.want.To3D() {
				t.Errorf("image extent = %v, want %v", desc.Extent, tt.want.To3D())
			}
		})
	}
	if shadow.Size != shadowSize || shadow.Attachments()[0].Size != shadowSize {
		t.Errorf("shadow pass size = %v, declaration = %v, want %v", shadow.Size, shadow.Attachments()[0].Size, shadowSize)
	}
	if scene.Size != next || scene.Attachments()[0].Size != shadowSize || scene.Attachments()[1].Size != next {
		t.Errorf("main pass size = %v, declarations = %+v", scene.Size, scene.Attachments())
	}
}
