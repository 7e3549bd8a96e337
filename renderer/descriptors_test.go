package renderer

import (
	"errors"
	"testing"

	"GPU_render_graph/hal"
	"GPU_render_graph/hal/haltest"
)

func TestLayoutCachePermutedBindings(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	cache := NewLayoutCache(dev)

	a := []hal.DescriptorBinding{
		{Binding: 0, Type: hal.DescriptorUniformBuffer, Count: 1, Stages: hal.StageVertex},
		{Binding: 1, Type: hal.DescriptorCombinedImageSampler, Count: 4, Stages: hal.StageFragment},
		{Binding: 2, Type: hal.DescriptorStorageBuffer, Count: 1, Stages: hal.StageCompute},
	}
	b := []hal.DescriptorBinding{a[2], a[0], a[1]}
	bCopy := append([]hal.DescriptorBinding(nil), b...)

	la, err := cache.Create(a)
	if err != nil {
		t.Fatal(err)
	}
	lb, err := cache.Create(b)
	if err != nil {
		t.Fatal(err)
	}
	if la != lb {
		t.Errorf("permuted bindings gave layouts %d and %d", la, lb)
	}
	if dev.LayoutsMade != 1 || cache.Len() != 1 {
		t.Errorf("layouts created = %d, cached = %d, want 1 and 1", dev.LayoutsMade, cache.Len())
	}
	for i := range b {
		if b[i] != bCopy[i] {
			t.Fatalf("Create() reordered the caller's bindings: %+v", b)
		}
	}
	got := dev.LayoutBindings(la)
	for i := 1; i < len(got); i++ {
		if got[i].Binding <= got[i-1].Binding {
			t.Errorf("layout created from unsorted bindings %+v", got)
		}
	}

	c := []hal.DescriptorBinding{a[0], {Binding: 1, Type: hal.DescriptorCombinedImageSampler, Count: 2, Stages: hal.StageFragment}}
	lc, err := cache.Create(c)
	if err != nil {
		t.Fatal(err)
	}
	if lc == la {
		t.Error("different bindings share a layout")
	}
}

func TestLayoutHash(t *testing.T) {
	x := hal.DescriptorBinding{Binding: 0, Type: hal.DescriptorUniformBuffer, Count: 1, Stages: hal.StageVertex}
	y := hal.DescriptorBinding{Binding: 3, Type: hal.DescriptorSampledImage, Count: 8, Stages: hal.StageFragment}

	tests := []struct {
		name string
		a, b []hal.DescriptorBinding
		same bool
	}{
		{"equal", []hal.DescriptorBinding{x, y}, []hal.DescriptorBinding{x, y}, true},
		{"permuted after canonicalization", canonicalBindings([]hal.DescriptorBinding{y, x}), []hal.DescriptorBinding{x, y}, true},
		{"count seeds the hash", []hal.DescriptorBinding{x}, []hal.DescriptorBinding{x, x}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := layoutHash(tt.a) == layoutHash(tt.b); got != tt.same {
				t.Errorf("hash equality = %v, want %v", got, tt.same)
			}
		})
	}
}

func uniformLayout(t *testing.T, cache *LayoutCache) hal.DescriptorSetLayout {
	t.Helper()
	l, err := cache.Create([]hal.DescriptorBinding{{Binding: 0, Type: hal.DescriptorUniformBuffer, Count: 1, Stages: hal.StageVertex}})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestAllocatorGrowsPools(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	cache := NewLayoutCache(dev)
	alloc := NewAllocator(dev, 1000, nil)
	layout := uniformLayout(t, cache)

	seen := map[hal.DescriptorSet]bool{}
	for i := 0; i < 2000; i++ {
		set, err := alloc.Allocate(layout)
		if err != nil {
			t.Fatalf("Allocate() #%d error = %v", i, err)
		}
		if set == 0 {
			t.Fatalf("Allocate() #%d returned a null set", i)
		}
		if seen[set] {
			t.Fatalf("Allocate() #%d returned set %d twice", i, set)
		}
		seen[set] = true
	}
	if dev.PoolsMade != 2 {
		t.Errorf("pools created = %d, want 2", dev.PoolsMade)
	}
	if alloc.UsedPools() != 2 || alloc.FreePools() != 0 {
		t.Errorf("used/free = %d/%d, want 2/0", alloc.UsedPools(), alloc.FreePools())
	}
}

func TestAllocatorResetReusesPools(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	cache := NewLayoutCache(dev)
	alloc := NewAllocator(dev, 100, nil)
	layout := uniformLayout(t, cache)

	for i := 0; i < 150; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	pools := append([]hal.DescriptorPool(nil), alloc.used...)
	alloc.ResetPools()
	if alloc.UsedPools() != 0 || alloc.FreePools() != 2 {
		t.Fatalf("after reset used/free = %d/%d, want 0/2", alloc.UsedPools(), alloc.FreePools())
	}
	for _, p := range pools {
		if n, ok := dev.PoolResets(p); !ok || n != 1 {
			t.Errorf("pool %d resets = %d (alive %v), want 1", p, n, ok)
		}
	}

	for i := 0; i < 150; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	if dev.PoolsMade != 2 {
		t.Errorf("pools created = %d, want 2: reset pools must be reused first", dev.PoolsMade)
	}
	if alloc.UsedPools() != 2 || alloc.FreePools() != 0 {
		t.Errorf("used/free = %d/%d, want 2/0", alloc.UsedPools(), alloc.FreePools())
	}
}

func TestAllocatorErrors(t *testing.T) {
	tests := []struct {
		name      string
		fail      error
		wantPools int
	}{
		{"other errors are not retried", errors.New("device lost"), 1},
		{"exhaustion retries once with a new pool", hal.ErrOutOfPoolMemory, 2},
		{"fragmentation retries once with a new pool", hal.ErrFragmentedPool, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
			cache := NewLayoutCache(dev)
			alloc := NewAllocator(dev, 10, nil)
			layout := uniformLayout(t, cache)
			dev.FailAllocations = tt.fail

			set, err := alloc.Allocate(layout)
			if err == nil || set != 0 {
				t.Fatalf("Allocate() = (%d, %v), want an error and no set", set, err)
			}
			if dev.PoolsMade != tt.wantPools {
				t.Errorf("pools created = %d, want %d", dev.PoolsMade, tt.wantPools)
			}
		})
	}
}

func TestAllocatorPoolSizes(t *testing.T) {
	alloc := NewAllocator(nil, 1000, nil)
	sizes := alloc.poolSizes()
	want := map[hal.DescriptorType]uint32{
		hal.DescriptorSampler:              500,
		hal.DescriptorCombinedImageSampler: 4000,
		hal.DescriptorUniformBuffer:        2000,
		hal.DescriptorInputAttachment:      500,
	}
	got := map[hal.DescriptorType]uint32{}
	for _, s := range sizes {
		got[s.Type] = s.Count
	}
	if len(sizes) != len(DefaultPoolRatios) {
		t.Errorf("pool sizes = %d entries, want %d", len(sizes), len(DefaultPoolRatios))
	}
	for typ, n := range want {
		if got[typ] != n {
			t.Errorf("pool size of %v = %d, want %d", typ, got[typ], n)
		}
	}
}

func TestAllocatorEmptyRatiosUseDefaults(t *testing.T) {
	for _, ratios := range [][]PoolRatio{nil, {}} {
		if n := len(NewAllocator(nil, 10, ratios).poolSizes()); n != len(DefaultPoolRatios) {
			t.Errorf("ratios %v: pool sizes = %d entries, want %d", ratios, n, len(DefaultPoolRatios))
		}
	}
}

func TestDescriptorBuilder(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	cache := NewLayoutCache(dev)
	alloc := NewAllocator(dev, 10, nil)

	buf, _ := dev.CreateBuffer(hal.BufferDesc{Size: 256})
	images := []hal.ImageInfo{{View: 7, Layout: hal.LayoutShaderReadOnly}, {View: 8, Layout: hal.LayoutShaderReadOnly}}
	set, layout, err := BeginDescriptors(cache, alloc).
		BindImages(1, images, hal.DescriptorCombinedImageSampler, hal.StageFragment).
		BindBuffer(0, hal.BufferInfo{Buffer: buf, Range: 256}, hal.DescriptorUniformBuffer, hal.StageVertex).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if set == 0 || layout == 0 {
		t.Fatalf("Build() = (%d, %d), want handles", set, layout)
	}

	bindings := dev.LayoutBindings(layout)
	if len(bindings) != 2 || bindings[0].Binding != 0 || bindings[1].Count != 2 {
		t.Errorf("layout bindings = %+v", bindings)
	}
	writes := dev.Writes()
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(writes))
	}
	for _, w := range writes {
		if w.Set != set {
			t.Errorf("write to binding %d targets set %d, want %d", w.Binding, w.Set, set)
		}
	}

	again, err := BeginDescriptors(cache, alloc).
		BindBuffer(0, hal.BufferInfo{Buffer: buf, Range: 256}, hal.DescriptorUniformBuffer, hal.StageVertex).
		BindImages(1, images, hal.DescriptorCombinedImageSampler, hal.StageFragment).
		BuildLayout()
	if err != nil || again != layout {
		t.Errorf("BuildLayout() = (%d, %v), want cached %d", again, err, layout)
	}
}

func TestBuildTextureArraySet(t *testing.T) {
	dev := haltest.NewDevice(hal.Extent2D{Width: 8, Height: 8})
	cache := NewLayoutCache(dev)
	alloc := NewAllocator(dev, 10, nil)

	views := []hal.ImageView{11, 12, 13}
	_, layout, err := BuildTextureArraySet(cache, alloc, views, 5, 0, hal.StageFragment)
	if err != nil {
		t.Fatal(err)
	}
	b := dev.LayoutBindings(layout)
	if len(b) != 1 || b[0].Count != 3 || b[0].Type != hal.DescriptorCombinedImageSampler {
		t.Errorf("layout bindings = %+v, want one array of 3 samplers", b)
	}
	w := dev.Writes()[0]
	for i, img := range w.Images {
		if img.View != views[i] || img.Sampler != 5 || img.Layout != hal.LayoutShaderReadOnly {
			t.Errorf("image %d = %+v", i, img)
		}
	}
}
