package renderer

import (
	"slices"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

type layoutEntry struct {
	bindings []hal.DescriptorBinding
	layout   hal.DescriptorSetLayout
}

// LayoutCache deduplicates descriptor set layouts. Binding lists that only differ in order share one layout.
type LayoutCache struct {
	dev     hal.Device
	buckets map[uint64][]layoutEntry
	count   int
}

func NewLayoutCache(dev hal.Device) *LayoutCache {
	return &LayoutCache{dev: dev, buckets: map[uint64][]layoutEntry{}}
}

// canonicalBindings copies bindings and sorts the copy by binding index unless it already is strictly increasing.
func canonicalBindings(bindings []hal.DescriptorBinding) []hal.DescriptorBinding {
	out := slices.Clone(bindings)
	for i := 1; i < len(out); i++ {
		if out[i].Binding <= out[i-1].Binding {
			slices.SortStableFunc(out, func(a, b hal.DescriptorBinding) int {
				return int(a.Binding) - int(b.Binding)
			})
			break
		}
	}
	return out
}

// layoutHash mixes every binding into the binding count. Collisions are resolved by comparing the bindings.
func layoutHash(bindings []hal.DescriptorBinding) uint64 {
	h := uint64(len(bindings))
	for _, b := range bindings {
		packed := uint64(b.Binding) | uint64(b.Type)<<8 | uint64(b.Count)<<16 | uint64(b.Stages)<<24
		h ^= packed
	}
	return h
}

// Create returns the layout for bindings, creating it on first request. The caller's slice is never modified.
func (c *LayoutCache) Create(bindings []hal.DescriptorBinding) (hal.DescriptorSetLayout, error) {
	key := canonicalBindings(bindings)
	h := layoutHash(key)
	for _, e := range c.buckets[h] {
		if slices.Equal(e.bindings, key) {
			return e.layout, nil
		}
	}
	layout, err := c.dev.CreateDescriptorSetLayout(key)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create descriptor set layout")
	}
	c.buckets[h] = append(c.buckets[h], layoutEntry{bindings: key, layout: layout})
	c.count++
	Logger().Debug("descriptor set layout created", "bindings", len(key), "cached", c.count)
	return layout, nil
}

// Len is the number of distinct layouts created so far.
func (c *LayoutCache) Len() int {
	return c.count
}

func (c *LayoutCache) Device() hal.Device {
	return c.dev
}

func (c *LayoutCache) Shutdown() {
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			c.dev.DestroyDescriptorSetLayout(e.layout)
		}
	}
	c.buckets = map[uint64][]layoutEntry{}
	c.count = 0
}

// PoolRatio is the number of descriptors of one type a pool holds per set it can allocate.
type PoolRatio struct {
	Type  hal.DescriptorType
	Ratio float32
}

var DefaultPoolRatios = []PoolRatio{
	{hal.DescriptorSampler, 0.5},
	{hal.DescriptorCombinedImageSampler, 4},
	{hal.DescriptorSampledImage, 4},
	{hal.DescriptorStorageImage, 1},
	{hal.DescriptorUniformTexelBuffer, 1},
	{hal.DescriptorStorageTexelBuffer, 1},
	{hal.DescriptorUniformBuffer, 2},
	{hal.DescriptorStorageBuffer, 2},
	{hal.DescriptorUniformBufferDynamic, 1},
	{hal.DescriptorStorageBufferDynamic, 1},
	{hal.DescriptorInputAttachment, 0.5},
}

// Allocator hands out descriptor sets from a growing list of pools. Pools that run dry are kept in the used list
// until ResetPools returns all of them to the free list at once.
type Allocator struct {
	dev     hal.Device
	count   uint32
	ratios  []PoolRatio
	current hal.DescriptorPool
	used    []hal.DescriptorPool
	free    []hal.DescriptorPool
}

// NewAllocator sizes every pool for count sets. Empty ratios select DefaultPoolRatios.
func NewAllocator(dev hal.Device, count uint32, ratios []PoolRatio) *Allocator {
	if count == 0 {
		count = DEFAULT_POOL_SIZE
	}
	if len(ratios) == 0 {
		ratios = DefaultPoolRatios
	}
	return &Allocator{dev: dev, count: count, ratios: ratios}
}

func (a *Allocator) poolSizes() []hal.DescriptorPoolSize {
	sizes := make([]hal.DescriptorPoolSize, 0, len(a.ratios))
	for _, r := range a.ratios {
		n := uint32(r.Ratio * float32(a.count))
		if n == 0 {
			continue
		}
		sizes = append(sizes, hal.DescriptorPoolSize{Type: r.Type, Count: n})
	}
	return sizes
}

// grabPool reuses a reset pool when one is available and creates a new one otherwise.
func (a *Allocator) grabPool() (hal.DescriptorPool, error) {
	if n := len(a.free); n > 0 {
		p := a.free[n-1]
		a.free = a.free[:n-1]
		return p, nil
	}
	p, err := a.dev.CreateDescriptorPool(a.count, a.poolSizes())
	if err != nil {
		return 0, errors.Wrap(err, "failed to create descriptor pool")
	}
	Logger().Debug("descriptor pool created", "sets", a.count, "pools", len(a.used)+1)
	return p, nil
}

func (a *Allocator) nextPool() error {
	p, err := a.grabPool()
	if err != nil {
		return err
	}
	a.current = p
	a.used = append(a.used, p)
	return nil
}

func poolExhausted(err error) bool {
	return errors.Is(err, hal.ErrOutOfPoolMemory) || errors.Is(err, hal.ErrFragmentedPool)
}

// Allocate returns a set of the given layout. A pool that is full or fragmented is replaced and the allocation
// retried once. Any other failure is returned and no set is handed out.
func (a *Allocator) Allocate(layout hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	if a.current == 0 {
		if err := a.nextPool(); err != nil {
			return 0, err
		}
	}
	set, err := a.dev.AllocateDescriptorSet(a.current, layout)
	if poolExhausted(err) {
		if err := a.nextPool(); err != nil {
			return 0, err
		}
		set, err = a.dev.AllocateDescriptorSet(a.current, layout)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate descriptor set")
	}
	if set == 0 {
		return 0, errors.New("descriptor set allocation returned a null handle")
	}
	return set, nil
}

// ResetPools returns every set handed out so far. Sets allocated before the call must not be used afterwards.
func (a *Allocator) ResetPools() {
	for _, p := range a.used {
		if err := a.dev.ResetDescriptorPool(p); err != nil {
			Logger().Error("descriptor pool reset failed", "err", err)
		}
		a.free = append(a.free, p)
	}
	a.used = a.used[:0]
	a.current = 0
}

func (a *Allocator) UsedPools() int { return len(a.used) }
func (a *Allocator) FreePools() int { return len(a.free) }

func (a *Allocator) Shutdown() {
	for _, p := range a.used {
		a.dev.DestroyDescriptorPool(p)
	}
	for _, p := range a.free {
		a.dev.DestroyDescriptorPool(p)
	}
	a.used, a.free = nil, nil
	a.current = 0
}

// DescriptorBuilder accumulates bindings and writes for a single descriptor set.
type DescriptorBuilder struct {
	cache    *LayoutCache
	alloc    *Allocator
	bindings []hal.DescriptorBinding
	writes   []hal.DescriptorWrite
}

func BeginDescriptors(cache *LayoutCache, alloc *Allocator) *DescriptorBuilder {
	return &DescriptorBuilder{cache: cache, alloc: alloc}
}

func (b *DescriptorBuilder) BindBuffer(binding uint32, info hal.BufferInfo, t hal.DescriptorType, stages hal.ShaderStage) *DescriptorBuilder {
	b.bindings = append(b.bindings, hal.DescriptorBinding{Binding: binding, Type: t, Count: 1, Stages: stages})
	b.writes = append(b.writes, hal.DescriptorWrite{Binding: binding, Type: t, Buffers: []hal.BufferInfo{info}})
	return b
}

// BindImages binds an array of images. The descriptor count is the length of infos.
func (b *DescriptorBuilder) BindImages(binding uint32, infos []hal.ImageInfo, t hal.DescriptorType, stages hal.ShaderStage) *DescriptorBuilder {
	b.bindings = append(b.bindings, hal.DescriptorBinding{Binding: binding, Type: t, Count: uint32(len(infos)), Stages: stages})
	b.writes = append(b.writes, hal.DescriptorWrite{Binding: binding, Type: t, Images: slices.Clone(infos)})
	return b
}

// BuildLayout only resolves the layout. Nothing is allocated.
func (b *DescriptorBuilder) BuildLayout() (hal.DescriptorSetLayout, error) {
	return b.cache.Create(b.bindings)
}

// Build resolves the layout, allocates a set and writes every bound resource into it.
func (b *DescriptorBuilder) Build() (hal.DescriptorSet, hal.DescriptorSetLayout, error) {
	layout, err := b.BuildLayout()
	if err != nil {
		return 0, 0, err
	}
	set, err := b.alloc.Allocate(layout)
	if err != nil {
		return 0, 0, err
	}
	for i := range b.writes {
		b.writes[i].Set = set
	}
	b.cache.Device().UpdateDescriptorSets(b.writes)
	return set, layout, nil
}

// BuildBufferSet builds a set holding one buffer at binding.
func BuildBufferSet(cache *LayoutCache, alloc *Allocator, buf hal.Buffer, size uint64, binding uint32, t hal.DescriptorType, stages hal.ShaderStage) (hal.DescriptorSet, hal.DescriptorSetLayout, error) {
	return BeginDescriptors(cache, alloc).
		BindBuffer(binding, hal.BufferInfo{Buffer: buf, Range: size}, t, stages).
		Build()
}

// BuildTextureArraySet builds a set holding an array of combined image samplers sharing one sampler.
func BuildTextureArraySet(cache *LayoutCache, alloc *Allocator, views []hal.ImageView, sampler hal.Sampler, binding uint32, stages hal.ShaderStage) (hal.DescriptorSet, hal.DescriptorSetLayout, error) {
	infos := make([]hal.ImageInfo, len(views))
	for i, v := range views {
		infos[i] = hal.ImageInfo{Sampler: sampler, View: v, Layout: hal.LayoutShaderReadOnly}
	}
	return BeginDescriptors(cache, alloc).
		BindImages(binding, infos, hal.DescriptorCombinedImageSampler, stages).
		Build()
}
