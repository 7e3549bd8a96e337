package common

import (
	vk "github.com/goki/vulkan"

	"GPU_render_graph/hal"
)

// descriptorPool remembers the sets allocated from it so a reset can retire their handles.
type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

func (dc *Device) CreateDescriptorSetLayout(bindings []hal.DescriptorBinding) (hal.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      toVkStages(b.Stages),
		}
	}
	layoutInfo := &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	l, err := VkCreateDescriptorSetLayout(dc.D, layoutInfo, nil)
	if err != nil {
		return 0, err
	}
	return hal.DescriptorSetLayout(dc.setLayouts.add(l)), nil
}

func (dc *Device) DestroyDescriptorSetLayout(h hal.DescriptorSetLayout) {
	if l, ok := dc.setLayouts.remove(uint64(h)); ok {
		vk.DestroyDescriptorSetLayout(dc.D, l, nil)
	}
}

func (dc *Device) CreateDescriptorPool(maxSets uint32, sizes []hal.DescriptorPoolSize) (hal.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{Type: toVkDescriptorType(s.Type), DescriptorCount: s.Count}
	}
	poolInfo := &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	p, err := VkCreateDescriptorPool(dc.D, poolInfo, nil)
	if err != nil {
		return 0, err
	}
	return hal.DescriptorPool(dc.pools.add(&descriptorPool{handle: p})), nil
}

// ResetDescriptorPool returns every set of the pool to it. Their handles become unknown to the device.
func (dc *Device) ResetDescriptorPool(h hal.DescriptorPool) error {
	p := dc.pools.mustGet(uint64(h), "descriptor pool")
	if err := resultError(vk.ResetDescriptorPool(dc.D, p.handle, 0), "vkResetDescriptorPool"); err != nil {
		return err
	}
	p.retireSets(dc)
	return nil
}

func (dc *Device) DestroyDescriptorPool(h hal.DescriptorPool) {
	p, ok := dc.pools.remove(uint64(h))
	if !ok {
		return
	}
	p.retireSets(dc)
	vk.DestroyDescriptorPool(dc.D, p.handle, nil)
}

func (p *descriptorPool) retireSets(dc *Device) {
	for _, s := range p.sets {
		dc.sets.remove(s)
	}
	p.sets = p.sets[:0]
}

// AllocateDescriptorSet reports an exhausted pool as hal.ErrOutOfPoolMemory or hal.ErrFragmentedPool.
func (dc *Device) AllocateDescriptorSet(ph hal.DescriptorPool, lh hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	p := dc.pools.mustGet(uint64(ph), "descriptor pool")
	layout := dc.setLayouts.mustGet(uint64(lh), "descriptor set layout")
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := resultError(vk.AllocateDescriptorSets(dc.D, &allocInfo, &sets[0]), "vkAllocateDescriptorSets"); err != nil {
		return 0, err
	}
	h := dc.sets.add(sets[0])
	p.sets = append(p.sets, h)
	return hal.DescriptorSet(h), nil
}

func (dc *Device) UpdateDescriptorSets(writes []hal.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrites[i] = vk.WriteDescriptorSet{
			SType:          vk.StructureTypeWriteDescriptorSet,
			DstSet:         dc.sets.mustGet(uint64(w.Set), "descriptor set"),
			DstBinding:     w.Binding,
			DescriptorType: toVkDescriptorType(w.Type),
		}
		if len(w.Buffers) > 0 {
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for j, b := range w.Buffers {
				infos[j] = vk.DescriptorBufferInfo{
					Buffer: dc.buffers.mustGet(uint64(b.Buffer), "buffer").handle,
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			vkWrites[i].DescriptorCount = uint32(len(infos))
			vkWrites[i].PBufferInfo = infos
		} else {
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for j, img := range w.Images {
				info := vk.DescriptorImageInfo{ImageLayout: toVkLayout(img.Layout)}
				if img.Sampler != 0 {
					info.Sampler = dc.samplers.mustGet(uint64(img.Sampler), "sampler")
				}
				if img.View != 0 {
					info.ImageView = dc.views.mustGet(uint64(img.View), "image view").handle
				}
				infos[j] = info
			}
			vkWrites[i].DescriptorCount = uint32(len(infos))
			vkWrites[i].PImageInfo = infos
		}
	}
	vk.UpdateDescriptorSets(dc.D, uint32(len(vkWrites)), vkWrites, 0, nil)
}
