// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	vk "github.com/devblok/vulkan"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/vkr"
)

// NewDescriptorPool creates a pool for a single descriptor set
// holding exactly the given descriptors.
func NewDescriptorPool(device vk.Device, sizes []gfx.PoolSize) (*DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, 0, len(sizes))
	for _, s := range sizes {
		kind, err := descriptorType(s.Kind)
		if err != nil {
			return nil, err
		}
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            kind,
			DescriptorCount: s.Count,
		})
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(device, &dpci, nil, &descriptorPool)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateDescriptorPool()", gfx.ErrResourceAllocation)
	}

	return &DescriptorPool{
		device: device,
		pool:   descriptorPool,
		sizes:  sizes,
	}, nil
}

// DescriptorPool hands out the descriptor set of a run.
type DescriptorPool struct {
	device vk.Device
	pool   vk.DescriptorPool
	sizes  []gfx.PoolSize
}

// Get returns the vulkan descriptor pool handle.
func (p *DescriptorPool) Get() vk.DescriptorPool {
	return p.pool
}

// Release destroys the pool and every set allocated from it.
func (p *DescriptorPool) Release() {
	vk.DestroyDescriptorPool(p.device, p.pool, nil)
}

// checkPoolCapacity verifies that sizes hold exactly the descriptors
// required by layout, no more and no less of every kind.
func checkPoolCapacity(sizes []gfx.PoolSize, layout []gfx.Binding) error {
	have := make(map[gfx.DescriptorKind]uint32)
	for _, s := range sizes {
		have[s.Kind] += s.Count
	}
	for _, need := range gfx.PoolSizes(layout) {
		if have[need.Kind] != need.Count {
			return gfx.Markf(gfx.ErrResourceAllocation,
				"descriptor pool holds %d %s descriptors, layout requires %d",
				have[need.Kind], need.Kind, need.Count)
		}
		delete(have, need.Kind)
	}
	for kind, count := range have {
		if count > 0 {
			return gfx.Markf(gfx.ErrResourceAllocation,
				"descriptor pool holds %d %s descriptors, layout requires none", count, kind)
		}
	}
	return nil
}

// DescriptorSet is a set allocated for a pipeline's layout.
type DescriptorSet struct {
	device vk.Device
	set    vk.DescriptorSet
	layout []gfx.Binding
}

// Get returns the vulkan descriptor set handle.
func (s *DescriptorSet) Get() vk.DescriptorSet {
	return s.set
}

// DescriptorBinder allocates descriptor sets and writes buffer bindings.
type DescriptorBinder struct {
	device vk.Device
}

// NewDescriptorBinder creates a binder for device.
func NewDescriptorBinder(device vk.Device) *DescriptorBinder {
	return &DescriptorBinder{device: device}
}

// Allocate allocates a set matching the pipeline's layout from pool. The pool
// must be sized exactly for the layout.
func (b *DescriptorBinder) Allocate(pool *DescriptorPool, pipeline *Pipeline) (*DescriptorSet, error) {
	if err := checkPoolCapacity(pool.sizes, pipeline.Layout()); err != nil {
		return nil, err
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.Get(),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pipeline.SetLayout()},
	}

	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(b.device, &dsai, &set)); err != nil {
		return nil, gfx.Mark(err, "vk.AllocateDescriptorSets()", gfx.ErrResourceAllocation)
	}

	return &DescriptorSet{
		device: b.device,
		set:    set,
		layout: pipeline.Layout(),
	}, nil
}

// Bind writes buffer into the given binding of set, covering the whole buffer.
func (b *DescriptorBinder) Bind(set *DescriptorSet, bindingIndex uint32, buffer *vkr.Buffer) error {
	var (
		binding gfx.Binding
		found   bool
	)
	for _, l := range set.layout {
		if l.Index == bindingIndex {
			binding, found = l, true
			break
		}
	}
	if !found {
		return gfx.Markf(gfx.ErrResourceAllocation, "binding %d is not part of the layout", bindingIndex)
	}
	kind, err := descriptorType(binding.Kind)
	if err != nil {
		return err
	}

	wds := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set.set,
		DstBinding:      bindingIndex,
		DstArrayElement: 0,
		DescriptorType:  kind,
		DescriptorCount: 1,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Get(),
			Offset: 0,
			Range:  vk.DeviceSize(buffer.Size()),
		}},
	}}
	vk.UpdateDescriptorSets(b.device, uint32(len(wds)), wds, 0, nil)
	return nil
}

// checkLayout rejects layouts that cannot be backed by buffers: unsupported
// kinds or stages, repeated binding indices, empty buffers and anything but
// one output binding.
func checkLayout(layout []gfx.Binding) error {
	if _, err := layoutBindings(layout); err != nil {
		return err
	}
	seen := make(map[uint32]struct{}, len(layout))
	outputs := 0
	for _, b := range layout {
		if _, ok := seen[b.Index]; ok {
			return gfx.Markf(gfx.ErrConfiguration, "binding %d declared twice", b.Index)
		}
		seen[b.Index] = struct{}{}
		if b.Size == 0 {
			return gfx.Markf(gfx.ErrResourceAllocation, "binding %d has an empty buffer", b.Index)
		}
		if uint64(len(b.Contents)) > b.Size {
			return gfx.Markf(gfx.ErrResourceAllocation,
				"binding %d contents are %d bytes, buffer holds %d", b.Index, len(b.Contents), b.Size)
		}
		if b.Output {
			outputs++
		}
	}
	if outputs != 1 {
		return gfx.Markf(gfx.ErrConfiguration, "layout declares %d output bindings, need exactly one", outputs)
	}
	return nil
}
