// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/vkcompute/src/gfx"
	vk "github.com/devblok/vulkan"
)

// HostAccessible is the memory property set used for every buffer:
// the host writes scene data and reads pixels back without explicit
// flushes or invalidations.
const HostAccessible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit

// Memory defines a usable memory region.
type Memory struct {
	mapped      bool
	len, offset uint64
	device      vk.Device
	memory      vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint64 {
	return m.len
}

// Offset returns the start location of assigned memory.
func (m *Memory) Offset() uint64 {
	return m.offset
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the entire available memory region and
// returns a pointer to the mapped area.
func (m *Memory) Map() (unsafe.Pointer, error) {
	var memMapped unsafe.Pointer
	res := vk.MapMemory(m.device, m.memory, vk.DeviceSize(m.offset), vk.DeviceSize(m.len), 0, &memMapped)
	if err := vk.Error(res); err != nil {
		return nil, gfx.Mark(err, "vk.MapMemory()", gfx.ErrResourceAllocation)
	}
	m.mapped = true
	return memMapped, nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = false
	}
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	return NewMemoryAllocatorFromTypes(device, MemoryTypes(memProperties))
}

// NewMemoryAllocatorFromTypes creates an allocator over an already
// flattened memory type table, as returned by MemoryTypes.
func NewMemoryAllocatorFromTypes(device vk.Device, types []vk.MemoryPropertyFlags) *MemoryAllocator {
	return &MemoryAllocator{
		device:      device,
		memoryTypes: types,
	}
}

// MemoryTypes flattens the memory type table of a device into
// the property flags of every type, in index order.
func MemoryTypes(props vk.PhysicalDeviceMemoryProperties) []vk.MemoryPropertyFlags {
	types := make([]vk.MemoryPropertyFlags, 0, props.MemoryTypeCount)
	for idx := uint32(0); idx < props.MemoryTypeCount && int(idx) < len(props.MemoryTypes); idx++ {
		props.MemoryTypes[idx].Deref()
		types = append(types, props.MemoryTypes[idx].PropertyFlags)
	}
	return types
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device      vk.Device
	memoryTypes []vk.MemoryPropertyFlags
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, ok := FindMemoryType(ma.memoryTypes, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if !ok {
		return Memory{}, gfx.Markf(gfx.ErrResourceAllocation,
			"suitable memory type not found (type bits %#x, properties %#x)", req.MemoryTypeBits, uint32(prop))
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, gfx.Mark(err, "vk.AllocateMemory()", gfx.ErrResourceAllocation)
	}

	return Memory{
		offset: 0,
		len:    uint64(req.Size),
		device: ma.device,
		memory: memory,
	}, nil
}

// FindMemoryType returns the first memory type index that is allowed by
// filter and carries every flag in prop. The boolean is false when
// no type matches, the index is meaningless in that case.
func FindMemoryType(types []vk.MemoryPropertyFlags, filter uint32, prop vk.MemoryPropertyFlags) (uint32, bool) {
	for idx := 0; idx < len(types) && idx < 32; idx++ {
		if filter&(1<<uint(idx)) != 0 && types[idx]&prop == prop {
			return uint32(idx), true
		}
	}
	return 0, false
}
