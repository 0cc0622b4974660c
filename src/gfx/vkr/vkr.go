// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan backed compute resources.
package vkr

import (
	"unsafe"

	"github.com/devblok/vkcompute/src/gfx"
	vk "github.com/devblok/vulkan"
)

// NewBuffer creates, configures, allocates and binds a new storage buffer.
// Objects created before a failing step are released before returning.
func NewBuffer(dev vk.Device, size uint64, ma *MemoryAllocator) (*Buffer, error) {
	if size == 0 {
		return nil, gfx.Markf(gfx.ErrResourceAllocation, "buffer size must be positive")
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateBuffer()", gfx.ErrResourceAllocation)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, HostAccessible)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return nil, err
	}

	if err := vk.Error(vk.BindBufferMemory(dev, buffer, memory.Get(), vk.DeviceSize(memory.Offset()))); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return nil, gfx.Mark(err, "vk.BindBufferMemory()", gfx.ErrResourceAllocation)
	}

	return &Buffer{
		device: dev,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
}

// Buffer implements a host visible vulkan storage buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	size   uint64

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size returns the requested size of the buffer in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Write maps the buffer, copies data to its start and unmaps it.
func (b *Buffer) Write(data []byte) error {
	if uint64(len(data)) > b.size {
		return gfx.Markf(gfx.ErrResourceAllocation, "write of %d bytes exceeds buffer size %d", len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	ptr, err := b.memory.Map()
	if err != nil {
		return err
	}
	defer b.memory.Unmap()

	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	return nil
}

// Read maps the buffer, copies its full contents out and unmaps it.
func (b *Buffer) Read() ([]byte, error) {
	ptr, err := b.memory.Map()
	if err != nil {
		return nil, err
	}
	defer b.memory.Unmap()

	out := make([]byte, b.size)
	copy(out, unsafe.Slice((*byte)(ptr), b.size))
	return out, nil
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}
