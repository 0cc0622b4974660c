// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the compute pipeline contracts that renderers and
// pipeline variants must implement. It carries no Vulkan state of its own.
package gfx

import "image"

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// DescriptorKind is the kind of resource a binding refers to.
type DescriptorKind int

// Descriptor kinds supported by the compute core.
const (
	StorageBuffer DescriptorKind = iota
)

func (k DescriptorKind) String() string {
	switch k {
	case StorageBuffer:
		return "storage buffer"
	default:
		return "unknown"
	}
}

// Stage identifies the shader stage a binding is visible to.
type Stage int

// Shader stages, only compute is used.
const (
	ComputeStage Stage = iota
)

// Binding is one entry of a descriptor set layout along with the
// buffer that backs it.
type Binding struct {
	Index uint32
	Kind  DescriptorKind
	Stage Stage

	// Size of the backing buffer in bytes.
	Size uint64

	// Contents is uploaded once before recording, nil for buffers
	// that are only written by the kernel.
	Contents []byte

	// Output marks the buffer that is read back as the image.
	Output bool
}

// PoolSize is the number of descriptors of one kind a pool can hand out.
type PoolSize struct {
	Kind  DescriptorKind
	Count uint32
}

// PoolSizes derives the exact pool sizing required by a layout.
func PoolSizes(layout []Binding) []PoolSize {
	counts := make(map[DescriptorKind]uint32)
	var order []DescriptorKind
	for _, b := range layout {
		if _, ok := counts[b.Kind]; !ok {
			order = append(order, b.Kind)
		}
		counts[b.Kind]++
	}
	sizes := make([]PoolSize, 0, len(order))
	for _, k := range order {
		sizes = append(sizes, PoolSize{Kind: k, Count: counts[k]})
	}
	return sizes
}

// Recorder receives the per-pass commands of a variant while
// a command buffer is being recorded.
type Recorder interface {

	// PushConstants updates the push constant block from offset 0.
	PushConstants(data []byte) error

	// Dispatch records one dispatch with the given workgroup counts.
	Dispatch(x, y, z uint32) error
}

// Variant plugs a concrete kernel into the shared orchestration.
type Variant interface {

	// Name is a short identifier used in logs.
	Name() string

	// KernelPath is the default kernel location for this variant.
	KernelPath() string

	// Extent returns the output image dimensions.
	Extent() (width, height uint32)

	// DescriptorLayout returns the ordered binding list. It must match
	// the bindings compiled into the kernel.
	DescriptorLayout() []Binding

	// PushConstantSize is the byte size of the push constant block.
	PushConstantSize() uint32

	// RecordDispatches records every pass into r.
	RecordDispatches(r Recorder) error

	// OutputScaleFactor converts kernel floats into 8 bit channels.
	OutputScaleFactor() float32

	// PostProcess is applied to the extracted image before encoding.
	PostProcess(img *image.RGBA)
}

// WorkgroupCount returns the number of workgroups needed to cover dim
// invocations with groups of the given size.
func WorkgroupCount(dim, group uint32) uint32 {
	if group == 0 {
		return 0
	}
	return (dim + group - 1) / group
}
