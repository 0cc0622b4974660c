// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkcompute/src/gfx"
)

func storageLayout(n int) []gfx.Binding {
	layout := make([]gfx.Binding, n)
	for idx := range layout {
		layout[idx] = gfx.Binding{Index: uint32(idx), Kind: gfx.StorageBuffer, Stage: gfx.ComputeStage, Size: 16}
	}
	return layout
}

func TestPoolCapacity(t *testing.T) {
	c := qt.New(t)
	three := storageLayout(3)

	c.Assert(checkPoolCapacity([]gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 3}}, three), qt.IsNil)
	c.Assert(checkPoolCapacity(gfx.PoolSizes(three), three), qt.IsNil)
	c.Assert(checkPoolCapacity([]gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 1}}, storageLayout(1)), qt.IsNil)

	under := checkPoolCapacity([]gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 2}}, three)
	c.Assert(errors.Is(under, gfx.ErrResourceAllocation), qt.IsTrue)
	c.Assert(under, qt.ErrorMatches, "descriptor pool holds 2 storage buffer descriptors, layout requires 3")

	over := checkPoolCapacity([]gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 4}}, three)
	c.Assert(errors.Is(over, gfx.ErrResourceAllocation), qt.IsTrue)

	empty := checkPoolCapacity([]gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 1}}, nil)
	c.Assert(errors.Is(empty, gfx.ErrResourceAllocation), qt.IsTrue)
}

func TestAllocateRejectsUndersizedPool(t *testing.T) {
	c := qt.New(t)
	pool := &DescriptorPool{sizes: []gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 2}}}
	pipeline := &Pipeline{layout: storageLayout(3)}

	set, err := NewDescriptorBinder(nil).Allocate(pool, pipeline)
	c.Assert(set, qt.IsNil)
	c.Assert(errors.Is(err, gfx.ErrResourceAllocation), qt.IsTrue)
}

func TestDispatchStateMachine(t *testing.T) {
	c := qt.New(t)
	var s dispatchState
	c.Assert(s, qt.Equals, stateEmpty)

	for _, next := range []dispatchState{stateRecording, stateReady, stateSubmitted, stateComplete} {
		c.Assert(s.advance(next), qt.IsNil)
		c.Assert(s, qt.Equals, next)
	}

	// a complete buffer is never reused
	c.Assert(s.advance(stateRecording), qt.Not(qt.IsNil))
	c.Assert(s, qt.Equals, stateComplete)

	var skip dispatchState
	c.Assert(skip.advance(stateReady), qt.Not(qt.IsNil))
	c.Assert(skip, qt.Equals, stateEmpty)
}

func TestRecorderRejectsOutOfOrderCalls(t *testing.T) {
	c := qt.New(t)
	r := &CommandRecorder{}

	c.Assert(r.Dispatch(1, 1, 1), qt.ErrorMatches, "Dispatch requires a recording command buffer, it is empty")
	c.Assert(r.PushConstants([]byte{1, 2, 3, 4}), qt.Not(qt.IsNil))
	c.Assert(r.End(), qt.Not(qt.IsNil))
	c.Assert(r.Dispatches(), qt.Equals, 0)

	err := (&Submitter{}).Submit(r)
	c.Assert(err, qt.ErrorMatches, "Submit requires a ready command buffer, it is empty")

	r.state = stateComplete
	c.Assert(r.Begin(), qt.Not(qt.IsNil))
}

func TestComputeQueueFamily(t *testing.T) {
	c := qt.New(t)
	graphics := vk.QueueFlags(vk.QueueGraphicsBit)
	compute := vk.QueueFlags(vk.QueueComputeBit)
	transfer := vk.QueueFlags(vk.QueueTransferBit)

	for _, tc := range []struct {
		name     string
		families []vk.QueueFamilyProperties
		idx      uint32
		ok       bool
	}{
		{name: "none", ok: false},
		{
			name:     "graphics only",
			families: []vk.QueueFamilyProperties{{QueueFlags: graphics, QueueCount: 4}},
			ok:       false,
		},
		{
			name: "first compute family",
			families: []vk.QueueFamilyProperties{
				{QueueFlags: transfer, QueueCount: 2},
				{QueueFlags: graphics | compute, QueueCount: 16},
				{QueueFlags: compute, QueueCount: 8},
			},
			idx: 1,
			ok:  true,
		},
		{
			name: "empty family skipped",
			families: []vk.QueueFamilyProperties{
				{QueueFlags: compute, QueueCount: 0},
				{QueueFlags: compute | transfer, QueueCount: 1},
			},
			idx: 1,
			ok:  true,
		},
	} {
		c.Run(tc.name, func(c *qt.C) {
			idx, ok := computeQueueFamily(tc.families)
			c.Assert(ok, qt.Equals, tc.ok)
			if ok {
				c.Assert(idx, qt.Equals, tc.idx)
			}
		})
	}
}

func TestMissingNames(t *testing.T) {
	c := qt.New(t)
	available := []string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_MESA_device_select"}

	c.Assert(missingNames([]string{ValidationLayer}, available), qt.HasLen, 0)
	c.Assert(missingNames(nil, nil), qt.HasLen, 0)
	c.Assert(missingNames([]string{DebugReportExtension, ValidationLayer}, available),
		qt.DeepEquals, []string{DebugReportExtension})
}

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(safeString("main"), qt.Equals, "main\x00")
	c.Assert(safeStrings([]string{"a", "b"}), qt.DeepEquals, []string{"a\x00", "b\x00"})
	c.Assert(safeStrings(nil), qt.HasLen, 0)
}

func TestCheckLayout(t *testing.T) {
	c := qt.New(t)
	valid := storageLayout(3)
	valid[0].Output = true
	c.Assert(checkLayout(valid), qt.IsNil)

	for _, tc := range []struct {
		name   string
		mutate func([]gfx.Binding) []gfx.Binding
		kind   error
	}{
		{"no output", func(l []gfx.Binding) []gfx.Binding { l[0].Output = false; return l }, gfx.ErrConfiguration},
		{"two outputs", func(l []gfx.Binding) []gfx.Binding { l[1].Output = true; return l }, gfx.ErrConfiguration},
		{"duplicate index", func(l []gfx.Binding) []gfx.Binding { l[2].Index = 1; return l }, gfx.ErrConfiguration},
		{"empty buffer", func(l []gfx.Binding) []gfx.Binding { l[1].Size = 0; return l }, gfx.ErrResourceAllocation},
		{"oversized contents", func(l []gfx.Binding) []gfx.Binding { l[2].Contents = make([]byte, 17); return l }, gfx.ErrResourceAllocation},
	} {
		c.Run(tc.name, func(c *qt.C) {
			layout := append([]gfx.Binding(nil), valid...)
			err := checkLayout(tc.mutate(layout))
			c.Assert(errors.Is(err, tc.kind), qt.IsTrue, qt.Commentf("%v", err))
		})
	}
}

var _ vk.DebugReportCallbackFunc = debugReport

func TestFenceTimeout(t *testing.T) {
	c := qt.New(t)
	c.Assert(fenceTimeout(100*time.Second), qt.Equals, uint(100000000000))
	c.Assert(fenceTimeout(time.Millisecond), qt.Equals, uint(1000000))
	c.Assert(fenceTimeout(0), qt.Equals, uint(0))
	c.Assert(fenceTimeout(-time.Second), qt.Equals, uint(0))
}

func TestWithDebugNamesCopies(t *testing.T) {
	c := qt.New(t)
	layers := make([]string, 1, 4)
	layers[0] = "VK_LAYER_MESA_device_select"
	extensions := make([]string, 0, 4)

	cfg := withDebugNames(InstanceConfiguration{DebugMode: true, Layers: layers, Extensions: extensions})
	c.Assert(cfg.Layers, qt.DeepEquals, []string{"VK_LAYER_MESA_device_select", ValidationLayer})
	c.Assert(cfg.Extensions, qt.DeepEquals, []string{DebugReportExtension, PhysicalDeviceProperties2})

	// the caller's spare capacity is untouched
	c.Assert(layers[:2][1], qt.Equals, "")
	c.Assert(extensions[:1][0], qt.Equals, "")

	cfg.Layers[0] = "changed"
	c.Assert(layers[0], qt.Equals, "VK_LAYER_MESA_device_select")

	plain := withDebugNames(InstanceConfiguration{Layers: layers})
	c.Assert(plain.Layers, qt.DeepEquals, []string{"VK_LAYER_MESA_device_select"})
}

func TestLayoutBindings(t *testing.T) {
	c := qt.New(t)
	bindings, err := layoutBindings(storageLayout(2))
	c.Assert(err, qt.IsNil)
	c.Assert(bindings, qt.HasLen, 2)
	c.Assert(bindings[1].Binding, qt.Equals, uint32(1))
	c.Assert(bindings[1].DescriptorType, qt.Equals, vk.DescriptorTypeStorageBuffer)
	c.Assert(bindings[1].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageComputeBit))

	unknownKind := storageLayout(2)
	unknownKind[1].Kind = gfx.DescriptorKind(7)
	_, err = layoutBindings(unknownKind)
	c.Assert(errors.Is(err, gfx.ErrPipelineCreation), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "binding 1: unsupported descriptor kind 7")

	unknownStage := storageLayout(1)
	unknownStage[0].Stage = gfx.Stage(3)
	_, err = layoutBindings(unknownStage)
	c.Assert(errors.Is(err, gfx.ErrPipelineCreation), qt.IsTrue)

	unknownKind[0].Output = true
	c.Assert(errors.Is(checkLayout(unknownKind), gfx.ErrPipelineCreation), qt.IsTrue)
}
