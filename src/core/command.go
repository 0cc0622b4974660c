// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"

	"github.com/devblok/vkcompute/src/gfx"
)

// dispatchState tracks a command buffer through a single use.
type dispatchState int

// Command buffer states, in the only order they can be visited.
const (
	stateEmpty dispatchState = iota
	stateRecording
	stateReady
	stateSubmitted
	stateComplete
)

func (s dispatchState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateRecording:
		return "recording"
	case stateReady:
		return "ready"
	case stateSubmitted:
		return "submitted"
	case stateComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// advance moves the state forward by exactly one step.
func (s *dispatchState) advance(to dispatchState) error {
	if to != *s+1 {
		return errors.AssertionFailedf("command buffer cannot go from %s to %s", *s, to)
	}
	*s = to
	return nil
}

// expect fails unless the state is want.
func (s dispatchState) expect(want dispatchState, op string) error {
	if s != want {
		return errors.AssertionFailedf("%s requires a %s command buffer, it is %s", op, want, s)
	}
	return nil
}

// NewCommandRecorder creates a command pool on the compute queue family
// and allocates the single primary command buffer of the run.
func NewCommandRecorder(dc *DeviceContext, pipeline *Pipeline, set *DescriptorSet) (*CommandRecorder, error) {
	device := dc.Device()
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dc.QueueFamily(),
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(device, &cpci, nil, &commandPool)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateCommandPool()", gfx.ErrResourceAllocation)
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(device, &cbai, commandBuffers)); err != nil {
		vk.DestroyCommandPool(device, commandPool, nil)
		return nil, gfx.Mark(err, "vk.AllocateCommandBuffers()", gfx.ErrResourceAllocation)
	}

	return &CommandRecorder{
		device:        device,
		pool:          commandPool,
		commandBuffer: commandBuffers[0],
		pipeline:      pipeline,
		set:           set,
	}, nil
}

// CommandRecorder records the dispatches of a run into one primary
// command buffer. It implements gfx.Recorder while recording.
type CommandRecorder struct {
	device        vk.Device
	pool          vk.CommandPool
	commandBuffer vk.CommandBuffer

	pipeline *Pipeline
	set      *DescriptorSet

	state      dispatchState
	dispatches int
}

// Begin starts one time recording and binds the pipeline and descriptor set.
func (r *CommandRecorder) Begin() error {
	if err := r.state.expect(stateEmpty, "Begin"); err != nil {
		return err
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(r.commandBuffer, &cbbi)); err != nil {
		return gfx.Mark(err, "vk.BeginCommandBuffer()", gfx.ErrResourceAllocation)
	}

	vk.CmdBindPipeline(r.commandBuffer, vk.PipelineBindPointCompute, r.pipeline.Get())
	vk.CmdBindDescriptorSets(r.commandBuffer, vk.PipelineBindPointCompute, r.pipeline.PipelineLayout(),
		0, 1, []vk.DescriptorSet{r.set.Get()}, 0, nil)

	return r.state.advance(stateRecording)
}

// PushConstants implements gfx.Recorder.
func (r *CommandRecorder) PushConstants(data []byte) error {
	if err := r.state.expect(stateRecording, "PushConstants"); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if uint32(len(data)) > r.pipeline.PushConstantSize() {
		return gfx.Markf(gfx.ErrPipelineCreation, "push constant block of %d bytes exceeds declared range of %d",
			len(data), r.pipeline.PushConstantSize())
	}
	vk.CmdPushConstants(r.commandBuffer, r.pipeline.PipelineLayout(),
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
	return nil
}

// Dispatch implements gfx.Recorder.
func (r *CommandRecorder) Dispatch(x, y, z uint32) error {
	if err := r.state.expect(stateRecording, "Dispatch"); err != nil {
		return err
	}
	vk.CmdDispatch(r.commandBuffer, x, y, z)
	r.dispatches++
	return nil
}

// Dispatches returns the number of dispatches recorded so far.
func (r *CommandRecorder) Dispatches() int {
	return r.dispatches
}

// End finishes recording, the buffer is ready for submission.
func (r *CommandRecorder) End() error {
	if err := r.state.expect(stateRecording, "End"); err != nil {
		return err
	}
	if err := vk.Error(vk.EndCommandBuffer(r.commandBuffer)); err != nil {
		return gfx.Mark(err, "vk.EndCommandBuffer()", gfx.ErrResourceAllocation)
	}
	return r.state.advance(stateReady)
}

// Release frees the command buffer along with its pool.
func (r *CommandRecorder) Release() {
	vk.FreeCommandBuffers(r.device, r.pool, 1, []vk.CommandBuffer{r.commandBuffer})
	vk.DestroyCommandPool(r.device, r.pool, nil)
}
