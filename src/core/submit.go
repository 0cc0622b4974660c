// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/vkcompute/src/gfx"
)

// Submitter submits a recorded command buffer and waits for its completion.
type Submitter struct {
	device  vk.Device
	queue   vk.Queue
	timeout time.Duration
}

// NewSubmitter creates a submitter on the compute queue of dc. A zero
// timeout selects gfx.DefaultSubmitTimeout.
func NewSubmitter(dc *DeviceContext, timeout time.Duration) *Submitter {
	if timeout <= 0 {
		timeout = gfx.DefaultSubmitTimeout
	}
	return &Submitter{
		device:  dc.Device(),
		queue:   dc.Queue(),
		timeout: timeout,
	}
}

// Submit submits r once under a fresh fence and blocks until the fence is
// signaled or the timeout passes. The fence is destroyed in every case.
func (s *Submitter) Submit(r *CommandRecorder) error {
	if err := r.state.expect(stateReady, "Submit"); err != nil {
		return err
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(s.device, &fci, nil, &fence)); err != nil {
		return gfx.Mark(err, "vk.CreateFence()", gfx.ErrResourceAllocation)
	}
	defer vk.DestroyFence(s.device, fence, nil)

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{r.commandBuffer},
	}
	if err := vk.Error(vk.QueueSubmit(s.queue, 1, []vk.SubmitInfo{si}, fence)); err != nil {
		return gfx.Mark(err, "vk.QueueSubmit()", gfx.ErrSubmissionTimeout)
	}
	if err := r.state.advance(stateSubmitted); err != nil {
		return err
	}

	res := vk.WaitForFences(s.device, 1, []vk.Fence{fence}, vk.True, fenceTimeout(s.timeout))
	if res == vk.Timeout {
		return gfx.Markf(gfx.ErrSubmissionTimeout, "fence not signaled within %s", s.timeout)
	}
	if err := vk.Error(res); err != nil {
		return gfx.Mark(err, "vk.WaitForFences()", gfx.ErrSubmissionTimeout)
	}
	return r.state.advance(stateComplete)
}

// fenceTimeout converts d into the nanosecond count taken by vk.WaitForFences.
func fenceTimeout(d time.Duration) uint {
	if d <= 0 {
		return 0
	}
	return uint(d.Nanoseconds())
}
