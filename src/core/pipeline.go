// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"

	"github.com/devblok/vkcompute/src/gfx"
)

// Pipeline is a compute pipeline along with its layouts.
// It's immutable once built.
type Pipeline struct {
	device vk.Device

	layout       []gfx.Binding
	pushSize     uint32
	shader       vk.ShaderModule
	setLayout    vk.DescriptorSetLayout
	layoutHandle vk.PipelineLayout
	cache        vk.PipelineCache
	pipeline     vk.Pipeline

	release gfx.ReleaseStack
}

func descriptorType(kind gfx.DescriptorKind) (vk.DescriptorType, error) {
	switch kind {
	case gfx.StorageBuffer:
		return vk.DescriptorTypeStorageBuffer, nil
	default:
		return 0, gfx.Markf(gfx.ErrPipelineCreation, "unsupported descriptor kind %d", int(kind))
	}
}

func shaderStage(stage gfx.Stage) (vk.ShaderStageFlags, error) {
	switch stage {
	case gfx.ComputeStage:
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit), nil
	default:
		return 0, gfx.Markf(gfx.ErrPipelineCreation, "unsupported shader stage %d", int(stage))
	}
}

// layoutBindings translates layout into vulkan descriptor set bindings.
func layoutBindings(layout []gfx.Binding) ([]vk.DescriptorSetLayoutBinding, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(layout))
	for _, b := range layout {
		kind, err := descriptorType(b.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %d", b.Index)
		}
		stage, err := shaderStage(b.Stage)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %d", b.Index)
		}
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Index,
			DescriptorType:  kind,
			DescriptorCount: 1,
			StageFlags:      stage,
		})
	}
	return bindings, nil
}

// BuildPipeline declares the descriptor set layout and push constant range,
// creates the pipeline layout and the compute pipeline for kernel.
// Any failure releases what was created so far.
func BuildPipeline(device vk.Device, kernel Kernel, layout []gfx.Binding, pushConstantSize uint32) (*Pipeline, error) {
	p := &Pipeline{
		device:   device,
		layout:   layout,
		pushSize: pushConstantSize,
	}
	if err := p.build(kernel); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build(kernel Kernel) error {
	bindings, err := layoutBindings(p.layout)
	if err != nil {
		return err
	}

	shader, err := kernel.Module(p.device)
	if err != nil {
		return err
	}
	p.shader = shader
	p.release.PushFunc(func() { vk.DestroyShaderModule(p.device, p.shader, nil) })

	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var setLayout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(p.device, &dslci, nil, &setLayout)); err != nil {
		return gfx.Mark(err, "vk.CreateDescriptorSetLayout()", gfx.ErrPipelineCreation)
	}
	p.setLayout = setLayout
	p.release.PushFunc(func() { vk.DestroyDescriptorSetLayout(p.device, p.setLayout, nil) })

	var pcr []vk.PushConstantRange
	if p.pushSize > 0 {
		pcr = append(pcr, vk.PushConstantRange{
			Offset:     0,
			Size:       p.pushSize,
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{p.setLayout},
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}

	var pipelineLayout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(p.device, &plci, nil, &pipelineLayout)); err != nil {
		return gfx.Mark(err, "vk.CreatePipelineLayout()", gfx.ErrPipelineCreation)
	}
	p.layoutHandle = pipelineLayout
	p.release.PushFunc(func() { vk.DestroyPipelineLayout(p.device, p.layoutHandle, nil) })

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var cache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(p.device, &pcci, nil, &cache)); err != nil {
		return gfx.Mark(err, "vk.CreatePipelineCache()", gfx.ErrPipelineCreation)
	}
	p.cache = cache
	p.release.PushFunc(func() { vk.DestroyPipelineCache(p.device, p.cache, nil) })

	cpci := []vk.ComputePipelineCreateInfo{{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: p.shader,
			PName:  safeString(kernelEntryName),
		},
		Layout: p.layoutHandle,
	}}

	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateComputePipelines(p.device, p.cache, 1, cpci, nil, pipelines)); err != nil {
		return gfx.Mark(err, "vk.CreateComputePipelines()", gfx.ErrPipelineCreation)
	}
	p.pipeline = pipelines[0]
	p.release.PushFunc(func() { vk.DestroyPipeline(p.device, p.pipeline, nil) })

	return nil
}

// Layout returns the binding list the pipeline was built with.
func (p *Pipeline) Layout() []gfx.Binding {
	return p.layout
}

// PushConstantSize returns the size of the declared push constant range.
func (p *Pipeline) PushConstantSize() uint32 {
	return p.pushSize
}

// SetLayout returns the descriptor set layout handle.
func (p *Pipeline) SetLayout() vk.DescriptorSetLayout {
	return p.setLayout
}

// PipelineLayout returns the pipeline layout handle.
func (p *Pipeline) PipelineLayout() vk.PipelineLayout {
	return p.layoutHandle
}

// Get returns the vulkan pipeline handle.
func (p *Pipeline) Get() vk.Pipeline {
	return p.pipeline
}

// Release destroys the pipeline objects in reverse creation order.
func (p *Pipeline) Release() {
	p.release.Release()
}
