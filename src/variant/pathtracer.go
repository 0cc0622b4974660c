// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant

import (
	"image"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/raster"
)

// PathTracer defaults.
const (
	PathTracerKernel    = "shaders/pathtracer.spv"
	PathTracerGroupSize = 16
	PathTracerScale     = 1
	PathTracerHeight    = 400
	PathTracerSamples   = 500

	pathTracerPushSize = 16
)

// PathTracer accumulates one sample per pixel per dispatch over a scene.
// The kernel writes the image bottom up, so it is rotated after readback.
type PathTracer struct {
	Width, Height uint32
	Samples       uint32
	GroupSize     uint32
	Scene         Scene
}

// NewPathTracer creates a path tracer over the Cornell box. A zero
// width is derived from the height at 3:2.
func NewPathTracer(cfg gfx.RunConfiguration) *PathTracer {
	height := cfg.Height
	if height == 0 {
		height = PathTracerHeight
	}
	width := cfg.Width
	if width == 0 {
		width = height * 3 / 2
	}
	samples := cfg.Samples
	if samples == 0 {
		samples = PathTracerSamples
	}
	return &PathTracer{
		Width:     width,
		Height:    height,
		Samples:   samples,
		GroupSize: PathTracerGroupSize,
		Scene:     CornellBox(),
	}
}

// Name implements gfx.Variant.
func (p *PathTracer) Name() string { return string(gfx.PathTracerKind) }

// KernelPath implements gfx.Variant.
func (p *PathTracer) KernelPath() string { return PathTracerKernel }

// Extent implements gfx.Variant.
func (p *PathTracer) Extent() (uint32, uint32) { return p.Width, p.Height }

// DescriptorLayout implements gfx.Variant. Binding 1 holds the planes
// and binding 2 the spheres.
func (p *PathTracer) DescriptorLayout() []gfx.Binding {
	planes := p.Scene.EncodePlanes()
	spheres := p.Scene.EncodeSpheres()
	return []gfx.Binding{
		outputBinding(p.Width, p.Height),
		{Index: 1, Kind: gfx.StorageBuffer, Stage: gfx.ComputeStage, Size: uint64(len(planes)), Contents: planes},
		{Index: 2, Kind: gfx.StorageBuffer, Stage: gfx.ComputeStage, Size: uint64(len(spheres)), Contents: spheres},
	}
}

// PushConstantSize implements gfx.Variant.
func (p *PathTracer) PushConstantSize() uint32 { return pathTracerPushSize }

// PushConstants encodes {width, height, sampleIndex, sampleCount}.
func (p *PathTracer) PushConstants(sample uint32) []byte {
	b := make(block, pathTracerPushSize)
	b.putUint32(0, p.Width)
	b.putUint32(1, p.Height)
	b.putUint32(2, sample)
	b.putUint32(3, p.Samples)
	return b
}

// RecordDispatches implements gfx.Variant. Every pass rewrites the push
// block with its own sample index before dispatching.
func (p *PathTracer) RecordDispatches(r gfx.Recorder) error {
	x := gfx.WorkgroupCount(p.Width, p.GroupSize)
	y := gfx.WorkgroupCount(p.Height, p.GroupSize)
	for sample := uint32(0); sample < p.Samples; sample++ {
		if err := r.PushConstants(p.PushConstants(sample)); err != nil {
			return err
		}
		if err := r.Dispatch(x, y, 1); err != nil {
			return err
		}
	}
	return nil
}

// OutputScaleFactor implements gfx.Variant.
func (p *PathTracer) OutputScaleFactor() float32 { return PathTracerScale }

// PostProcess implements gfx.Variant.
func (p *PathTracer) PostProcess(img *image.RGBA) {
	raster.Reflect180(img)
}
