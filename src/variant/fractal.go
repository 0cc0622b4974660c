// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/vkcompute/src/gfx"
)

// Fractal defaults.
const (
	FractalKernel    = "shaders/mandelbrot.spv"
	FractalWidth     = 3200
	FractalHeight    = 2400
	FractalGroupSize = 32
	FractalScale     = 255

	fractalPushSize = 32
)

// DefaultTint is the colour multiplier applied by the mandelbrot kernel.
var DefaultTint = mgl32.Vec4{0.1, 0.7, 0.6, 0}

// Fractal renders the mandelbrot set in a single dispatch.
type Fractal struct {
	Width, Height uint32
	GroupSize     uint32
	Tint          mgl32.Vec4
}

// NewFractal creates a mandelbrot variant for the configured extent.
func NewFractal(cfg gfx.RunConfiguration) *Fractal {
	return &Fractal{
		Width:     cfg.Width,
		Height:    cfg.Height,
		GroupSize: FractalGroupSize,
		Tint:      DefaultTint,
	}
}

// Name implements gfx.Variant.
func (f *Fractal) Name() string { return string(gfx.FractalKind) }

// KernelPath implements gfx.Variant.
func (f *Fractal) KernelPath() string { return FractalKernel }

// Extent implements gfx.Variant.
func (f *Fractal) Extent() (uint32, uint32) { return f.Width, f.Height }

// DescriptorLayout implements gfx.Variant.
func (f *Fractal) DescriptorLayout() []gfx.Binding {
	return []gfx.Binding{outputBinding(f.Width, f.Height)}
}

// PushConstantSize implements gfx.Variant.
func (f *Fractal) PushConstantSize() uint32 { return fractalPushSize }

// PushConstants encodes {width, height, pad[2], tint}.
func (f *Fractal) PushConstants() []byte {
	b := make(block, fractalPushSize)
	b.putUint32(0, f.Width)
	b.putUint32(1, f.Height)
	for idx, v := range f.Tint {
		b.putFloat32(4+idx, v)
	}
	return b
}

// RecordDispatches implements gfx.Variant.
func (f *Fractal) RecordDispatches(r gfx.Recorder) error {
	if err := r.PushConstants(f.PushConstants()); err != nil {
		return err
	}
	return r.Dispatch(
		gfx.WorkgroupCount(f.Width, f.GroupSize),
		gfx.WorkgroupCount(f.Height, f.GroupSize),
		1,
	)
}

// OutputScaleFactor implements gfx.Variant.
func (f *Fractal) OutputScaleFactor() float32 { return FractalScale }

// PostProcess implements gfx.Variant. The fractal is stored upright.
func (f *Fractal) PostProcess(*image.RGBA) {}
