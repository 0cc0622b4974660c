// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package variant holds the concrete compute workloads that run on top of
// the shared orchestration in core. Each variant describes its bindings,
// its push constant block and the passes it records.
package variant

import (
	"encoding/binary"
	"math"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/raster"
)

// Defaults fills the zero valued dimensions, sample count and timeout of
// cfg with the defaults of its kind.
func Defaults(cfg gfx.RunConfiguration) gfx.RunConfiguration {
	switch cfg.Kind {
	case gfx.FractalKind:
		if cfg.Width == 0 {
			cfg.Width = FractalWidth
		}
		if cfg.Height == 0 {
			cfg.Height = FractalHeight
		}
	case gfx.PathTracerKind:
		if cfg.Height == 0 {
			cfg.Height = PathTracerHeight
		}
		if cfg.Width == 0 {
			cfg.Width = cfg.Height * 3 / 2
		}
		if cfg.Samples == 0 {
			cfg.Samples = PathTracerSamples
		}
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = gfx.DefaultSubmitTimeout
	}
	return cfg
}

// New returns the variant selected by cfg, after applying Defaults.
func New(cfg gfx.RunConfiguration) (gfx.Variant, error) {
	cfg = Defaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case gfx.FractalKind:
		return NewFractal(cfg), nil
	case gfx.PathTracerKind:
		return NewPathTracer(cfg), nil
	default:
		return nil, gfx.Markf(gfx.ErrConfiguration, "unknown variant %q", cfg.Kind)
	}
}

func outputBinding(width, height uint32) gfx.Binding {
	return gfx.Binding{
		Index:  0,
		Kind:   gfx.StorageBuffer,
		Stage:  gfx.ComputeStage,
		Size:   raster.BufferSize(width, height),
		Output: true,
	}
}

// block is a little endian push constant or storage record writer.
type block []byte

func (b block) putUint32(idx int, v uint32) {
	binary.LittleEndian.PutUint32(b[idx*4:], v)
}

func (b block) putFloat32(idx int, v float32) {
	binary.LittleEndian.PutUint32(b[idx*4:], math.Float32bits(v))
}

// DefaultOutputPath is the image written when no output path is configured.
func DefaultOutputPath(kind gfx.Kind) string {
	if kind == gfx.PathTracerKind {
		return "pathtracer.png"
	}
	return "mandelbrot.png"
}
