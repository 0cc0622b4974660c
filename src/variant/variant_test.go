// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant_test

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/variant"
)

type dispatch struct {
	push    []byte
	x, y, z uint32
}

// recorder captures the commands a variant records.
type recorder struct {
	pending  []byte
	calls    []dispatch
	pushes   int
	failAt   int
	failWith error
}

func (r *recorder) PushConstants(data []byte) error {
	r.pushes++
	r.pending = append([]byte(nil), data...)
	return nil
}

func (r *recorder) Dispatch(x, y, z uint32) error {
	if r.failWith != nil && len(r.calls) == r.failAt {
		return r.failWith
	}
	r.calls = append(r.calls, dispatch{push: r.pending, x: x, y: y, z: z})
	return nil
}

func word(b []byte, idx int) uint32 {
	return binary.LittleEndian.Uint32(b[idx*4:])
}

func float(b []byte, idx int) float32 {
	return math.Float32frombits(word(b, idx))
}

func TestFractalDispatch(t *testing.T) {
	c := qt.New(t)
	f := variant.NewFractal(gfx.RunConfiguration{Kind: gfx.FractalKind, Width: 2000, Height: 2000})

	layout := f.DescriptorLayout()
	c.Assert(layout, qt.HasLen, 1)
	c.Assert(layout[0].Output, qt.IsTrue)
	c.Assert(layout[0].Size, qt.Equals, uint64(2000*2000*16))
	c.Assert(gfx.PoolSizes(layout), qt.DeepEquals, []gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 1}})

	var r recorder
	c.Assert(f.RecordDispatches(&r), qt.IsNil)
	c.Assert(r.calls, qt.HasLen, 1)
	c.Assert(r.calls[0].x, qt.Equals, uint32(63))
	c.Assert(r.calls[0].y, qt.Equals, uint32(63))
	c.Assert(r.calls[0].z, qt.Equals, uint32(1))

	push := r.calls[0].push
	c.Assert(push, qt.HasLen, int(f.PushConstantSize()))
	c.Assert(word(push, 0), qt.Equals, uint32(2000))
	c.Assert(word(push, 1), qt.Equals, uint32(2000))
	c.Assert(word(push, 2), qt.Equals, uint32(0))
	c.Assert([]float32{float(push, 4), float(push, 5), float(push, 6), float(push, 7)},
		qt.DeepEquals, []float32{0.1, 0.7, 0.6, 0})

	c.Assert(f.OutputScaleFactor(), qt.Equals, float32(255))
	c.Assert(f.KernelPath(), qt.Equals, variant.FractalKernel)
}

func TestFractalLeavesImage(t *testing.T) {
	c := qt.New(t)
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})

	variant.NewFractal(gfx.RunConfiguration{Width: 2, Height: 1}).PostProcess(img)
	c.Assert(img.RGBAAt(0, 0), qt.Equals, color.RGBA{R: 1, A: 255})
}

func TestPathTracerPasses(t *testing.T) {
	c := qt.New(t)
	p := variant.NewPathTracer(gfx.RunConfiguration{Kind: gfx.PathTracerKind, Height: 600, Samples: 500})

	w, h := p.Extent()
	c.Assert(w, qt.Equals, uint32(900))
	c.Assert(h, qt.Equals, uint32(600))

	var r recorder
	c.Assert(p.RecordDispatches(&r), qt.IsNil)
	c.Assert(r.calls, qt.HasLen, 500)
	c.Assert(r.pushes, qt.Equals, 500)
	for idx, call := range r.calls {
		c.Assert(word(call.push, 2), qt.Equals, uint32(idx))
		c.Assert(word(call.push, 3), qt.Equals, uint32(500))
		c.Assert(word(call.push, 0), qt.Equals, uint32(900))
		c.Assert(word(call.push, 1), qt.Equals, uint32(600))
		c.Assert(call.x, qt.Equals, uint32(57))
		c.Assert(call.y, qt.Equals, uint32(38))
	}
}

func TestPathTracerStopsOnError(t *testing.T) {
	c := qt.New(t)
	p := variant.NewPathTracer(gfx.RunConfiguration{Height: 16, Samples: 10})

	boom := errors.New("boom")
	r := recorder{failAt: 3, failWith: boom}
	c.Assert(p.RecordDispatches(&r), qt.Equals, boom)
	c.Assert(r.calls, qt.HasLen, 3)
	c.Assert(r.pushes, qt.Equals, 4)
}

func TestPathTracerDefaults(t *testing.T) {
	c := qt.New(t)
	p := variant.NewPathTracer(gfx.RunConfiguration{Kind: gfx.PathTracerKind})
	w, h := p.Extent()
	c.Assert(h, qt.Equals, uint32(variant.PathTracerHeight))
	c.Assert(w, qt.Equals, uint32(600))
	c.Assert(p.Samples, qt.Equals, uint32(variant.PathTracerSamples))

	explicit := variant.NewPathTracer(gfx.RunConfiguration{Width: 123, Height: 45, Samples: 1})
	w, h = explicit.Extent()
	c.Assert(w, qt.Equals, uint32(123))
	c.Assert(h, qt.Equals, uint32(45))
}

func TestPathTracerLayout(t *testing.T) {
	c := qt.New(t)
	p := variant.NewPathTracer(gfx.RunConfiguration{Height: 4, Samples: 1})

	layout := p.DescriptorLayout()
	c.Assert(layout, qt.HasLen, 3)
	for idx, b := range layout {
		c.Assert(b.Index, qt.Equals, uint32(idx))
		c.Assert(b.Kind, qt.Equals, gfx.StorageBuffer)
		c.Assert(b.Output, qt.Equals, idx == 0)
	}
	c.Assert(layout[0].Size, qt.Equals, uint64(6*4*16))
	c.Assert(layout[0].Contents, qt.IsNil)
	c.Assert(layout[1].Size, qt.Equals, uint64(6*variant.RecordSize))
	c.Assert(layout[1].Contents, qt.HasLen, 6*variant.RecordSize)
	c.Assert(layout[2].Size, qt.Equals, uint64(3*variant.RecordSize))
	c.Assert(gfx.PoolSizes(layout), qt.DeepEquals, []gfx.PoolSize{{Kind: gfx.StorageBuffer, Count: 3}})
	c.Assert(p.PushConstantSize(), qt.Equals, uint32(16))
	c.Assert(p.OutputScaleFactor(), qt.Equals, float32(1))
}

func TestPathTracerRotatesImage(t *testing.T) {
	c := qt.New(t)
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 9, A: 255})

	variant.NewPathTracer(gfx.RunConfiguration{Width: 3, Height: 2, Samples: 1}).PostProcess(img)
	c.Assert(img.RGBAAt(2, 1), qt.Equals, color.RGBA{R: 9, A: 255})
	c.Assert(img.RGBAAt(0, 0), qt.Equals, color.RGBA{})
}

func TestNew(t *testing.T) {
	c := qt.New(t)

	v, err := variant.New(gfx.RunConfiguration{Kind: gfx.FractalKind, Width: 8, Height: 8})
	c.Assert(err, qt.IsNil)
	c.Assert(v.Name(), qt.Equals, "fractal")

	v, err = variant.New(gfx.RunConfiguration{Kind: gfx.PathTracerKind, Height: 8, Samples: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(v.Name(), qt.Equals, "pathtracer")

	_, err = variant.New(gfx.RunConfiguration{Kind: "raymarcher", Width: 8, Height: 8})
	c.Assert(errors.Is(err, gfx.ErrConfiguration), qt.IsTrue)
}

func TestDefaultOutputPath(t *testing.T) {
	c := qt.New(t)
	c.Assert(variant.DefaultOutputPath(gfx.FractalKind), qt.Equals, "mandelbrot.png")
	c.Assert(variant.DefaultOutputPath(gfx.PathTracerKind), qt.Equals, "pathtracer.png")
}

func TestDefaults(t *testing.T) {
	c := qt.New(t)

	fractal := variant.Defaults(gfx.RunConfiguration{Kind: gfx.FractalKind})
	c.Assert(fractal.Width, qt.Equals, uint32(3200))
	c.Assert(fractal.Height, qt.Equals, uint32(2400))
	c.Assert(fractal.SubmitTimeout, qt.Equals, gfx.DefaultSubmitTimeout)
	c.Assert(fractal.Validate(), qt.IsNil)

	tracer := variant.Defaults(gfx.RunConfiguration{Kind: gfx.PathTracerKind, Height: 600})
	c.Assert(tracer.Width, qt.Equals, uint32(900))
	c.Assert(tracer.Samples, qt.Equals, uint32(500))
	c.Assert(tracer.Validate(), qt.IsNil)

	kept := variant.Defaults(gfx.RunConfiguration{Kind: gfx.FractalKind, Width: 10, Height: 20})
	c.Assert(kept.Width, qt.Equals, uint32(10))
	c.Assert(kept.Height, qt.Equals, uint32(20))
}
