// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package raster turns kernel output into images and encodes them.
package raster

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/devblok/vkcompute/src/gfx"
)

// PixelSize is the size of one kernel output pixel: four float32 channels.
const PixelSize = 16

// BufferSize returns the byte size of an output buffer for the given extent.
func BufferSize(width, height uint32) uint64 {
	return uint64(width) * uint64(height) * PixelSize
}

// Extract converts row major RGBA float32 pixels into an 8 bit image.
// Colour channels are multiplied by scale and truncated, alpha is always
// opaque. The input is not modified.
func Extract(data []byte, width, height uint32, scale float32) (*image.RGBA, error) {
	need := BufferSize(width, height)
	if uint64(len(data)) < need {
		return nil, gfx.Markf(gfx.ErrResourceAllocation,
			"output buffer holds %d bytes, %dx%d image needs %d", len(data), width, height, need)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	pixels := int(width) * int(height)
	for idx := 0; idx < pixels; idx++ {
		src := data[idx*PixelSize : idx*PixelSize+PixelSize]
		dst := img.Pix[idx*4 : idx*4+4]
		for ch := 0; ch < 3; ch++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(src[ch*4:]))
			dst[ch] = toChannel(v * scale)
		}
		dst[3] = 255
	}
	return img, nil
}

// toChannel truncates v into a byte, values outside the byte range saturate.
func toChannel(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Reflect180 rotates the image by 180 degrees in place: the pixel at (x, y)
// swaps with the pixel at (w-1-x, h-1-y). Applying it twice is a no-op.
func Reflect180(img *image.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	for idx := 0; idx < n/2; idx++ {
		x, y := idx%w, idx/w
		ox, oy := w-1-x, h-1-y
		a := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		o := img.PixOffset(b.Min.X+ox, b.Min.Y+oy)
		for ch := 0; ch < 4; ch++ {
			img.Pix[a+ch], img.Pix[o+ch] = img.Pix[o+ch], img.Pix[a+ch]
		}
	}
}
