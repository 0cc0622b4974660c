// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"image"

	"github.com/devblok/vkcompute/src/gfx/raster"
	"github.com/devblok/vkcompute/src/gfx/vkr"
)

// ExtractImage reads the output buffer back and converts it to an 8 bit
// RGBA image. The buffer is mapped only for the duration of the copy.
func ExtractImage(buffer *vkr.Buffer, width, height uint32, scale float32) (*image.RGBA, error) {
	data, err := buffer.Read()
	if err != nil {
		return nil, err
	}
	return raster.Extract(data, width, height, scale)
}
