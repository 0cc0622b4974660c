// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package raster

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/devblok/vkcompute/src/gfx"
)

// Format is an output image encoding.
type Format string

// Supported output formats.
const (
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// FormatFromPath picks the format from the file extension of path.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	default:
		return "", gfx.Markf(gfx.ErrConfiguration, "unsupported output format %q", filepath.Ext(path))
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return errors.Wrap(png.Encode(w, img), "png.Encode()")
	case BMP:
		return errors.Wrap(bmp.Encode(w, img), "bmp.Encode()")
	case TIFF:
		return errors.Wrap(tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}), "tiff.Encode()")
	default:
		return gfx.Markf(gfx.ErrConfiguration, "unsupported output format %q", string(format))
	}
}

// WriteFile encodes img into a new file at path, the format follows
// the extension.
func WriteFile(path string, img image.Image) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()

	return Encode(f, img, format)
}
