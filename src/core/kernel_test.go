// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"

	"github.com/devblok/vkcompute/src/core"
	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/utility/kar"
)

var spirvHeader = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01}

func testLoader() *core.KernelLoader {
	return core.NewKernelLoader(packr.NewBox("./testdata/kernels"))
}

func TestLoadMissingKernel(t *testing.T) {
	c := qt.New(t)
	_, err := testLoader().Load(filepath.Join(c.TempDir(), "missing.spv"))
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)
}

func TestLoadEmptyKernel(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "empty.spv")
	c.Assert(os.WriteFile(path, nil, 0o644), qt.IsNil)

	_, err := testLoader().Load(path)
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)
}

func TestLoadPadsKernel(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "odd.spv")
	c.Assert(os.WriteFile(path, spirvHeader, 0o644), qt.IsNil)

	k, err := testLoader().Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(k.Name, qt.Equals, path)
	c.Assert(k.SourceLen, qt.Equals, 7)
	c.Assert(k.Len(), qt.Equals, 8)
	c.Assert(k.Code, qt.DeepEquals, append(append([]byte(nil), spirvHeader...), 0))
}

func TestLoadBuiltinKernel(t *testing.T) {
	c := qt.New(t)
	k, err := testLoader().Load(core.BuiltinPrefix + "fill.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(k.SourceLen, qt.Equals, 7)
	c.Assert(k.Len(), qt.Equals, 8)

	_, err = testLoader().Load(core.BuiltinPrefix + "nope.spv")
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)
}

func TestLoadArchivedKernel(t *testing.T) {
	c := qt.New(t)
	builder, err := kar.NewBuilder(kar.Header{Author: "test", Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()
	c.Assert(builder.Add("mandelbrot.spv", bytes.NewReader(spirvHeader)), qt.IsNil)

	archive := filepath.Join(c.TempDir(), "kernels.kar")
	f, err := os.Create(archive)
	c.Assert(err, qt.IsNil)
	_, err = builder.WriteTo(f)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	k, err := testLoader().Load(archive + ":mandelbrot.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(k.SourceLen, qt.Equals, len(spirvHeader))
	c.Assert(k.Code[:len(spirvHeader)], qt.DeepEquals, spirvHeader)

	_, err = testLoader().Load(archive + ":pathtracer.spv")
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)

	_, err = testLoader().Load(filepath.Join(c.TempDir(), "absent.kar") + ":mandelbrot.spv")
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)
}

func TestLoadCorruptArchive(t *testing.T) {
	c := qt.New(t)
	corrupt := append([]byte("KAR\x00"), make([]byte, 16)...)
	binary.LittleEndian.PutUint64(corrupt[4:], 1<<62)

	archive := filepath.Join(c.TempDir(), "bad.kar")
	c.Assert(os.WriteFile(archive, corrupt, 0o644), qt.IsNil)

	_, err := testLoader().Load(archive + ":mandelbrot.spv")
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsTrue)
	c.Assert(errors.Is(err, kar.ErrFileFormat), qt.IsTrue)
}

func TestLoadBundledWGSLKernel(t *testing.T) {
	c := qt.New(t)
	k, err := core.DefaultKernelLoader().Load(core.BuiltinPrefix + "mandelbrot.wgsl")
	c.Assert(err, qt.IsNil)
	c.Assert(k.Len()%4, qt.Equals, 0)
	c.Assert(k.Len() > 20, qt.IsTrue)

	words := core.SliceUint32(k.Code)
	c.Assert(words[0], qt.Equals, uint32(0x07230203))
}

func TestLoadWGSLKernelFile(t *testing.T) {
	c := qt.New(t)
	source, err := os.ReadFile(filepath.Join("..", "..", "kernels", "mandelbrot.wgsl"))
	c.Assert(err, qt.IsNil)

	path := filepath.Join(c.TempDir(), "fractal.wgsl")
	c.Assert(os.WriteFile(path, source, 0o644), qt.IsNil)

	k, err := testLoader().Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(core.SliceUint32(k.Code)[0], qt.Equals, uint32(0x07230203))
}

func TestLoadInvalidWGSLKernel(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "broken.wgsl")
	c.Assert(os.WriteFile(path, []byte("fn main( {\n"), 0o644), qt.IsNil)

	_, err := testLoader().Load(path)
	c.Assert(errors.Is(err, gfx.ErrPipelineCreation), qt.IsTrue)
	c.Assert(errors.Is(err, gfx.ErrKernelNotFound), qt.IsFalse)
}
