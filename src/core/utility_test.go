// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"math/rand"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkcompute/src/core"
)

func TestPadWords(t *testing.T) {
	c := qt.New(t)
	rng := rand.New(rand.NewSource(1))
	for length := 0; length < 64; length++ {
		data := make([]byte, length)
		rng.Read(data)
		original := make([]byte, length)
		copy(original, data)

		padded := core.PadWords(data)

		want := (length + 3) / 4 * 4
		c.Assert(len(padded), qt.Equals, want, qt.Commentf("length %d", length))
		c.Assert(len(padded)%4, qt.Equals, 0)
		c.Assert(bytes.Equal(padded[:length], original), qt.IsTrue)
		c.Assert(bytes.Count(padded[length:], []byte{0}), qt.Equals, want-length)
		c.Assert(bytes.Equal(data, original), qt.IsTrue)
	}
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	data := core.PadWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01})
	words := core.SliceUint32(data)
	c.Assert(words, qt.HasLen, 2)
	// little endian hosts only, as is every vulkan target
	c.Assert(words[0], qt.Equals, uint32(0x07230203))
	c.Assert(words[1], qt.Equals, uint32(0x00000001))

	c.Assert(core.SliceUint32(nil), qt.HasLen, 0)
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkPadWords(b *testing.B) {
	data := make([]byte, 100001)
	for idx := 0; idx < b.N; idx++ {
		core.PadWords(data)
	}
}
