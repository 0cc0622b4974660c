// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kar is an api for an lz4 backed file format.
// It's purpose is to be well suited for loading resources such as compute
// kernels straight from it. It's designed to be memory mapped, so (unlike tar)
// it knows where all the files are located before they're read. This nescesitates
// a bit of an unusual setup, where the archive itself is not compressed in
// any form, rather every file is individually compressed, so it could be immediately
// read from it's place and decompressed on the fly. This somewhat compromises
// space efficiency, but space efficiency is not the primary goal of this
// package. It instead focuses on getting resources from disk to a usable
// state as fast as possible. It can be read from concurrently.
//
// Layout: magic, header size field, gob encoded Header, then the lz4
// frames of every entry back to back. Entry offsets are relative to the
// end of the header.
package kar

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/cockroachdb/errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a kar archive")
	ErrTempFail   = errors.New("temporary folder or file operation failed")
	ErrNotFound   = errors.New("file not found in archive")
	ErrDuplicate  = errors.New("file already added to archive")
)

// Sizes relevant to the header of file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 16
)

// Limits on sizes read from an archive. Entries beyond them are
// treated as corruption.
const (
	MaxHeaderSize = 64 << 20
	MaxEntrySize  = 1 << 30
)

// Magic identifies kar archives.
var Magic = [MagicLength]byte{'K', 'A', 'R', '\x00'}

// IndexEntry is info for one file in the file index.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for kar files.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

// Find returns the index entry for name.
func (h *Header) Find(name string) (IndexEntry, bool) {
	for _, e := range h.Index {
		if e.Name == name {
			return e, true
		}
	}
	return IndexEntry{}, false
}

// validate checks every index entry against the archive data size.
// A negative dataSize means the size is unknown.
func (h *Header) validate(dataSize int64) error {
	for _, e := range h.Index {
		switch {
		case e.Offset < 0, e.Size < 0, e.CompressedSize < 0:
			return errors.Wrapf(ErrFileFormat, "%s: negative offset or size", e.Name)
		case e.Size > MaxEntrySize, e.CompressedSize > MaxEntrySize:
			return errors.Wrapf(ErrFileFormat, "%s: size exceeds %d bytes", e.Name, int64(MaxEntrySize))
		case dataSize >= 0 && (e.Offset > dataSize || e.CompressedSize > dataSize-e.Offset):
			return errors.Wrapf(ErrFileFormat, "%s: entry runs past the end of the archive", e.Name)
		}
	}
	return nil
}

func int64ToBinary(num int64) []byte {
	bts := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(bts, uint64(num))
	return bts
}

func binaryToint64(bts []byte) (int64, error) {
	if len(bts) < 8 {
		return 0, ErrFileFormat
	}
	num := int64(binary.LittleEndian.Uint64(bts))
	if num < 0 {
		return 0, ErrFileFormat
	}
	return num, nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	enc := gob.NewEncoder(&encoded)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(bts))
	if err := dec.Decode(obj); err != nil {
		return err
	}
	return nil
}
