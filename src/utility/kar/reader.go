// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magic := make([]byte, MagicLength)
	if num, err := r.ReadAt(magic, 0); num < MagicLength {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	} else if !bytes.Equal(magic, Magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); num < HeaderSizeNumberLength {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(headerSizeBytes)
	if err != nil {
		return nil, err
	}
	total, known := readerSize(r)
	limit := int64(MaxHeaderSize)
	if known && total-MagicLength-HeaderSizeNumberLength < limit {
		limit = total - MagicLength - HeaderSizeNumberLength
	}
	if headerSize > limit {
		return nil, errors.Wrapf(ErrFileFormat, "header of %d bytes exceeds the archive", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); int64(num) < headerSize {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Mark(err, ErrFileFormat)
	}

	dataOffset := MagicLength + HeaderSizeNumberLength + headerSize
	dataSize := int64(-1)
	if known {
		dataSize = total - dataOffset
	}
	if err := header.validate(dataSize); err != nil {
		return nil, err
	}

	return &Archive{
		reader:     r,
		header:     header,
		dataOffset: dataOffset,
	}, nil
}

// readerSize returns the total size behind r when r can report it.
func readerSize(r io.ReaderAt) (int64, bool) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), true
	case interface{ Len() int }:
		return int64(v.Len()), true
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := v.Stat()
		if err != nil {
			return 0, false
		}
		return info.Size(), true
	default:
		return 0, false
	}
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader     io.ReaderAt
	header     Header
	dataOffset int64
}

// Header returns the archive header including its index.
func (a *Archive) Header() Header {
	return a.header
}

// List returns the names of all files in the archive, in archive order.
func (a *Archive) List() []string {
	names := make([]string, 0, len(a.header.Index))
	for _, e := range a.header.Index {
		names = append(names, e.Name)
	}
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, r.entry.Size))
	if _, err := io.Copy(buf, io.LimitReader(r, r.entry.Size+1)); err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", name)
	}
	if int64(buf.Len()) != r.entry.Size {
		return nil, errors.Wrapf(ErrFileFormat, "%s: expected %d bytes, got %d", name, r.entry.Size, buf.Len())
	}
	return buf.Bytes(), nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.header.Find(name)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Size returns the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}
