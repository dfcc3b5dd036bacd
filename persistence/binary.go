// Package persistence provides the shared binary serialization layer for
// houndgo index files. Both the one-shot flat index and the immutable
// segment files use the same header, table encodings and checksum scheme.
package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

var byteOrder = binary.LittleEndian

// HeaderSize is the encoded size of FileHeader.
var HeaderSize = binary.Size(FileHeader{})

// WriteHeader writes the file header.
func WriteHeader(w io.Writer, h *FileHeader) error {
	h.Magic = MagicNumber
	h.Version = Version
	return binary.Write(w, byteOrder, h)
}

// ReadHeader reads and validates the file header.
func ReadHeader(r io.Reader, kind uint8) (*FileHeader, error) {
	var h FileHeader
	if err := binary.Read(r, byteOrder, &h); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}
	if h.Kind != kind {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKind, h.Kind, kind)
	}
	return &h, nil
}

// Decode parses a fully read index file of the given kind. It validates
// the header, verifies the body checksum and returns the header plus the
// body bytes (everything after the header).
func Decode(data []byte, kind uint8) (*FileHeader, []byte, error) {
	if len(data) < HeaderSize {
		return nil, nil, ErrTruncated
	}
	h, err := ReadHeader(bytes.NewReader(data[:HeaderSize]), kind)
	if err != nil {
		return nil, nil, err
	}
	body := data[HeaderSize:]
	if crc32.ChecksumIEEE(body) != h.Checksum {
		return nil, nil, ErrChecksum
	}
	return h, body, nil
}

// SectionBuilder accumulates the body sections of an index file and
// tracks their absolute offsets.
type SectionBuilder struct {
	buf bytes.Buffer
}

// Offset returns the absolute file offset the next appended byte will have.
func (b *SectionBuilder) Offset() uint64 {
	return uint64(HeaderSize + b.buf.Len())
}

// Len returns the number of body bytes accumulated so far.
func (b *SectionBuilder) Len() int { return b.buf.Len() }

// AppendUint32 appends a little-endian uint32.
func (b *SectionBuilder) AppendUint32(v uint32) {
	var tmp [4]byte
	byteOrder.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}

// AppendBytes appends raw bytes.
func (b *SectionBuilder) AppendBytes(p []byte) {
	b.buf.Write(p)
}

// Bytes returns the accumulated body bytes.
func (b *SectionBuilder) Bytes() []byte { return b.buf.Bytes() }

// Checksum returns the CRC32 of the accumulated body.
func (b *SectionBuilder) Checksum() uint32 {
	return crc32.ChecksumIEEE(b.buf.Bytes())
}

// WriteTo writes the accumulated body to w.
func (b *SectionBuilder) WriteTo(w io.Writer) (int64, error) {
	return b.buf.WriteTo(w)
}

// Uint32At decodes a little-endian uint32 from body at the given body
// index. The caller is responsible for bounds checking section extents
// against the header offsets first.
func Uint32At(body []byte, i int) uint32 {
	return byteOrder.Uint32(body[i : i+4])
}
