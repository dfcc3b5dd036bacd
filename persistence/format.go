package persistence

import "errors"

const (
	// MagicNumber identifies houndgo binary index files (ASCII: "HND1")
	MagicNumber uint32 = 0x484E4431
	// Version is the current file format version (v1.0.0)
	Version uint32 = 0x00010000

	// File kinds
	KindFlat    = 1
	KindSegment = 2
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("invalid file kind")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrTruncated      = errors.New("truncated index file")
)

// FileHeader is the fixed-size header at the start of every index file.
// All offsets are absolute file offsets; the checksum covers every byte
// after the header.
type FileHeader struct {
	Magic        uint32
	Version      uint32
	Kind         uint8 // 1=Flat, 2=Segment
	Padding1     [7]byte
	Seq          uint64 // Segment sequence number (0 for flat indexes)
	DocCount     uint32
	TrigramCount uint32
	DocTableOff  uint64
	TrigramOff   uint64
	PostingOff   uint64
	NameBlobOff  uint64
	Checksum     uint32 // CRC32 (IEEE) of the body
	Padding2     [4]byte
}

const (
	// Fixed-width encoded sizes of the table entries.
	DocEntrySize     = 16 // global id, name offset, name length, content length
	TrigramEntrySize = 12 // packed key, posting offset, posting count
)
