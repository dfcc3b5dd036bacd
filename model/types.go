package model

import (
	"fmt"
)

// FileID is the globally unique identifier for a document. IDs are
// allocated strictly increasing across commits and never reused.
type FileID uint32

// SegmentID is the sequence number of a committed segment.
type SegmentID uint64

// LocalID is a dense, segment-local identifier for a document.
// It is stable for the lifetime of its segment.
type LocalID uint32

// Location identifies a document's physical position in the index.
type Location struct {
	SegmentID SegmentID
	LocalID   LocalID
}

// String returns a string representation of the Location.
func (l Location) String() string {
	return fmt.Sprintf("Loc(%d:%d)", l.SegmentID, l.LocalID)
}

// Trigram is an exact 3-byte index key packed into the low 24 bits of a
// uint32. No text-encoding assumption is made; all 256^3 values are valid.
type Trigram uint32

// NewTrigram packs three bytes into a Trigram.
func NewTrigram(b0, b1, b2 byte) Trigram {
	return Trigram(uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2))
}

// Bytes unpacks the trigram into its three bytes.
func (t Trigram) Bytes() (b0, b1, b2 byte) {
	return byte(t >> 16), byte(t >> 8), byte(t)
}

// String returns a printable representation of the trigram.
func (t Trigram) String() string {
	b0, b1, b2 := t.Bytes()
	return fmt.Sprintf("%q%q%q", b0, b1, b2)
}

// Document describes a committed document. Documents are immutable: a
// logical update is a tombstone of the old FileID plus an add under a new
// one, never an in-place mutation.
type Document struct {
	GlobalID FileID
	Name     string
	Length   uint32
	Loc      Location
}

// SearchResult is a ranked match returned by a search.
type SearchResult struct {
	// FileID is the matched document's global identifier.
	FileID FileID
	// MatchCount is the number of distinct query trigrams found in the
	// document.
	MatchCount uint32
	// Name is the document's resolved display name.
	Name string
}
