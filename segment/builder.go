package segment

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/persistence"
	"github.com/hupe1980/houndgo/trigram"
)

// ErrTooManyDocs is returned when a single segment would exceed the
// 32-bit local id space.
var ErrTooManyDocs = errors.New("too many documents for one segment")

// Builder accumulates documents for one segment and encodes the immutable
// payload. Local ids are assigned in Add order.
type Builder struct {
	seq      model.SegmentID
	docs     []Doc
	postings map[model.Trigram][]model.LocalID
}

// NewBuilder creates a builder for a segment with the given sequence
// number.
func NewBuilder(seq model.SegmentID) *Builder {
	return &Builder{
		seq:      seq,
		postings: make(map[model.Trigram][]model.LocalID),
	}
}

// Add stages a document. Its trigram set is extracted from content;
// content itself is not stored. Content shorter than three bytes yields a
// document with zero postings, not an error.
func (b *Builder) Add(globalID model.FileID, name string, content []byte) error {
	return b.AddEntry(globalID, name, uint32(len(content)), trigram.Extract(content))
}

// AddEntry stages a document from a precomputed trigram set. Used by
// compaction, where postings are merged from existing segments without
// re-reading content.
func (b *Builder) AddEntry(globalID model.FileID, name string, length uint32, set []model.Trigram) error {
	if len(b.docs) >= int(^model.LocalID(0)) {
		return ErrTooManyDocs
	}
	local := model.LocalID(len(b.docs))
	b.docs = append(b.docs, Doc{GlobalID: globalID, Name: name, Length: length})
	for _, t := range set {
		b.postings[t] = append(b.postings[t], local)
	}
	return nil
}

// Seq returns the sequence number the segment will carry.
func (b *Builder) Seq() model.SegmentID { return b.seq }

// DocCount returns the number of staged documents.
func (b *Builder) DocCount() int { return len(b.docs) }

// Encode serializes the staged documents into a complete segment file
// image (header included).
func (b *Builder) Encode() ([]byte, error) {
	keys := make([]model.Trigram, 0, len(b.postings))
	for t := range b.postings {
		keys = append(keys, t)
	}
	slices.Sort(keys)

	// Name blob and doc table entries.
	var nameBlob bytes.Buffer
	var docSection persistence.SectionBuilder
	for _, d := range b.docs {
		nameOff := nameBlob.Len()
		nameBlob.WriteString(d.Name)
		docSection.AppendUint32(uint32(d.GlobalID))
		docSection.AppendUint32(uint32(nameOff))
		docSection.AppendUint32(uint32(len(d.Name)))
		docSection.AppendUint32(d.Length)
	}

	// Posting section and trigram table. Posting lists are already sorted
	// and duplicate-free: local ids are assigned in Add order and each
	// document contributes a trigram at most once.
	var triSection, postSection persistence.SectionBuilder
	for _, t := range keys {
		list := b.postings[t]
		triSection.AppendUint32(uint32(t))
		triSection.AppendUint32(uint32(postSection.Len()))
		triSection.AppendUint32(uint32(len(list)))
		for _, local := range list {
			postSection.AppendUint32(uint32(local))
		}
	}

	var body persistence.SectionBuilder
	h := persistence.FileHeader{
		Kind:         persistence.KindSegment,
		Seq:          uint64(b.seq),
		DocCount:     uint32(len(b.docs)),
		TrigramCount: uint32(len(keys)),
	}
	h.DocTableOff = body.Offset()
	body.AppendBytes(docSection.Bytes())
	h.TrigramOff = body.Offset()
	body.AppendBytes(triSection.Bytes())
	h.PostingOff = body.Offset()
	body.AppendBytes(postSection.Bytes())
	h.NameBlobOff = body.Offset()
	body.AppendBytes(nameBlob.Bytes())
	h.Checksum = body.Checksum()

	var out bytes.Buffer
	out.Grow(persistence.HeaderSize + body.Len())
	if err := persistence.WriteHeader(&out, &h); err != nil {
		return nil, err
	}
	if _, err := body.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// FileName returns the canonical file name of a segment by sequence
// number.
func FileName(seq model.SegmentID) string {
	return fmt.Sprintf("segment_%d.hseg", seq)
}
