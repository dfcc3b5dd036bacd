// Package segment implements the immutable on-disk unit of the index.
//
// A segment is produced by exactly one commit and never rewritten. It
// holds a document table (global id, name, content length per local id)
// and a trigram table sorted by packed key whose posting lists are sorted,
// duplicate-free local ids. Segments are retired only by compaction.
package segment

import (
	"fmt"
	"os"
	"sort"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/persistence"
)

// Doc is one entry of a segment's document table.
type Doc struct {
	GlobalID model.FileID
	Name     string
	Length   uint32
}

// Segment is a fully loaded, immutable segment. It is safe for concurrent
// readers.
type Segment struct {
	seq  model.SegmentID
	docs []Doc

	keys     []model.Trigram
	postings [][]model.LocalID // parallel to keys
}

// Open reads and validates a segment file. A bad header, checksum or
// truncated table fails the open; the engine never silently skips a
// segment referenced by the manifest.
func Open(fsys fs.FileSystem, path string) (*Segment, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	s, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	return s, nil
}

func decode(data []byte) (*Segment, error) {
	h, body, err := persistence.Decode(data, persistence.KindSegment)
	if err != nil {
		return nil, err
	}
	tables, err := persistence.ParseTables(h, body)
	if err != nil {
		return nil, err
	}

	s := &Segment{
		seq:      model.SegmentID(h.Seq),
		docs:     make([]Doc, len(tables.Docs)),
		keys:     make([]model.Trigram, len(tables.Keys)),
		postings: make([][]model.LocalID, len(tables.Keys)),
	}
	for i, e := range tables.Docs {
		s.docs[i] = Doc{
			GlobalID: model.FileID(e.GlobalID),
			Name:     tables.Name(e),
			Length:   e.ContentLen,
		}
	}
	for i, key := range tables.Keys {
		list := make([]model.LocalID, len(tables.Postings[i]))
		for j, v := range tables.Postings[i] {
			list[j] = model.LocalID(v)
		}
		s.keys[i] = model.Trigram(key)
		s.postings[i] = list
	}
	return s, nil
}

// Seq returns the segment's sequence number.
func (s *Segment) Seq() model.SegmentID { return s.seq }

// DocCount returns the number of documents stored in the segment,
// including ones later tombstoned by the manifest.
func (s *Segment) DocCount() int { return len(s.docs) }

// TrigramCount returns the number of distinct trigrams in the segment.
func (s *Segment) TrigramCount() int { return len(s.keys) }

// Doc returns the document table entry for a local id.
func (s *Segment) Doc(local model.LocalID) (Doc, bool) {
	if int(local) >= len(s.docs) {
		return Doc{}, false
	}
	return s.docs[local], true
}

// GlobalID maps a local id to its global id.
func (s *Segment) GlobalID(local model.LocalID) (model.FileID, bool) {
	if int(local) >= len(s.docs) {
		return 0, false
	}
	return s.docs[local].GlobalID, true
}

// Lookup returns the posting list for a trigram: the sorted, duplicate
// free local ids of documents containing it. The returned slice is shared
// and must not be modified.
func (s *Segment) Lookup(t model.Trigram) []model.LocalID {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= t })
	if i < len(s.keys) && s.keys[i] == t {
		return s.postings[i]
	}
	return nil
}

// TrigramSets inverts the segment's posting lists into per-document
// trigram sets, indexed by local id. Each set is sorted ascending. Used
// by compaction to rebuild a merged segment without re-reading content.
func (s *Segment) TrigramSets() [][]model.Trigram {
	sets := make([][]model.Trigram, len(s.docs))
	for i, key := range s.keys {
		for _, local := range s.postings[i] {
			sets[local] = append(sets[local], key)
		}
	}
	return sets
}

// Iterate calls fn for every document in local id order.
func (s *Segment) Iterate(fn func(local model.LocalID, doc Doc) bool) {
	for i, d := range s.docs {
		if !fn(model.LocalID(i), d) {
			return
		}
	}
}

// Write durably writes an encoded segment: the payload goes to a temp
// file, is fsynced, then renamed into place. The rename here is not the
// publish point; an unreferenced segment file is invisible until a
// manifest names it.
func Write(fsys fs.FileSystem, path string, encoded []byte) error {
	if fsys == nil {
		fsys = fs.Default
	}
	tmpPath := path + ".tmp"
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(encoded); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmpPath)
		return err
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return err
	}
	return nil
}
