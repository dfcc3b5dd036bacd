package flatindex

import (
	"fmt"
	"sort"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/persistence"
)

// Reader is a fully loaded flat index. It is immutable after Open and
// safe for concurrent use.
type Reader struct {
	names    []string
	lengths  []uint32
	keys     []model.Trigram
	postings [][]model.FileID
}

// ReaderOption configures Open.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	fsys fs.FileSystem
}

// WithReaderFileSystem overrides the filesystem used to open the index.
func WithReaderFileSystem(fsys fs.FileSystem) ReaderOption {
	return func(c *readerConfig) {
		if fsys != nil {
			c.fsys = fsys
		}
	}
}

// Open reads and validates a flat index file. A bad magic, version or
// checksum fails the open; no partial reader is ever returned.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{fsys: fs.Default}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := fs.ReadFile(cfg.fsys, path)
	if err != nil {
		return nil, err
	}
	h, body, err := persistence.Decode(data, persistence.KindFlat)
	if err != nil {
		return nil, fmt.Errorf("flat index %s: %w", path, err)
	}
	tables, err := persistence.ParseTables(h, body)
	if err != nil {
		return nil, fmt.Errorf("flat index %s: %w", path, err)
	}

	r := &Reader{
		names:    make([]string, len(tables.Docs)),
		lengths:  make([]uint32, len(tables.Docs)),
		keys:     make([]model.Trigram, len(tables.Keys)),
		postings: make([][]model.FileID, len(tables.Keys)),
	}
	for i, e := range tables.Docs {
		r.names[i] = tables.Name(e)
		r.lengths[i] = e.ContentLen
	}
	for i, key := range tables.Keys {
		list := make([]model.FileID, len(tables.Postings[i]))
		for j, v := range tables.Postings[i] {
			list[j] = model.FileID(v)
		}
		r.keys[i] = model.Trigram(key)
		r.postings[i] = list
	}
	return r, nil
}

// FileCount returns the number of indexed documents.
func (r *Reader) FileCount() int { return len(r.names) }

// TrigramCount returns the number of distinct trigrams in the index.
func (r *Reader) TrigramCount() int { return len(r.keys) }

// Name resolves a file id to its stored name.
func (r *Reader) Name(id model.FileID) (string, error) {
	if int(id) >= len(r.names) {
		return "", fmt.Errorf("file id %d: %w", id, ErrIDOutOfRange)
	}
	return r.names[id], nil
}

// Length returns the recorded content length of a file id.
func (r *Reader) Length(id model.FileID) (uint32, error) {
	if int(id) >= len(r.lengths) {
		return 0, fmt.Errorf("file id %d: %w", id, ErrIDOutOfRange)
	}
	return r.lengths[id], nil
}

// LookupTrigram returns the sorted file ids of documents containing the
// trigram. The returned slice is shared and must not be modified.
func (r *Reader) LookupTrigram(b0, b1, b2 byte) []model.FileID {
	t := model.NewTrigram(b0, b1, b2)
	i := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= t })
	if i < len(r.keys) && r.keys[i] == t {
		return r.postings[i]
	}
	return nil
}
