// Package flatindex implements the one-shot, build-once index format: a
// single self-contained file with a header, a document table, a trigram
// table sorted for binary search, and a name blob. The format supports no
// incremental updates by design; it targets static corpora. For corpora
// that change, use the segment store instead.
package flatindex

import (
	"bytes"
	"errors"
	"os"
	"slices"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/persistence"
	"github.com/hupe1980/houndgo/trigram"
)

var (
	// ErrEmptyName is returned when a document is added with an empty name.
	ErrEmptyName = errors.New("empty document name")

	// ErrFinished is returned when a writer is used after Finish.
	ErrFinished = errors.New("index writer already finished")

	// ErrIDOutOfRange is returned when a file id does not exist in the
	// index.
	ErrIDOutOfRange = errors.New("file id out of range")
)

// Writer accumulates (name, content) pairs in memory and serializes them
// into a flat index file on Finish. It is not safe for concurrent use.
type Writer struct {
	fsys     fs.FileSystem
	path     string
	names    []string
	byName   map[string]int
	lengths  []uint32
	sets     [][]model.Trigram
	finished bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFileSystem overrides the filesystem used by the writer.
func WithFileSystem(fsys fs.FileSystem) WriterOption {
	return func(w *Writer) {
		if fsys != nil {
			w.fsys = fsys
		}
	}
}

// NewWriter creates a writer that will produce the index file at path.
func NewWriter(path string, opts ...WriterOption) *Writer {
	w := &Writer{
		fsys:   fs.Default,
		path:   path,
		byName: make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddFile stages a document. Adding the same name twice overwrites the
// earlier content. Content shorter than three bytes is recorded with zero
// postings.
func (w *Writer) AddFile(name string, content []byte) error {
	if w.finished {
		return ErrFinished
	}
	if name == "" {
		return ErrEmptyName
	}
	set := trigram.Extract(content)
	if i, ok := w.byName[name]; ok {
		w.lengths[i] = uint32(len(content))
		w.sets[i] = set
		return nil
	}
	w.byName[name] = len(w.names)
	w.names = append(w.names, name)
	w.lengths = append(w.lengths, uint32(len(content)))
	w.sets = append(w.sets, set)
	return nil
}

// FileCount returns the number of staged documents.
func (w *Writer) FileCount() int { return len(w.names) }

// Finish serializes the index and writes it durably: temp file, fsync,
// atomic rename over the target path. The writer cannot be reused
// afterwards.
func (w *Writer) Finish() error {
	if w.finished {
		return ErrFinished
	}
	w.finished = true

	encoded, err := w.encode()
	if err != nil {
		return err
	}

	tmpPath := w.path + ".tmp"
	f, err := w.fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(encoded); err != nil {
		f.Close()
		w.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		w.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		w.fsys.Remove(tmpPath)
		return err
	}
	if err := w.fsys.Rename(tmpPath, w.path); err != nil {
		w.fsys.Remove(tmpPath)
		return err
	}
	return nil
}

func (w *Writer) encode() ([]byte, error) {
	postings := make(map[model.Trigram][]model.LocalID)
	for i, set := range w.sets {
		for _, t := range set {
			postings[t] = append(postings[t], model.LocalID(i))
		}
	}
	keys := make([]model.Trigram, 0, len(postings))
	for t := range postings {
		keys = append(keys, t)
	}
	slices.Sort(keys)

	var nameBlob bytes.Buffer
	var docSection persistence.SectionBuilder
	for i, name := range w.names {
		nameOff := nameBlob.Len()
		nameBlob.WriteString(name)
		// In a flat index the global id is the table position.
		docSection.AppendUint32(uint32(i))
		docSection.AppendUint32(uint32(nameOff))
		docSection.AppendUint32(uint32(len(name)))
		docSection.AppendUint32(w.lengths[i])
	}

	var triSection, postSection persistence.SectionBuilder
	for _, t := range keys {
		list := postings[t]
		triSection.AppendUint32(uint32(t))
		triSection.AppendUint32(uint32(postSection.Len()))
		triSection.AppendUint32(uint32(len(list)))
		for _, local := range list {
			postSection.AppendUint32(uint32(local))
		}
	}

	var body persistence.SectionBuilder
	h := persistence.FileHeader{
		Kind:         persistence.KindFlat,
		DocCount:     uint32(len(w.names)),
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
	if _, err := out.Write(body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
