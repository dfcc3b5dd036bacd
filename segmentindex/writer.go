// Package segmentindex provides the incremental index over the segment
// store: a writer that batches adds and deletes into atomic commits, and
// a reader over a committed snapshot.
package segmentindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/houndgo/manifest"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/segment"
	"github.com/hupe1980/houndgo/store"
)

var (
	// ErrNotFound is returned when a lookup misses: the id is unknown or
	// tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrEmptyName is returned when a document name is empty.
	ErrEmptyName = errors.New("empty document name")

	// ErrClosed is returned when a writer or reader is used after Close.
	ErrClosed = errors.New("index closed")
)

// Writer stages adds and deletes and publishes them as atomic commits.
//
// A Writer holds the index directory's exclusive lock from OpenWriter
// until Close. Its methods are not safe for concurrent use from multiple
// goroutines without external synchronization; this is a documented usage
// precondition, matching the engine's cooperative threading model.
type Writer struct {
	st     *store.Store
	logger *slog.Logger

	m     *manifest.Manifest
	tombs *roaring.Bitmap
	// liveNames maps each name to its single live global id. At most one
	// live id exists per name at any committed instant.
	liveNames map[string]model.FileID

	pendingAdds map[string][]byte
	pendingDels map[string]struct{}
	closed      bool
}

// WriterOption configures OpenWriter.
type WriterOption func(*writerConfig)

type writerConfig struct {
	storeOpts []store.Option
	logger    *slog.Logger
}

// WithStoreOptions passes options through to the underlying store.
func WithStoreOptions(opts ...store.Option) WriterOption {
	return func(c *writerConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// OpenWriter opens a writer session on the index directory, acquiring
// the exclusive writer lock and discarding any orphaned temporaries from
// interrupted commits. A fresh directory starts from an empty manifest;
// the manifest file itself appears with the first commit.
func OpenWriter(dir string, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(dir, append(cfg.storeOpts, store.WithLogger(cfg.logger))...)
	if err != nil {
		return nil, err
	}
	if err := st.AcquireWriterLock(); err != nil {
		return nil, err
	}
	st.CleanupTemp()

	m, err := st.LoadManifest()
	if errors.Is(err, manifest.ErrNoManifest) {
		m = manifest.New()
	} else if err != nil {
		st.ReleaseWriterLock()
		return nil, err
	}

	tombs, err := m.TombstoneSet()
	if err != nil {
		st.ReleaseWriterLock()
		return nil, err
	}

	w := &Writer{
		st:          st,
		logger:      cfg.logger,
		m:           m,
		tombs:       tombs,
		liveNames:   make(map[string]model.FileID),
		pendingAdds: make(map[string][]byte),
		pendingDels: make(map[string]struct{}),
	}

	// Resolving deletes at commit time needs the committed name table.
	segs, err := st.OpenSegments(context.Background(), m)
	if err != nil {
		st.ReleaseWriterLock()
		return nil, err
	}
	for _, seg := range segs {
		seg.Iterate(func(_ model.LocalID, d segment.Doc) bool {
			if !tombs.Contains(uint32(d.GlobalID)) {
				w.liveNames[d.Name] = d.GlobalID
			}
			return true
		})
	}

	return w, nil
}

// AddFile stages a document for the next commit. A second add for the
// same pending name overwrites the first; an add over a pending delete
// cancels the delete. The content bytes are copied, so the caller may
// reuse its buffer.
func (w *Writer) AddFile(name string, content []byte) error {
	if w.closed {
		return ErrClosed
	}
	if name == "" {
		return ErrEmptyName
	}
	delete(w.pendingDels, name)
	w.pendingAdds[name] = slices.Clone(content)
	return nil
}

// DeleteFile stages a delete for the next commit. Deleting a pending,
// uncommitted add cancels the add instead of emitting a tombstone.
// Deleting a name with no live document is a no-op at commit.
func (w *Writer) DeleteFile(name string) error {
	if w.closed {
		return ErrClosed
	}
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := w.pendingAdds[name]; ok {
		delete(w.pendingAdds, name)
		return nil
	}
	w.pendingDels[name] = struct{}{}
	return nil
}

// HasPending reports whether any staged changes await commit.
func (w *Writer) HasPending() bool {
	return len(w.pendingAdds) > 0 || len(w.pendingDels) > 0
}

// LiveNames returns the names of all committed live documents, sorted.
func (w *Writer) LiveNames() []string {
	names := make([]string, 0, len(w.liveNames))
	for name := range w.liveNames {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Commit atomically publishes all staged changes as one new segment plus
// one new manifest. With nothing staged it is a no-op: no segment file is
// created and the manifest is untouched. Any failure before the manifest
// rename leaves the previously committed state fully intact and the
// pending buffers in place, so the same batch can be retried.
func (w *Writer) Commit() error {
	if w.closed {
		return ErrClosed
	}
	if !w.HasPending() {
		return nil
	}

	next := w.m.Clone()
	newTombs := w.tombs.Clone()

	// Resolve deletes against the committed live name table.
	for name := range w.pendingDels {
		if gid, ok := w.liveNames[name]; ok {
			newTombs.Add(uint32(gid))
		}
	}

	// Names are assigned local and global ids in sorted order so that a
	// given batch always produces an identical segment.
	names := make([]string, 0, len(w.pendingAdds))
	for name := range w.pendingAdds {
		names = append(names, name)
	}
	slices.Sort(names)

	allocated := make(map[string]model.FileID, len(names))
	if len(names) > 0 {
		b := segment.NewBuilder(next.NextSeq)
		for _, name := range names {
			// Re-adding a live name supersedes it: the old id dies with
			// this commit, keeping a single live id per name.
			if gid, ok := w.liveNames[name]; ok {
				newTombs.Add(uint32(gid))
			}
			gid := next.NextFileID
			next.NextFileID++
			allocated[name] = gid
			if err := b.Add(gid, name, w.pendingAdds[name]); err != nil {
				return err
			}
		}
		info, err := w.st.WriteSegment(b)
		if err != nil {
			return fmt.Errorf("write segment: %w", err)
		}
		next.Segments = append(next.Segments, info)
		next.NextSeq++
	}

	if err := next.SetTombstoneSet(newTombs); err != nil {
		return err
	}
	if err := w.st.PublishManifest(next); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}

	// Published. Fold the batch into the writer's committed view.
	w.m = next
	w.tombs = newTombs
	for name := range w.pendingDels {
		delete(w.liveNames, name)
	}
	for name, gid := range allocated {
		w.liveNames[name] = gid
	}
	w.logger.Info("commit published",
		"adds", len(names),
		"deletes", len(w.pendingDels),
		"seq", w.m.NextSeq-1,
	)
	w.pendingAdds = make(map[string][]byte)
	w.pendingDels = make(map[string]struct{})
	return nil
}

// SegmentCount returns the number of committed segments. Pending buffers
// are never reflected.
func (w *Writer) SegmentCount() int {
	return len(w.m.Segments)
}

// DocumentCount returns the number of live committed documents. Pending
// buffers are never reflected.
func (w *Writer) DocumentCount() int {
	return len(w.liveNames)
}

// Stats describes the committed state of the index.
type Stats struct {
	SegmentCount   int
	DocumentCount  int
	TombstoneCount int
	NextFileID     model.FileID
}

// Stats returns counters for the committed state.
func (w *Writer) Stats() Stats {
	return Stats{
		SegmentCount:   len(w.m.Segments),
		DocumentCount:  len(w.liveNames),
		TombstoneCount: int(w.tombs.GetCardinality()),
		NextFileID:     w.m.NextFileID,
	}
}

// Close releases the writer lock. Staged but uncommitted changes are
// discarded.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return w.st.ReleaseWriterLock()
}
