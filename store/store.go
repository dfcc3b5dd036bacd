// Package store manages the on-disk layout of a segment index: the
// manifest, the immutable segment files and the exclusive writer lock.
//
// Directory layout:
//
//	MANIFEST.json        authoritative pointer to the committed state
//	segment_<seq>.hseg   one file per committed segment
//	LOCK                 flock-backed writer exclusion
//	*.tmp                orphaned temporaries; safe to discard
//
// Many readers may be open concurrently while a writer commits: readers
// resolve the manifest once at open time, and publication is a single
// atomic rename, so a reader observes either the fully-prior or the
// fully-next state, never a mix.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/manifest"
	"github.com/hupe1980/houndgo/segment"
)

const lockFileName = "LOCK"

var (
	// ErrWriterConflict is returned when another writer session holds the
	// index directory's exclusive lock.
	ErrWriterConflict = errors.New("another writer is active on this index")

	// ErrMissingSegment is returned when the manifest references a
	// segment file that cannot be opened. The engine never silently skips
	// a segment, to avoid masking data loss.
	ErrMissingSegment = errors.New("manifest references missing or corrupt segment")
)

// Store is the storage layer of one index directory.
type Store struct {
	fsys      fs.FileSystem
	dir       string
	manifests *manifest.Store
	lock      *flock.Flock
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem overrides the filesystem used by the store.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fsys = fsys
		}
	}
}

// WithLogger sets the structured logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (creating if needed) the store rooted at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		fsys:   fs.Default,
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fsys.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s.manifests = manifest.NewStore(s.fsys, dir)
	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// AcquireWriterLock takes the exclusive per-directory writer lock without
// blocking. At most one writer session may be active per index directory.
func (s *Store) AcquireWriterLock() error {
	if s.lock == nil {
		s.lock = flock.New(filepath.Join(s.dir, lockFileName))
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	if !ok {
		return ErrWriterConflict
	}
	return nil
}

// ReleaseWriterLock releases the writer lock. Safe to call when no lock
// is held.
func (s *Store) ReleaseWriterLock() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// LoadManifest reads the committed manifest. A missing manifest returns
// manifest.ErrNoManifest.
func (s *Store) LoadManifest() (*manifest.Manifest, error) {
	return s.manifests.Load()
}

// PublishManifest atomically publishes a new manifest. This is the sole
// publish point of a commit.
func (s *Store) PublishManifest(m *manifest.Manifest) error {
	if err := s.manifests.Save(m); err != nil {
		return err
	}
	s.logger.Debug("manifest published",
		"segments", len(m.Segments),
		"next_file_id", m.NextFileID,
		"next_seq", m.NextSeq,
	)
	return nil
}

// SegmentPath returns the absolute path of a segment file.
func (s *Store) SegmentPath(info manifest.SegmentInfo) string {
	return filepath.Join(s.dir, info.Path)
}

// WriteSegment durably writes an encoded segment under its canonical
// name and returns its manifest entry. The segment stays invisible to
// readers until a manifest references it.
func (s *Store) WriteSegment(b *segment.Builder) (manifest.SegmentInfo, error) {
	encoded, err := b.Encode()
	if err != nil {
		return manifest.SegmentInfo{}, err
	}
	info := manifest.SegmentInfo{
		Seq:      b.Seq(),
		DocCount: uint32(b.DocCount()),
		Path:     segment.FileName(b.Seq()),
	}
	if err := segment.Write(s.fsys, s.SegmentPath(info), encoded); err != nil {
		return manifest.SegmentInfo{}, err
	}
	s.logger.Debug("segment written", "seq", b.Seq(), "docs", b.DocCount(), "bytes", len(encoded))
	return info, nil
}

// OpenSegments opens every segment the manifest references, in parallel.
// A missing or corrupt segment fails the whole open.
func (s *Store) OpenSegments(ctx context.Context, m *manifest.Manifest) ([]*segment.Segment, error) {
	segs := make([]*segment.Segment, len(m.Segments))
	g, _ := errgroup.WithContext(ctx)
	for i, info := range m.Segments {
		i, info := i, info
		g.Go(func() error {
			seg, err := segment.Open(s.fsys, s.SegmentPath(info))
			if err != nil {
				return fmt.Errorf("%w: seq %d: %v", ErrMissingSegment, info.Seq, err)
			}
			if seg.Seq() != info.Seq || seg.DocCount() != int(info.DocCount) {
				return fmt.Errorf("%w: seq %d: header disagrees with manifest", ErrMissingSegment, info.Seq)
			}
			segs[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segs, nil
}

// RemoveSegment deletes a retired segment file. Used by compaction only;
// failures are surfaced so the caller can log them, but a leftover file
// is harmless since no manifest references it.
func (s *Store) RemoveSegment(info manifest.SegmentInfo) error {
	return s.fsys.Remove(s.SegmentPath(info))
}

// CleanupTemp removes orphaned temporary files left behind by an
// interrupted commit, which are outside any committed state.
func (s *Store) CleanupTemp() {
	entries, err := s.fsys.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		if err := s.fsys.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			s.logger.Debug("removed orphaned temp file", "name", e.Name())
		}
	}
}
