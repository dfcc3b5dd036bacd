// Package manifest persists the authoritative pointer to the committed
// index state: the active segment list, the tombstone set and the id
// counters. A manifest transition is all-or-nothing; the atomic rename in
// [Store.Save] is the sole publish point of a commit.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/model"
)

const (
	FileName       = "MANIFEST.json"
	CurrentVersion = 1
)

var (
	// ErrNoManifest is returned by Load when the index directory holds no
	// manifest yet.
	ErrNoManifest = errors.New("no manifest")

	// ErrCorrupt is returned when the manifest exists but cannot be
	// decoded or carries an unsupported version.
	ErrCorrupt = errors.New("corrupt manifest")
)

// SegmentInfo describes a single active segment.
type SegmentInfo struct {
	Seq      model.SegmentID `json:"seq"`
	DocCount uint32          `json:"doc_count"`
	Path     string          `json:"path"` // Relative to the index dir
}

// Manifest describes the committed state of an index at a specific point
// in time.
type Manifest struct {
	Version    int             `json:"version"`
	Segments   []SegmentInfo   `json:"segments"`
	Tombstones []byte          `json:"tombstones,omitempty"` // Serialized roaring bitmap of dead FileIDs
	NextFileID model.FileID    `json:"next_file_id"`
	NextSeq    model.SegmentID `json:"next_seq"`
}

// New returns an empty manifest with counters positioned for the first
// commit. FileID 0 and sequence number 0 are never allocated.
func New() *Manifest {
	return &Manifest{
		Version:    CurrentVersion,
		NextFileID: 1,
		NextSeq:    1,
	}
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Segments = append([]SegmentInfo(nil), m.Segments...)
	c.Tombstones = append([]byte(nil), m.Tombstones...)
	return &c
}

// TombstoneSet decodes the manifest's tombstone bytes into a bitmap.
// An absent tombstone section decodes to an empty set.
func (m *Manifest) TombstoneSet() (*roaring.Bitmap, error) {
	rb := roaring.New()
	if len(m.Tombstones) == 0 {
		return rb, nil
	}
	if err := rb.UnmarshalBinary(m.Tombstones); err != nil {
		return nil, fmt.Errorf("%w: tombstones: %v", ErrCorrupt, err)
	}
	return rb, nil
}

// SetTombstoneSet serializes the bitmap into the manifest.
func (m *Manifest) SetTombstoneSet(rb *roaring.Bitmap) error {
	if rb == nil || rb.IsEmpty() {
		m.Tombstones = nil
		return nil
	}
	data, err := rb.MarshalBinary()
	if err != nil {
		return err
	}
	m.Tombstones = data
	return nil
}

// LiveDocCount returns the number of live documents implied by the
// manifest: the sum of segment doc counts minus the tombstone cardinality.
func (m *Manifest) LiveDocCount() (int, error) {
	total := 0
	for _, s := range m.Segments {
		total += int(s.DocCount)
	}
	ts, err := m.TombstoneSet()
	if err != nil {
		return 0, err
	}
	return total - int(ts.GetCardinality()), nil
}

// Store manages the manifest file and its atomic updates.
type Store struct {
	fs  fs.FileSystem
	dir string
}

// NewStore creates a new manifest store rooted at dir.
func NewStore(fsys fs.FileSystem, dir string) *Store {
	if fsys == nil {
		fsys = fs.Default
	}
	return &Store{fs: fsys, dir: dir}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load loads the current manifest. A missing manifest returns
// ErrNoManifest; a present but undecodable one returns ErrCorrupt.
func (s *Store) Load() (*Manifest, error) {
	data, err := fs.ReadFile(s.fs, s.Path())
	if os.IsNotExist(err) {
		return nil, ErrNoManifest
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)", ErrCorrupt, m.Version, CurrentVersion)
	}
	if len(m.Tombstones) > 0 {
		if _, err := m.TombstoneSet(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Save atomically publishes a new manifest: write to a temp file, fsync,
// rename over the previous manifest, fsync the directory. Any failure
// before the rename leaves the prior manifest authoritative.
func (s *Store) Save(m *Manifest) error {
	m.Version = CurrentVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	return fs.SyncDir(s.fs, s.dir)
}
