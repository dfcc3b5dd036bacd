package houndgo

import (
	"errors"

	"github.com/hupe1980/houndgo/manifest"
	"github.com/hupe1980/houndgo/segmentindex"
	"github.com/hupe1980/houndgo/store"
)

var (
	// ErrInvalidName is returned when an index name is empty or would
	// escape the managed root directory.
	ErrInvalidName = errors.New("invalid index name")

	// ErrNotFound unifies the lookup failure of the lower layers.
	ErrNotFound = segmentindex.ErrNotFound

	// ErrWriterConflict is returned when another process already holds
	// the writer lock for an index directory.
	ErrWriterConflict = store.ErrWriterConflict

	// ErrNoManifest is returned when opening a reader on a directory
	// that has never been committed to.
	ErrNoManifest = manifest.ErrNoManifest

	// ErrCorrupt is returned when an index directory's manifest cannot
	// be decoded.
	ErrCorrupt = manifest.ErrCorrupt
)
