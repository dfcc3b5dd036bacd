package houndgo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/houndgo/incremental"
	"github.com/hupe1980/houndgo/segmentindex"
	"github.com/hupe1980/houndgo/watcher"
)

// Manager administers a root directory holding named segmented indexes,
// one subdirectory per index.
type Manager struct {
	root   string
	logger *Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger used by the manager and
// propagated to indexes it opens.
func WithLogger(logger *Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTextLogging enables text logging to stderr at the given level.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithTextLogging(level slog.Level) ManagerOption {
	return func(m *Manager) {
		m.logger = NewTextLogger(level)
	}
}

// NewManager creates a manager over the given root directory, creating
// it if necessary.
func NewManager(root string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		root:   root,
		logger: NoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", root, err)
	}
	return m, nil
}

// Root returns the managed root directory.
func (m *Manager) Root() string {
	return m.root
}

// IndexDir resolves an index name to its directory under the root. The
// name must be a single non-empty path element.
func (m *Manager) IndexDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(m.root, name), nil
}

// ListIndexes returns the names of all index directories under the root,
// sorted lexicographically.
func (m *Manager) ListIndexes() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", m.root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// OpenWriter opens the exclusive writer for a named index, creating the
// index directory on first use.
func (m *Manager) OpenWriter(name string) (*segmentindex.Writer, error) {
	dir, err := m.IndexDir(name)
	if err != nil {
		return nil, err
	}
	return segmentindex.OpenWriter(dir,
		segmentindex.WithLogger(m.logger.WithIndex(name).Logger),
	)
}

// OpenReader opens a point-in-time snapshot reader for a named index.
func (m *Manager) OpenReader(name string) (*segmentindex.Reader, error) {
	dir, err := m.IndexDir(name)
	if err != nil {
		return nil, err
	}
	return segmentindex.OpenReader(dir,
		segmentindex.WithReaderLogger(m.logger.WithIndex(name).Logger),
	)
}

// RemoveIndex deletes a named index directory and everything in it.
func (m *Manager) RemoveIndex(name string) error {
	dir, err := m.IndexDir(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// IncrementalIndexer bundles an incremental indexer with the exclusive
// writer it commits through, so both close together.
type IncrementalIndexer struct {
	*incremental.Indexer
	writer *segmentindex.Writer
}

// Writer exposes the underlying index writer, e.g. to read stats.
func (ii *IncrementalIndexer) Writer() *segmentindex.Writer {
	return ii.writer
}

// Close stops the indexer and releases the writer lock.
func (ii *IncrementalIndexer) Close() error {
	err := ii.Indexer.Close()
	if cerr := ii.writer.Close(); err == nil {
		err = cerr
	}
	return err
}

// IndexerOption configures NewIncrementalIndexer.
type IndexerOption func(*indexerConfig)

type indexerConfig struct {
	batchWindow   time.Duration
	enableWatcher bool
	rescanLimit   rate.Limit
}

// WithBatchWindow sets the debounce window for change batching.
func WithBatchWindow(d time.Duration) IndexerOption {
	return func(c *indexerConfig) {
		c.batchWindow = d
	}
}

// WithFilesystemWatcher enables fsnotify-based change detection. Without
// it the indexer is scan-only.
func WithFilesystemWatcher() IndexerOption {
	return func(c *indexerConfig) {
		c.enableWatcher = true
	}
}

// WithAutoRescan enables rate-limited automatic full scans from
// PollEvents for scan-only operation.
func WithAutoRescan(limit rate.Limit) IndexerOption {
	return func(c *indexerConfig) {
		c.rescanLimit = limit
	}
}

// NewIncrementalIndexer opens the writer for the index directory at
// indexPath and wires an incremental indexer on top of it.
func NewIncrementalIndexer(indexPath string, opts ...IndexerOption) (*IncrementalIndexer, error) {
	cfg := indexerConfig{
		batchWindow: incremental.DefaultBatchWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := segmentindex.OpenWriter(indexPath)
	if err != nil {
		return nil, err
	}

	iopts := []incremental.Option{
		incremental.WithBatchWindow(cfg.batchWindow),
	}
	if cfg.enableWatcher {
		fw, err := watcher.NewFSNotify()
		if err != nil {
			w.Close()
			return nil, err
		}
		iopts = append(iopts, incremental.WithWatcher(fw))
	}
	if cfg.rescanLimit > 0 {
		iopts = append(iopts, incremental.WithAutoRescan(cfg.rescanLimit))
	}

	return &IncrementalIndexer{
		Indexer: incremental.New(w, iopts...),
		writer:  w,
	}, nil
}
