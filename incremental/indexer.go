// Package incremental drives the index from filesystem change detection:
// directory registration, full-scan diffing, watch-event draining,
// debounced batching and commit orchestration.
//
// The indexer is cooperative and single-threaded: Scan, PollEvents and
// commits execute synchronously on the caller's goroutine, so the order
// of staged changes is exactly the order in which calls observe them. The
// debounce timer is logical (timestamps compared against the configured
// window) and is evaluated on each PollEvents/Scan call, never via a
// blocking sleep. The indexer is not safe for concurrent use.
package incremental

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/houndgo/segmentindex"
	"github.com/hupe1980/houndgo/watcher"
)

var (
	// ErrInvalidPath is returned when a registered path does not exist or
	// is not a directory.
	ErrInvalidPath = errors.New("invalid path")

	// ErrAlreadyRegistered is returned when a directory is registered
	// twice.
	ErrAlreadyRegistered = errors.New("directory already registered")
)

// DefaultBatchWindow is the debounce window used when none is configured.
const DefaultBatchWindow = 500 * time.Millisecond

// ChangeKind classifies a staged pending change.
type ChangeKind uint8

const (
	// ChangeAddOrModify stages a file whose content must be (re)indexed.
	ChangeAddOrModify ChangeKind = iota
	// ChangeRemove stages a file whose live document must be tombstoned.
	ChangeRemove
)

// ContentFunc supplies raw file bytes to the engine. The default reads
// from the local filesystem; callers embedding the engine may substitute
// their own provider (e.g. unsaved editor buffers).
type ContentFunc func(path string) ([]byte, error)

type fileMeta struct {
	modTime time.Time
	size    int64
}

// Indexer coalesces filesystem changes into atomic index commits.
type Indexer struct {
	writer *segmentindex.Writer
	watch  watcher.Watcher
	window time.Duration
	now    func() time.Time
	read   ContentFunc
	rescan *rate.Limiter
	logger *slog.Logger

	roots     []string
	snapshots map[string]map[string]fileMeta // root -> path -> last seen meta
	pending   map[string]ChangeKind
	deadline  time.Time // zero while nothing is staged
	closed    bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithWatcher attaches a change-notification source. Without one the
// indexer operates scan-only.
func WithWatcher(w watcher.Watcher) Option {
	return func(i *Indexer) {
		if w != nil {
			i.watch = w
		}
	}
}

// WithBatchWindow sets the debounce window used to coalesce bursts of
// changes into one commit.
func WithBatchWindow(d time.Duration) Option {
	return func(i *Indexer) {
		if d > 0 {
			i.window = d
		}
	}
}

// WithClock overrides the time source. Tests use this to step the
// logical debounce timer deterministically.
func WithClock(now func() time.Time) Option {
	return func(i *Indexer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithContentFunc overrides the content provider used to read staged
// files at commit time.
func WithContentFunc(fn ContentFunc) Option {
	return func(i *Indexer) {
		if fn != nil {
			i.read = fn
		}
	}
}

// WithAutoRescan enables rate-limited automatic full scans from
// PollEvents for scan-only operation (no watcher attached).
func WithAutoRescan(limit rate.Limit) Option {
	return func(i *Indexer) {
		i.rescan = rate.NewLimiter(limit, 1)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an indexer committing through the given writer.
func New(writer *segmentindex.Writer, opts ...Option) *Indexer {
	i := &Indexer{
		writer:    writer,
		watch:     watcher.Noop(),
		window:    DefaultBatchWindow,
		now:       time.Now,
		read:      os.ReadFile,
		logger:    slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		snapshots: make(map[string]map[string]fileMeta),
		pending:   make(map[string]ChangeKind),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddDirectory registers a directory root for scanning and watching.
// The path must exist, be a directory and not already be registered.
func (i *Indexer) AddDirectory(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s: not a directory", ErrInvalidPath, path)
	}
	for _, r := range i.roots {
		if r == abs {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, path)
		}
	}
	if err := i.watch.Add(abs); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	i.roots = append(i.roots, abs)
	i.snapshots[abs] = make(map[string]fileMeta)
	i.logger.Debug("directory registered", "root", abs)
	return nil
}

// Roots returns the registered watch roots.
func (i *Indexer) Roots() []string {
	return append([]string(nil), i.roots...)
}

// HasPendingChanges reports whether staged changes await commit.
func (i *Indexer) HasPendingChanges() bool {
	return len(i.pending) > 0
}

// Scan walks every registered root, compares the current file set (path,
// modification time, size) against the last known snapshot, and stages
// every added, modified or removed file as a pending change. It returns
// the number of changes staged by this call. The debounce window is
// evaluated afterwards, so an already-expired batch commits during the
// same call.
func (i *Indexer) Scan() (int, error) {
	staged := 0
	for _, root := range i.roots {
		n, err := i.scanRoot(root)
		if err != nil {
			return staged, err
		}
		staged += n
	}
	if staged > 0 {
		i.logger.Debug("scan staged changes", "count", staged)
	}
	return staged, i.maybeCommit()
}

func (i *Indexer) scanRoot(root string) (int, error) {
	prev := i.snapshots[root]
	cur := make(map[string]fileMeta, len(prev))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil // unreadable entries are treated as absent
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		cur[path] = fileMeta{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", root, err)
	}

	staged := 0
	for path, meta := range cur {
		old, ok := prev[path]
		if !ok || !old.modTime.Equal(meta.modTime) || old.size != meta.size {
			i.stage(path, ChangeAddOrModify)
			staged++
		}
	}
	for path := range prev {
		if _, ok := cur[path]; !ok {
			i.stage(path, ChangeRemove)
			staged++
		}
	}

	i.snapshots[root] = cur
	return staged, nil
}

// PollEvents drains raw change notifications already delivered by the
// watch collaborator, stages them, and evaluates the debounce window. It
// never blocks. The returned bool reports whether any events were
// drained. Without a watcher, an optional rate-limited automatic rescan
// stands in for event delivery.
func (i *Indexer) PollEvents() (bool, error) {
	if i.watch.Overflowed() {
		// The primitive lost events; only a full diff restores sync.
		i.logger.Warn("watch buffer overflowed, falling back to full scan")
		n, err := i.Scan()
		return n > 0, err
	}

	evs := i.watch.Drain()
	for _, ev := range evs {
		i.stageEvent(ev)
	}

	if len(evs) == 0 && i.rescan != nil && i.rescan.Allow() {
		n, err := i.Scan()
		return n > 0, err
	}

	return len(evs) > 0, i.maybeCommit()
}

// Tick evaluates the debounce window without polling for events,
// committing the staged batch once the window has expired.
func (i *Indexer) Tick() error {
	return i.maybeCommit()
}

// Rebuild discards all incremental bookkeeping and re-indexes every file
// currently present under the registered roots in one commit: existing
// live documents are deleted and every present file is re-added.
func (i *Indexer) Rebuild() error {
	i.pending = make(map[string]ChangeKind)
	i.deadline = time.Time{}
	for root := range i.snapshots {
		i.snapshots[root] = make(map[string]fileMeta)
	}

	for _, name := range i.writer.LiveNames() {
		if err := i.writer.DeleteFile(name); err != nil {
			return err
		}
	}

	for _, root := range i.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			content, err := i.read(path)
			if err != nil {
				return nil // vanished between walk and read
			}
			if err := i.writer.AddFile(path, content); err != nil {
				return err
			}
			i.snapshots[root][path] = fileMeta{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", root, err)
		}
	}

	if err := i.writer.Commit(); err != nil {
		return err
	}
	i.logger.Info("rebuild committed", "documents", i.writer.DocumentCount())
	return nil
}

// Close stops the watch collaborator. Staged changes are discarded.
func (i *Indexer) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	return i.watch.Close()
}

// stage records one pending change and restarts the debounce window, so
// rapid successive changes (an editor's delete+recreate on save, say)
// coalesce into one commit.
func (i *Indexer) stage(path string, kind ChangeKind) {
	i.pending[path] = kind
	i.deadline = i.now().Add(i.window)
}

func (i *Indexer) stageEvent(ev watcher.Event) {
	root := i.rootOf(ev.Path)
	if root == "" {
		return
	}

	switch ev.Op {
	case watcher.OpRemove, watcher.OpRename:
		// A rename delivers the old path; the new path arrives as a
		// separate create event.
		i.forgetSubtree(root, ev.Path)
	default:
		info, err := os.Stat(ev.Path)
		if err != nil {
			i.forgetSubtree(root, ev.Path)
			return
		}
		if info.IsDir() {
			// Files created inside a brand-new directory may predate its
			// watch registration; pick them up by walking it.
			filepath.WalkDir(ev.Path, func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				fi, err := d.Info()
				if err != nil {
					return nil
				}
				i.stage(path, ChangeAddOrModify)
				i.snapshots[root][path] = fileMeta{modTime: fi.ModTime(), size: fi.Size()}
				return nil
			})
			return
		}
		i.stage(ev.Path, ChangeAddOrModify)
		i.snapshots[root][ev.Path] = fileMeta{modTime: info.ModTime(), size: info.Size()}
	}
}

// forgetSubtree stages removes for the path and anything previously seen
// beneath it.
func (i *Indexer) forgetSubtree(root, path string) {
	snap := i.snapshots[root]
	if _, ok := snap[path]; ok {
		i.stage(path, ChangeRemove)
		delete(snap, path)
	}
	prefix := path + string(filepath.Separator)
	for p := range snap {
		if strings.HasPrefix(p, prefix) {
			i.stage(p, ChangeRemove)
			delete(snap, p)
		}
	}
}

func (i *Indexer) rootOf(path string) string {
	for _, root := range i.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// maybeCommit flushes the staged batch once the debounce window has
// expired.
func (i *Indexer) maybeCommit() error {
	if len(i.pending) == 0 || i.now().Before(i.deadline) {
		return nil
	}
	return i.flush()
}

// flush drains all staged changes into exactly one commit.
func (i *Indexer) flush() error {
	adds, removes := 0, 0
	for path, kind := range i.pending {
		switch kind {
		case ChangeRemove:
			if err := i.writer.DeleteFile(path); err != nil {
				return err
			}
			removes++
		case ChangeAddOrModify:
			content, err := i.read(path)
			if err != nil {
				// Staged but gone again: net effect is a delete.
				if err := i.writer.DeleteFile(path); err != nil {
					return err
				}
				removes++
				continue
			}
			if err := i.writer.AddFile(path, content); err != nil {
				return err
			}
			adds++
		}
	}
	if err := i.writer.Commit(); err != nil {
		return err
	}
	i.pending = make(map[string]ChangeKind)
	i.deadline = time.Time{}
	i.logger.Info("batch committed", "adds", adds, "removes", removes)
	return nil
}
