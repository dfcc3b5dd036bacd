package watcher

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultBufferLimit bounds the queued raw events between drains.
const defaultBufferLimit = 4096

// FSNotify is a Watcher backed by the platform notification primitive
// (inotify/kqueue/ReadDirectoryChangesW via fsnotify). A background
// goroutine enqueues raw events into a bounded buffer; when the buffer
// overflows, events are dropped and the overflow flag is set so the
// caller can recover with a full scan.
type FSNotify struct {
	fsw   *fsnotify.Watcher
	limit int

	mu         sync.Mutex
	buf        []Event
	overflowed bool

	closeOnce sync.Once
	done      chan struct{}
}

// FSNotifyOption configures NewFSNotify.
type FSNotifyOption func(*FSNotify)

// WithBufferLimit overrides the queued-event limit.
func WithBufferLimit(n int) FSNotifyOption {
	return func(w *FSNotify) {
		if n > 0 {
			w.limit = n
		}
	}
}

// NewFSNotify creates a watcher backed by the OS notification primitive.
// It fails when the primitive is unavailable; callers should then fall
// back to Noop and scan-only operation.
func NewFSNotify(opts ...FSNotifyOption) (*FSNotify, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FSNotify{
		fsw:   fsw,
		limit: defaultBufferLimit,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w, nil
}

// Add registers a directory root and all its current subdirectories.
// Subdirectories created later are picked up from their create events.
func (w *FSNotify) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Drain returns all queued events without blocking.
func (w *FSNotify) Drain() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	evs := w.buf
	w.buf = nil
	return evs
}

// Overflowed reports and resets the overflow flag.
func (w *FSNotify) Overflowed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	of := w.overflowed
	w.overflowed = false
	return of
}

// Close stops the watcher.
func (w *FSNotify) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *FSNotify) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.enqueue(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Errors from the primitive mean events may have been lost.
			w.mu.Lock()
			w.overflowed = true
			w.mu.Unlock()
		}
	}
}

func (w *FSNotify) enqueue(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		// New directories must be watched to stay recursive.
		_ = w.Add(ev.Name)
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return // chmod and friends carry no content change
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) >= w.limit {
		w.overflowed = true
		return
	}
	w.buf = append(w.buf, Event{Path: ev.Name, Op: op, Time: time.Now()})
}
