// Package watcher abstracts the OS file-change notification primitive
// behind a single capability: watch roots and drain the raw events they
// produce. All coalescing, debouncing and commit decisions live in the
// incremental indexer; a watcher only enqueues.
//
// When the platform primitive is unavailable, [Noop] degrades the system
// gracefully to scan-only operation.
package watcher

import "time"

// Op is the kind of a raw file change notification.
type Op uint8

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is one raw change notification.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Watcher is the change-notification capability the incremental indexer
// polls. Implementations may deliver events from a background mechanism
// but must only enqueue; Drain is non-blocking.
type Watcher interface {
	// Add registers a directory root to watch.
	Add(root string) error

	// Drain returns all events delivered since the last call, without
	// blocking.
	Drain() []Event

	// Overflowed reports (and resets) whether events were dropped since
	// the last call. Callers should fall back to a full scan when set.
	Overflowed() bool

	// Close stops the watcher and releases resources.
	Close() error
}

type noopWatcher struct{}

// Noop returns a watcher that never produces events, for scan-only
// operation.
func Noop() Watcher { return noopWatcher{} }

func (noopWatcher) Add(string) error { return nil }
func (noopWatcher) Drain() []Event   { return nil }
func (noopWatcher) Overflowed() bool { return false }
func (noopWatcher) Close() error     { return nil }
