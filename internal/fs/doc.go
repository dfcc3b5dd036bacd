// Package fs provides filesystem abstractions for testability and fault
// injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using the standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// Production code should use fs.Default (which is [LocalFS]). Tests inject
// [FaultyFS] to verify that a failed write, sync or rename during a commit
// never damages the previously published index state:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailOnSync: true})
//	// inject ffs into the store under test
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem operations are fast and non-interruptible at the syscall
// level; commit-path safety is handled above this layer by never publishing
// a manifest for an aborted commit.
package fs
