// Package houndgo provides an embedded trigram-based full-text substring
// search engine for local file collections.
//
// Houndgo indexes file contents by their 3-byte substrings (trigrams) and
// answers substring queries by intersecting posting lists, ranking files
// by the number of matching query trigrams. Two index shapes are
// supported:
//
//   - Flat: a single immutable index file written once from a fixed file
//     set. Cheap to build, cheap to open, no update path.
//   - Segmented: an updatable index made of immutable segment files plus
//     a manifest. New and changed files land in fresh segments; deletes
//     are tombstones; compaction folds everything back into one segment.
//
// # Quick Start
//
// One-shot flat index:
//
//	w, _ := flatindex.NewWriter("code.idx")
//	w.AddFile("main.go", content)
//	w.Finish()
//
//	r, _ := flatindex.Open("code.idx")
//	s := searcher.New(r)
//	results, _ := s.Search("func main", 10)
//
// Updatable segmented index:
//
//	w, _ := segmentindex.OpenWriter("./index")
//	w.AddFile("main.go", content)
//	w.Commit() // atomic: readers see all of it or none of it
//
//	r, _ := segmentindex.OpenReader("./index")
//	s := searcher.New(r)
//	results, _ := s.Search("func main", 10)
//
// # Durability Model
//
// Segmented indexes use commit-oriented durability: segment files are
// written and synced first, then the manifest is atomically renamed into
// place. The manifest rename is the single publish point; a crash at any
// earlier step leaves the previous manifest fully intact and at worst
// some orphaned files that the next writer cleans up.
//
// # Incremental Indexing
//
// The incremental package keeps a segmented index in sync with one or
// more directory trees, by full-scan diffing, by filesystem notification
// (fsnotify), or both. Bursts of changes are debounced into single
// commits.
package houndgo
