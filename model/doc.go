// Package model defines core types used throughout houndgo.
//
// # Identity Types
//
//   - FileID: Globally unique, auto-incrementing document identifier (uint32)
//   - SegmentID: Sequence number of a committed segment (uint64)
//   - LocalID: Segment-local document identifier (uint32)
//   - Location: Physical address (SegmentID, LocalID)
//
// # Data Types
//
//   - Trigram: A 3-byte index key packed into a uint32
//   - Document: A committed document's identity and size
//   - SearchResult: A ranked match with its resolved display name
package model
