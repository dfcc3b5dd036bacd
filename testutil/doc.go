// Package testutil provides testing utilities for houndgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random file names and contents,
// and for computing exact trigram match counts as ground truth.
//
// # Random Corpus Generation
//
//	rng := testutil.NewRNG(seed)
//	name := rng.FileName()
//	content := rng.Content(256)
//
// # Exact Match Counting (Ground Truth)
//
//	count := testutil.ExactMatchCount(query, content)
package testutil
