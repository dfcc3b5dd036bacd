package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

const contentAlphabet = "abcdefghijklmnopqrstuvwxyz \n\t(){}._"

// Content returns n pseudo-random bytes drawn from a source-code-like
// alphabet, so generated files share trigrams the way real text does.
func (r *RNG) Content(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = contentAlphabet[r.rand.Intn(len(contentAlphabet))]
	}
	return b
}

// FileName returns a unique-ish pseudo-random file name.
func (r *RNG) FileName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("src/file_%08x.go", r.rand.Uint32())
}

// Corpus generates count (name, content) pairs with contents of the
// given size. Names are distinct.
func (r *RNG) Corpus(count, size int) map[string][]byte {
	docs := make(map[string][]byte, count)
	for len(docs) < count {
		docs[r.FileName()] = r.Content(size)
	}
	return docs
}

// ExactMatchCount returns the number of distinct trigrams of query that
// occur anywhere in content, computed by brute force. It is the ground
// truth for ranking scores.
func ExactMatchCount(query string, content []byte) int {
	if len(query) < 3 {
		return 0
	}
	seen := make(map[string]struct{})
	for i := 0; i+3 <= len(query); i++ {
		seen[query[i:i+3]] = struct{}{}
	}
	count := 0
	for tri := range seen {
		if containsBytes(content, tri) {
			count++
		}
	}
	return count
}

func containsBytes(content []byte, sub string) bool {
	for i := 0; i+len(sub) <= len(content); i++ {
		if string(content[i:i+len(sub)]) == sub {
			return true
		}
	}
	return false
}
