package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorpus(t *testing.T) {
	rng := NewRNG(4711)

	docs := rng.Corpus(8, 64)

	assert.Equal(t, 8, len(docs))
	for name, content := range docs {
		assert.NotEmpty(t, name)
		assert.Equal(t, 64, len(content))
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	c1 := rng.Content(32)

	rng.Reset()
	c2 := rng.Content(32)

	assert.Equal(t, c1, c2)
}

func TestExactMatchCount(t *testing.T) {
	content := []byte("hello world")

	assert.Equal(t, 3, ExactMatchCount("hello", content))
	assert.Equal(t, 0, ExactMatchCount("he", content))
	assert.Equal(t, 0, ExactMatchCount("xyz", content))
	assert.Equal(t, 2, ExactMatchCount("o wo", content))
}
