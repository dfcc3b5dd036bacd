// Package trigram extracts the 3-byte index keys from raw document content.
//
// Extraction is a pure function over bytes: a sliding window with no
// skipping, no case folding and no encoding assumption. Content shorter
// than three bytes yields an empty set; such documents are still indexable,
// they simply carry no postings.
package trigram

import (
	"slices"

	"github.com/hupe1980/houndgo/model"
)

// Extract returns the distinct trigrams of content, sorted ascending by
// packed key. The result is duplicate-free.
func Extract(content []byte) []model.Trigram {
	if len(content) < 3 {
		return nil
	}

	seen := make(map[model.Trigram]struct{}, len(content))
	for i := 0; i+3 <= len(content); i++ {
		seen[model.NewTrigram(content[i], content[i+1], content[i+2])] = struct{}{}
	}

	out := make([]model.Trigram, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ExtractString is a convenience wrapper for query strings.
func ExtractString(s string) []model.Trigram {
	return Extract([]byte(s))
}
