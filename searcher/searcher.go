// Package searcher ranks documents by trigram overlap with a query.
//
// The searcher is read-only: it works against the already-loaded state of
// any index reader and has no side effects. Matching is trigram-based, so
// a query shorter than three bytes has an empty trigram set and yields an
// empty result list; this is a documented limitation, not an error.
package searcher

import (
	"slices"

	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/trigram"
)

// Index is the read-side surface the searcher needs. Both the flat index
// reader and the segment index reader implement it.
type Index interface {
	// LookupTrigram returns the sorted file ids of live documents
	// containing the trigram.
	LookupTrigram(b0, b1, b2 byte) []model.FileID

	// Name resolves a file id to its display name.
	Name(id model.FileID) (string, error)
}

// Searcher executes ranked substring-ish queries against an Index.
//
// A Searcher borrows its Index: the index must stay open for as long as
// the searcher is in use.
type Searcher struct {
	idx Index
}

// New creates a searcher over the given index.
func New(idx Index) *Searcher {
	return &Searcher{idx: idx}
}

// Search returns up to maxResults documents ranked by the number of
// distinct query trigrams they contain, ties broken by ascending file id
// so ordering is deterministic across runs. maxResults of zero yields an
// empty list, not an error.
func (s *Searcher) Search(query string, maxResults int) ([]model.SearchResult, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	set := trigram.ExtractString(query)
	if len(set) == 0 {
		return nil, nil
	}

	counts := make(map[model.FileID]uint32)
	for _, t := range set {
		b0, b1, b2 := t.Bytes()
		for _, id := range s.idx.LookupTrigram(b0, b1, b2) {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	results := make([]model.SearchResult, 0, len(counts))
	for id, n := range counts {
		results = append(results, model.SearchResult{FileID: id, MatchCount: n})
	}
	slices.SortFunc(results, func(a, b model.SearchResult) int {
		if a.MatchCount != b.MatchCount {
			if a.MatchCount > b.MatchCount {
				return -1
			}
			return 1
		}
		if a.FileID < b.FileID {
			return -1
		}
		if a.FileID > b.FileID {
			return 1
		}
		return 0
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	for i := range results {
		name, err := s.idx.Name(results[i].FileID)
		if err != nil {
			return nil, err
		}
		results[i].Name = name
	}
	return results, nil
}
