package segmentindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/segment"
	"github.com/hupe1980/houndgo/store"
)

// defaultLookupCacheSize bounds the merged posting-list cache.
const defaultLookupCacheSize = 4096

// Reader is a read-only snapshot of the committed index, resolved once at
// open time. Later commits are invisible until the index is reopened;
// refreshing in place is an explicit non-goal. A Reader is safe for
// concurrent use.
type Reader struct {
	segs  []*segment.Segment
	tombs *roaring.Bitmap
	locs  map[model.FileID]model.Location
	bySeq map[model.SegmentID]*segment.Segment

	cache *lru.Cache[model.Trigram, []model.FileID]
}

// ReaderOption configures OpenReader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	storeOpts []store.Option
	logger    *slog.Logger
	cacheSize int
}

// WithReaderStoreOptions passes options through to the underlying store.
func WithReaderStoreOptions(opts ...store.Option) ReaderOption {
	return func(c *readerConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithReaderLogger sets the structured logger.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(c *readerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLookupCacheSize overrides the merged posting-list cache size.
func WithLookupCacheSize(n int) ReaderOption {
	return func(c *readerConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// OpenReader opens a snapshot of the committed index state. Structural
// failures (missing manifest, bad segment header, manifest referencing a
// missing segment) fail the open outright; no partial reader is returned.
func OpenReader(dir string, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{
		logger:    slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		cacheSize: defaultLookupCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(dir, append(cfg.storeOpts, store.WithLogger(cfg.logger))...)
	if err != nil {
		return nil, err
	}
	m, err := st.LoadManifest()
	if err != nil {
		return nil, err
	}
	tombs, err := m.TombstoneSet()
	if err != nil {
		return nil, err
	}
	segs, err := st.OpenSegments(context.Background(), m)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[model.Trigram, []model.FileID](cfg.cacheSize)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		segs:  segs,
		tombs: tombs,
		locs:  make(map[model.FileID]model.Location),
		bySeq: make(map[model.SegmentID]*segment.Segment, len(segs)),
		cache: cache,
	}
	for _, seg := range segs {
		r.bySeq[seg.Seq()] = seg
		seg.Iterate(func(local model.LocalID, d segment.Doc) bool {
			if !tombs.Contains(uint32(d.GlobalID)) {
				r.locs[d.GlobalID] = model.Location{SegmentID: seg.Seq(), LocalID: local}
			}
			return true
		})
	}

	cfg.logger.Debug("reader opened",
		"segments", len(segs),
		"live_docs", len(r.locs),
		"tombstones", tombs.GetCardinality(),
	)
	return r, nil
}

// DocumentCount returns the number of live documents in the snapshot.
func (r *Reader) DocumentCount() int { return len(r.locs) }

// SegmentCount returns the number of loaded segments.
func (r *Reader) SegmentCount() int { return len(r.segs) }

// Location resolves a global id to its segment and local id. Tombstoned
// and unknown ids miss.
func (r *Reader) Location(id model.FileID) (model.Location, bool) {
	loc, ok := r.locs[id]
	return loc, ok
}

// Name resolves a global id to its stored name. Tombstoned and unknown
// ids return ErrNotFound.
func (r *Reader) Name(id model.FileID) (string, error) {
	loc, ok := r.locs[id]
	if !ok {
		return "", fmt.Errorf("file id %d: %w", id, ErrNotFound)
	}
	d, ok := r.bySeq[loc.SegmentID].Doc(loc.LocalID)
	if !ok {
		return "", fmt.Errorf("file id %d: %w", id, ErrNotFound)
	}
	return d.Name, nil
}

// Document returns the full document record for a live global id.
func (r *Reader) Document(id model.FileID) (model.Document, error) {
	loc, ok := r.locs[id]
	if !ok {
		return model.Document{}, fmt.Errorf("file id %d: %w", id, ErrNotFound)
	}
	d, ok := r.bySeq[loc.SegmentID].Doc(loc.LocalID)
	if !ok {
		return model.Document{}, fmt.Errorf("file id %d: %w", id, ErrNotFound)
	}
	return model.Document{
		GlobalID: id,
		Name:     d.Name,
		Length:   d.Length,
		Loc:      loc,
	}, nil
}

// LookupTrigram merges the per-segment posting lists for the trigram,
// translates local ids to global ids, filters out tombstoned ids and
// returns a sorted, duplicate-free list. The returned slice is shared via
// the lookup cache and must not be modified.
func (r *Reader) LookupTrigram(b0, b1, b2 byte) []model.FileID {
	t := model.NewTrigram(b0, b1, b2)
	if ids, ok := r.cache.Get(t); ok {
		return ids
	}

	var ids []model.FileID
	for _, seg := range r.segs {
		for _, local := range seg.Lookup(t) {
			gid, ok := seg.GlobalID(local)
			if !ok || r.tombs.Contains(uint32(gid)) {
				continue
			}
			ids = append(ids, gid)
		}
	}
	// Global ids are unique across segments, so sorting suffices for a
	// duplicate-free merge.
	slices.Sort(ids)

	r.cache.Add(t, ids)
	return ids
}

// Close releases the snapshot. The reader must not be used afterwards
// and any searcher borrowing it must be dropped first.
func (r *Reader) Close() error {
	r.cache.Purge()
	return nil
}
