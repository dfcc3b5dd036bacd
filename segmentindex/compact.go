package segmentindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/houndgo/manifest"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/segment"
)

// ErrPendingChanges is returned when compaction is requested while staged
// changes await commit.
var ErrPendingChanges = errors.New("pending changes must be committed before compaction")

// Compact merges all committed segments into one fresh segment, dropping
// tombstoned documents, and publishes a manifest that references only the
// merged segment with an empty tombstone set. Global ids are preserved.
//
// Compaction is a batch maintenance operation, deliberately off the hot
// commit path. Readers opened against the prior manifest keep their loaded
// snapshot; retired segment files are removed only after the new manifest
// is published.
func (w *Writer) Compact() error {
	if w.closed {
		return ErrClosed
	}
	if w.HasPending() {
		return ErrPendingChanges
	}
	if len(w.m.Segments) <= 1 && w.tombs.IsEmpty() {
		return nil
	}

	segs, err := w.st.OpenSegments(context.Background(), w.m)
	if err != nil {
		return err
	}

	next := w.m.Clone()
	b := segment.NewBuilder(next.NextSeq)
	for _, seg := range segs {
		sets := seg.TrigramSets()
		var addErr error
		seg.Iterate(func(local model.LocalID, d segment.Doc) bool {
			if w.tombs.Contains(uint32(d.GlobalID)) {
				return true
			}
			if err := b.AddEntry(d.GlobalID, d.Name, d.Length, sets[local]); err != nil {
				addErr = err
				return false
			}
			return true
		})
		if addErr != nil {
			return addErr
		}
	}

	retired := next.Segments
	if b.DocCount() > 0 {
		info, err := w.st.WriteSegment(b)
		if err != nil {
			return fmt.Errorf("write merged segment: %w", err)
		}
		next.Segments = []manifest.SegmentInfo{info}
		next.NextSeq++
	} else {
		next.Segments = nil
	}
	next.Tombstones = nil

	if err := w.st.PublishManifest(next); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}

	w.m = next
	w.tombs.Clear()
	for _, info := range retired {
		if err := w.st.RemoveSegment(info); err != nil {
			w.logger.Warn("failed to remove retired segment", "seq", info.Seq, "error", err)
		}
	}
	w.logger.Info("compaction completed",
		"merged", len(retired),
		"live_docs", b.DocCount(),
	)
	return nil
}
