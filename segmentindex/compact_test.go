package segmentindex_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/houndgo/segmentindex"
)

func segmentFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".hseg") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestCompactMergesSegments(t *testing.T) {
	dir := t.TempDir()

	w, err := segmentindex.OpenWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "needle alpha"})
	commit(t, w, map[string]string{"b.go": "needle beta"})
	commit(t, w, map[string]string{"c.go": "needle gamma"})
	require.NoError(t, w.DeleteFile("b.go"))
	require.NoError(t, w.Commit())

	beforeIDs := map[string]struct{}{}
	rBefore, err := segmentindex.OpenReader(dir)
	require.NoError(t, err)
	for _, id := range rBefore.LookupTrigram('n', 'e', 'e') {
		name, err := rBefore.Name(id)
		require.NoError(t, err)
		beforeIDs[name] = struct{}{}
	}
	require.NoError(t, rBefore.Close())

	require.NoError(t, w.Compact())

	stats := w.Stats()
	assert.Equal(t, 1, stats.SegmentCount)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 0, stats.TombstoneCount)

	// Retired segment files are gone.
	assert.Len(t, segmentFiles(t, dir), 1)

	// Same live documents, same lookup results.
	r, err := segmentindex.OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.DocumentCount())
	for _, id := range r.LookupTrigram('n', 'e', 'e') {
		name, err := r.Name(id)
		require.NoError(t, err)
		assert.Contains(t, beforeIDs, name)
		assert.NotEqual(t, "b.go", name)
	}
}

func TestCompactPreservesGlobalIDs(t *testing.T) {
	dir := t.TempDir()

	w, err := segmentindex.OpenWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "alpha"})
	commit(t, w, map[string]string{"b.go": "beta"})

	rBefore, err := segmentindex.OpenReader(dir)
	require.NoError(t, err)
	idsBefore := rBefore.LookupTrigram('a', 'l', 'p')
	require.NoError(t, rBefore.Close())

	require.NoError(t, w.Compact())

	rAfter, err := segmentindex.OpenReader(dir)
	require.NoError(t, err)
	defer rAfter.Close()
	assert.Equal(t, idsBefore, rAfter.LookupTrigram('a', 'l', 'p'))
}

func TestCompactSingleSegmentNoTombstonesIsNoOp(t *testing.T) {
	dir := t.TempDir()

	w, err := segmentindex.OpenWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "alpha"})

	before := segmentFiles(t, dir)
	require.NoError(t, w.Compact())
	assert.Equal(t, before, segmentFiles(t, dir))
}

func TestCompactRejectsPendingChanges(t *testing.T) {
	w, err := segmentindex.OpenWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "alpha"})

	require.NoError(t, w.AddFile("b.go", []byte("staged")))
	assert.ErrorIs(t, w.Compact(), segmentindex.ErrPendingChanges)
}

func TestCompactAllDeleted(t *testing.T) {
	dir := t.TempDir()

	w, err := segmentindex.OpenWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "alpha", "b.go": "beta"})
	require.NoError(t, w.DeleteFile("a.go"))
	require.NoError(t, w.DeleteFile("b.go"))
	require.NoError(t, w.Commit())

	require.NoError(t, w.Compact())

	stats := w.Stats()
	assert.Equal(t, 0, stats.SegmentCount)
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Empty(t, segmentFiles(t, dir))

	r, err := segmentindex.OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 0, r.DocumentCount())
}

func TestCompactThenContinueCommitting(t *testing.T) {
	dir := t.TempDir()

	w, err := segmentindex.OpenWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	commit(t, w, map[string]string{"a.go": "alpha"})
	commit(t, w, map[string]string{"b.go": "beta"})
	require.NoError(t, w.Compact())

	// Sequence numbers keep increasing past the merged segment.
	commit(t, w, map[string]string{"c.go": "gamma"})
	assert.Equal(t, 2, w.SegmentCount())

	files := segmentFiles(t, dir)
	assert.Len(t, files, 2)
	assert.NotContains(t, files, "segment_1.hseg")
}
