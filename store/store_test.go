package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/houndgo/manifest"
	"github.com/hupe1980/houndgo/segment"
)

func TestWriterLockExclusion(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.AcquireWriterLock())

	second, err := Open(dir)
	require.NoError(t, err)
	assert.ErrorIs(t, second.AcquireWriterLock(), ErrWriterConflict)

	require.NoError(t, first.ReleaseWriterLock())
	assert.NoError(t, second.AcquireWriterLock())
	require.NoError(t, second.ReleaseWriterLock())
}

func TestReleaseWithoutAcquire(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, s.ReleaseWriterLock())
}

func TestWriteAndOpenSegments(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	b := segment.NewBuilder(1)
	require.NoError(t, b.Add(1, "a.go", []byte("package main")))
	info, err := s.WriteSegment(b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Seq)
	assert.EqualValues(t, 1, info.DocCount)
	assert.Equal(t, "segment_1.hseg", info.Path)

	m := manifest.New()
	m.Segments = []manifest.SegmentInfo{info}
	require.NoError(t, s.PublishManifest(m))

	loaded, err := s.LoadManifest()
	require.NoError(t, err)

	segs, err := s.OpenSegments(context.Background(), loaded)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 1, segs[0].DocCount())
}

func TestOpenSegmentsMissingFile(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	m := manifest.New()
	m.Segments = []manifest.SegmentInfo{
		{Seq: 1, DocCount: 1, Path: "segment_1.hseg"},
	}

	_, err = s.OpenSegments(context.Background(), m)
	assert.ErrorIs(t, err, ErrMissingSegment)
}

func TestOpenSegmentsManifestMismatch(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	b := segment.NewBuilder(1)
	require.NoError(t, b.Add(1, "a.go", []byte("package main")))
	info, err := s.WriteSegment(b)
	require.NoError(t, err)

	// Manifest claims a different doc count than the segment header.
	info.DocCount = 42
	m := manifest.New()
	m.Segments = []manifest.SegmentInfo{info}

	_, err = s.OpenSegments(context.Background(), m)
	assert.ErrorIs(t, err, ErrMissingSegment)
}

func TestLoadManifestMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadManifest()
	assert.ErrorIs(t, err, manifest.ErrNoManifest)
}

func TestCleanupTemp(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	orphan := filepath.Join(dir, "segment_9.hseg.tmp")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o644))
	keep := filepath.Join(dir, "segment_1.hseg")
	require.NoError(t, os.WriteFile(keep, []byte("committed"), 0o644))

	s.CleanupTemp()

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}

func TestRemoveSegment(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	b := segment.NewBuilder(1)
	info, err := s.WriteSegment(b)
	require.NoError(t, err)

	require.NoError(t, s.RemoveSegment(info))
	_, err = os.Stat(s.SegmentPath(info))
	assert.True(t, os.IsNotExist(err))
}
