package flatindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/houndgo/internal/fs"
	"github.com/hupe1980/houndgo/model"
	"github.com/hupe1980/houndgo/persistence"
)

func TestWriteOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.idx")

	w := NewWriter(path)
	require.NoError(t, w.AddFile("a.go", []byte("package main")))
	require.NoError(t, w.AddFile("b.go", []byte("package lib")))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, 2, r.FileCount())
	assert.Greater(t, r.TrigramCount(), 0)

	name, err := r.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "a.go", name)

	length, err := r.Length(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(len("package lib")), length)

	// "pac" occurs in both files.
	ids := r.LookupTrigram('p', 'a', 'c')
	assert.Equal(t, []model.FileID{0, 1}, ids)

	// "lib" occurs only in b.go.
	ids = r.LookupTrigram('l', 'i', 'b')
	assert.Equal(t, []model.FileID{1}, ids)

	// Absent trigram.
	assert.Empty(t, r.LookupTrigram('z', 'z', 'q'))
}

func TestWriterLastAddWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.idx")

	w := NewWriter(path)
	require.NoError(t, w.AddFile("a.go", []byte("first")))
	require.NoError(t, w.AddFile("a.go", []byte("second version")))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, 1, r.FileCount())
	length, err := r.Length(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(len("second version")), length)

	assert.NotEmpty(t, r.LookupTrigram('s', 'e', 'c'))
	assert.Empty(t, r.LookupTrigram('f', 'i', 'r'))
}

func TestWriterErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.idx")

	w := NewWriter(path)
	assert.ErrorIs(t, w.AddFile("", []byte("x")), ErrEmptyName)

	require.NoError(t, w.Finish())
	assert.ErrorIs(t, w.AddFile("late.go", []byte("x")), ErrFinished)
	assert.ErrorIs(t, w.Finish(), ErrFinished)
}

func TestEmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.idx")

	w := NewWriter(path)
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, 0, r.FileCount())
	assert.Equal(t, 0, r.TrigramCount())
	assert.Empty(t, r.LookupTrigram('a', 'b', 'c'))

	_, err = r.Name(0)
	assert.ErrorIs(t, err, ErrIDOutOfRange)
}

func TestFileShorterThanTrigram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.idx")

	w := NewWriter(path)
	require.NoError(t, w.AddFile("tiny.txt", []byte("ab")))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)

	// Listed but unreachable through trigram lookups.
	assert.Equal(t, 1, r.FileCount())
	assert.Equal(t, 0, r.TrigramCount())
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.idx")

	w := NewWriter(path)
	require.NoError(t, w.AddFile("a.go", []byte("package main")))
	require.NoError(t, w.Finish())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	assert.ErrorIs(t, err, persistence.ErrChecksum)
}

func TestFinishFailureLeavesNoIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.idx")

	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(".tmp", fs.Fault{
		FailOnSync: true,
		Err:        errors.New("fake disk failure"),
	})

	w := NewWriter(path, WithFileSystem(faulty))
	require.NoError(t, w.AddFile("a.go", []byte("package main")))
	require.Error(t, w.Finish())

	_, err := Open(path)
	assert.Error(t, err)
}
