package houndgo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	houndgo "github.com/hupe1980/houndgo"
	"github.com/hupe1980/houndgo/searcher"
)

func TestIndexDirValidation(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir())
	require.NoError(t, err)

	dir, err := m.IndexDir("code")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Root(), "code"), dir)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := m.IndexDir(name)
		assert.ErrorIs(t, err, houndgo.ErrInvalidName, "name %q", name)
	}
}

func TestManagerEndToEnd(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir())
	require.NoError(t, err)

	w, err := m.OpenWriter("code")
	require.NoError(t, err)
	require.NoError(t, w.AddFile("main.go", []byte("package main\n\nfunc main() {}\n")))
	require.NoError(t, w.AddFile("util.go", []byte("package main\n\nfunc helper() {}\n")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	names, err := m.ListIndexes()
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, names)

	r, err := m.OpenReader("code")
	require.NoError(t, err)
	defer r.Close()

	s := searcher.New(r)
	results, err := s.Search("func main", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "main.go", results[0].Name)
}

func TestManagerOpenReaderBeforeCommit(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.OpenReader("empty")
	assert.ErrorIs(t, err, houndgo.ErrNoManifest)
}

func TestManagerWriterConflict(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir())
	require.NoError(t, err)

	w, err := m.OpenWriter("code")
	require.NoError(t, err)
	defer w.Close()

	_, err = m.OpenWriter("code")
	assert.ErrorIs(t, err, houndgo.ErrWriterConflict)
}

func TestRemoveIndex(t *testing.T) {
	m, err := houndgo.NewManager(t.TempDir())
	require.NoError(t, err)

	w, err := m.OpenWriter("doomed")
	require.NoError(t, err)
	require.NoError(t, w.AddFile("a.go", []byte("package a")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	require.NoError(t, m.RemoveIndex("doomed"))

	dir, err := m.IndexDir("doomed")
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestNewIncrementalIndexer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	ii, err := houndgo.NewIncrementalIndexer(filepath.Join(t.TempDir(), "index"),
		houndgo.WithBatchWindow(time.Millisecond),
	)
	require.NoError(t, err)
	defer ii.Close()

	require.NoError(t, ii.AddDirectory(root))

	n, err := ii.Scan()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool {
		if err := ii.Tick(); err != nil {
			return false
		}
		return ii.Writer().DocumentCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNewIncrementalIndexerAutoRescan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main"), 0o644))

	ii, err := houndgo.NewIncrementalIndexer(filepath.Join(t.TempDir(), "index"),
		houndgo.WithBatchWindow(time.Millisecond),
		houndgo.WithAutoRescan(rate.Inf),
	)
	require.NoError(t, err)
	defer ii.Close()

	require.NoError(t, ii.AddDirectory(root))

	// No watcher: PollEvents discovers the file via an automatic scan.
	drained, err := ii.PollEvents()
	require.NoError(t, err)
	assert.True(t, drained)

	require.Eventually(t, func() bool {
		if err := ii.Tick(); err != nil {
			return false
		}
		return ii.Writer().DocumentCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, houndgo.Version)
}
