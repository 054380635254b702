package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(t *testing.T, dir string) (*poller, *[]FileEvent) {
	t.Helper()
	var got []FileEvent
	accept := func(name string) bool { return !strings.HasPrefix(name, ".") }
	p := newPoller(dir, time.Second, accept, func(e FileEvent) { got = append(got, e) })
	require.NoError(t, p.snapshot())
	return p, &got
}

func TestPoller_BaselineEmitsNothing(t *testing.T) {
	// Given: a directory with a document
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case.pdf"), []byte("x"), 0o644))

	// When: the poller snapshots and detects with no changes
	p, got := newTestPoller(t, dir)
	require.NoError(t, p.detect())

	// Then: no events
	assert.Empty(t, *got)
}

func TestPoller_DetectsCreateModifyDelete(t *testing.T) {
	// Given: a directory with two documents
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.pdf")
	gone := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(keep, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(gone, []byte("bye"), 0o644))
	p, got := newTestPoller(t, dir)

	// When: one is modified, one removed and one added
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(keep, []byte("version two"), 0o644))
	require.NoError(t, os.Chtimes(keep, later, later))
	require.NoError(t, os.Remove(gone))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("n"), 0o644))
	require.NoError(t, p.detect())

	// Then: each change is reported once
	ops := make(map[string]Operation)
	for _, e := range *got {
		ops[e.Path] = e.Operation
	}
	assert.Equal(t, map[string]Operation{
		"keep.pdf": OpModify,
		"gone.txt": OpDelete,
		"new.pdf":  OpCreate,
	}, ops)

	// And: a second pass is quiet
	*got = nil
	require.NoError(t, p.detect())
	assert.Empty(t, *got)
}

func TestPoller_IgnoresHiddenFilesAndSubdirectories(t *testing.T) {
	// Given: a polled directory
	dir := t.TempDir()
	p, got := newTestPoller(t, dir)

	// When: a hidden file and a nested document appear
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".curia.lock"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deep.pdf"), []byte("x"), 0o644))
	require.NoError(t, p.detect())

	// Then: nothing is reported
	assert.Empty(t, *got)
}

func TestPoller_MissingDirectory(t *testing.T) {
	// Given: a poller on a directory that does not exist
	p := newPoller(filepath.Join(t.TempDir(), "missing"), time.Second,
		func(string) bool { return true }, func(FileEvent) {})

	// Then: snapshot fails
	assert.Error(t, p.snapshot())
}
