package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: a\n"), 0o644))

	w, err := newScenarioWatcher([]string{dir}, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan []string, 1)
	go w.Run(ctx, changes)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("name: a\n# edit\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	select {
	case changed := <-changes:
		assert.Equal(t, []string{file}, changed)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	select {
	case changed := <-changes:
		t.Fatalf("expected a single debounced notification, got %v", changed)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScenarioWatcherWatchesSingleFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "rehearse.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("{}\n"), 0o644))

	w, err := newScenarioWatcher([]string{cfg}, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, w.files[filepath.Clean(cfg)])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan []string, 1)
	go w.Run(ctx, changes)

	require.NoError(t, os.WriteFile(cfg, []byte("variables: {a: b}\n"), 0o644))

	select {
	case changed := <-changes:
		assert.Contains(t, changed, cfg)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestScenarioWatcherMissingPath(t *testing.T) {
	_, err := newScenarioWatcher([]string{filepath.Join(t.TempDir(), "missing")}, 0)
	assert.Error(t, err)
}

func TestAppendUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, appendUnique(appendUnique([]string{"a"}, "b"), "a"))
}
