package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs the watcher against root and waits briefly for the
// initial directory registration to settle.
func startWatcher(t *testing.T, root string) *FSWatcher {
	t.Helper()
	w, err := New(Options{DebounceWindow: 30 * time.Millisecond}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, root) }()
	time.Sleep(100 * time.Millisecond)
	return w
}

func collectEvents(t *testing.T, w *FSWatcher, timeout time.Duration) []FileEvent {
	t.Helper()
	var all []FileEvent
	deadline := time.After(timeout)
	for {
		select {
		case batch := <-w.Events():
			all = append(all, batch...)
		case <-deadline:
			return all
		}
	}
}

func findEvent(events []FileEvent, path string) (FileEvent, bool) {
	for _, e := range events {
		if e.Path == path {
			return e, true
		}
	}
	return FileEvent{}, false
}

func TestFSWatcher_DetectsCreateAndModify(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	path := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	events := collectEvents(t, w, 400*time.Millisecond)
	ev, ok := findEvent(events, "main.go")
	require.True(t, ok, "expected an event for main.go, got %v", events)
	assert.Contains(t, []Operation{OpCreate, OpModify}, ev.Operation)
}

func TestFSWatcher_DetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package gone\n"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Remove(path))

	events := collectEvents(t, w, 400*time.Millisecond)
	ev, ok := findEvent(events, "gone.go")
	require.True(t, ok)
	assert.Equal(t, OpDelete, ev.Operation)
}

func TestFSWatcher_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "util.go"), []byte("package pkg\n"), 0o644))

	events := collectEvents(t, w, 500*time.Millisecond)
	_, ok := findEvent(events, filepath.Join("pkg", "util.go"))
	assert.True(t, ok, "expected an event from the new subdirectory, got %v", events)
}

func TestFSWatcher_IgnoresDataDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".symdex", "db"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(
		filepath.Join(root, ".symdex", "db", "symbols.db"), []byte("x"), 0o644))

	events := collectEvents(t, w, 300*time.Millisecond)
	for _, e := range events {
		assert.NotContains(t, e.Path, ".symdex")
	}
}

func TestFSWatcher_GitignoreChangeEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("dist/\n"), 0o644))

	events := collectEvents(t, w, 400*time.Millisecond)
	ev, ok := findEvent(events, ".gitignore")
	require.True(t, ok)
	assert.Equal(t, OpGitignoreChange, ev.Operation)
}

func TestFSWatcher_ConfigChangeEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".symdex.yaml"), []byte("index:\n"), 0o644))

	events := collectEvents(t, w, 400*time.Millisecond)
	ev, ok := findEvent(events, ".symdex.yaml")
	require.True(t, ok)
	assert.Equal(t, OpConfigChange, ev.Operation)
}

func TestFSWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
