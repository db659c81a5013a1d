package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex-dev/symdex/internal/config"
	symerrors "github.com/symdex-dev/symdex/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Index.Workers = 2

	e, err := New(context.Background(), root, cfg, slog.Default(), Options{Create: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_UnindexedWorkspaceNotInitialized(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig()

	_, err := New(context.Background(), root, cfg, slog.Default(), Options{})
	require.Error(t, err)
	assert.True(t, symerrors.IsNotInitialized(err))
}

func TestEngine_IndexAndFindByName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Greet(name string) string { return name }\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	counts, err := e.Index(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.New)

	matches, err := e.FindSymbols(ctx, "Greet", 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Greet", matches[0].Symbol.Name)
	assert.Equal(t, SourceName, matches[0].Source)
}

func TestEngine_SecondPassUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, root, "b.go", "package a\n\nfunc B() {}\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	counts, err := e.Index(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, counts.New)
	assert.Zero(t, counts.Modified)
	assert.Equal(t, 2, counts.Unchanged)
}

func TestEngine_SemanticSearchFindsIndexedSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config.go",
		"package cfg\n\n// ParseConfigFile reads and validates the config file.\nfunc ParseConfigFile(path string) error { return nil }\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	matches, strategy, err := e.SemanticSearch(ctx, "parse config file", 5, 0.2)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.NotEmpty(t, strategy)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Symbol.Name
	}
	assert.Contains(t, names, "ParseConfigFile")
}

func TestEngine_SemanticSearchEmptyIndexDegrades(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root)

	matches, _, err := e.SemanticSearch(context.Background(), "anything", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEngine_FindReferencesKnownDefsExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "svc.go",
		"package svc\n\nfunc HandleRequest() {}\n\nfunc handleRequestLogged() {}\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	refs, err := e.FindReferences(ctx, "HandleRequest")
	require.NoError(t, err)
	require.NotEmpty(t, refs.Definitions)

	defIDs := make(map[string]struct{})
	for _, def := range refs.Definitions {
		defIDs[def.ID] = struct{}{}
	}
	for _, m := range refs.Semantic {
		_, dup := defIDs[m.Symbol.ID]
		assert.False(t, dup, "semantic results must not repeat definitions")
	}
	assert.Len(t, refs.Inferred, len(refs.Semantic))
}

func TestEngine_ReferenceWorkspaceIsolation(t *testing.T) {
	primaryRoot := t.TempDir()
	writeFile(t, primaryRoot, "main.go", "package main\n\nfunc PrimaryOnly() {}\n")
	refRoot := t.TempDir()
	writeFile(t, refRoot, "lib.go", "package lib\n\nfunc RefOnly() {}\n")

	e := newTestEngine(t, primaryRoot)
	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	ws, counts, err := e.IndexReference(ctx, refRoot, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.New)
	require.NotEqual(t, e.Workspace().ID, ws.ID)

	// The reference symbol is visible only through its workspace.
	matches, err := e.FindSymbols(ctx, "RefOnly", 10, "")
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = e.FindSymbols(ctx, "RefOnly", 10, ws.ID)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "RefOnly", matches[0].Symbol.Name)

	// And the primary symbol does not leak into the reference store.
	matches, err = e.FindSymbols(ctx, "PrimaryOnly", 10, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEngine_IndexReferenceOfPrimaryRootRoutesToPrimary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Only() {}\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	ws, counts, err := e.IndexReference(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, e.Workspace().ID, ws.ID)
	assert.Equal(t, 1, counts.Unchanged)
}

func TestEngine_UnknownReferenceWorkspaceRefused(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root)

	_, err := e.FindSymbols(context.Background(), "x", 10, "nope_00000000")
	require.Error(t, err)
	assert.True(t, symerrors.IsNotInitialized(err))
}

func TestEngine_Status(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc One() {}\n\nfunc Two() {}\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.Workspace().ID, status.WorkspaceID)
	assert.Equal(t, 1, status.Files)
	assert.GreaterOrEqual(t, status.Symbols, 2)
	assert.NotEmpty(t, status.EmbeddingModel)
	assert.Equal(t, config.TextBackendFTS5, status.TextBackend)
	assert.Greater(t, status.Vectors.Entries, 0)
	assert.True(t, status.Healthy)
}

func TestEngine_DeletedFileLeavesNoTrace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package p\n\nfunc Keep() {}\n")
	writeFile(t, root, "gone.go", "package p\n\nfunc Gone() {}\n")
	e := newTestEngine(t, root)

	ctx := context.Background()
	_, err := e.Index(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))
	counts, err := e.Index(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Removed)

	matches, err := e.FindSymbols(ctx, "Gone", 10, "")
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The vector store follows the symbol store.
	semMatches, _, err := e.SemanticSearch(ctx, "Gone", 5, 0.1)
	require.NoError(t, err)
	for _, m := range semMatches {
		assert.NotEqual(t, "Gone", m.Symbol.Name)
	}
}

func TestEngine_ReopenKeepsIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Persisted() {}\n")

	cfg := config.NewConfig()
	cfg.Index.Workers = 2
	ctx := context.Background()

	e, err := New(ctx, root, cfg, slog.Default(), Options{Create: true})
	require.NoError(t, err)
	_, err = e.Index(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Reopen without Create: the store exists now.
	e2, err := New(ctx, root, cfg, slog.Default(), Options{})
	require.NoError(t, err)
	defer func() { _ = e2.Close() }()

	matches, err := e2.FindSymbols(ctx, "Persisted", 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
}
