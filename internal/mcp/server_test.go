package mcp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex-dev/symdex/internal/async"
	"github.com/symdex-dev/symdex/internal/config"
	"github.com/symdex-dev/symdex/internal/engine"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeSource(t, root, "main.go",
		"package main\n\n// Greet returns a greeting for name.\nfunc Greet(name string) string { return name }\n")

	cfg := config.NewConfig()
	cfg.Index.Workers = 2
	eng, err := engine.New(context.Background(), root, cfg, slog.Default(), engine.Options{Create: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	s, err := NewServer(eng, slog.Default())
	require.NoError(t, err)
	return s, root
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, slog.Default())
	require.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	s, _ := newTestServer(t)
	name, ver := s.Info()
	assert.Equal(t, "symdex", name)
	assert.NotEmpty(t, ver)
	assert.NotNil(t, s.MCPServer())
}

func TestServer_ListTools(t *testing.T) {
	s, _ := newTestServer(t)
	tools := s.ListTools()
	require.Len(t, tools, 4)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.ElementsMatch(t, names,
		[]string{"index_workspace", "find_symbols", "semantic_search", "workspace_status"})
}

func TestServer_IndexWorkspacePrimary(t *testing.T) {
	s, _ := newTestServer(t)

	out, err := s.IndexWorkspace(context.Background(), IndexWorkspaceInput{})
	require.NoError(t, err)
	assert.Equal(t, "primary", out.Kind)
	assert.Equal(t, 1, out.New)
	assert.NotEmpty(t, out.WorkspaceID)
}

func TestServer_IndexWorkspaceReference(t *testing.T) {
	s, _ := newTestServer(t)
	refRoot := t.TempDir()
	writeSource(t, refRoot, "lib.go", "package lib\n\nfunc Helper() {}\n")

	out, err := s.IndexWorkspace(context.Background(), IndexWorkspaceInput{Path: refRoot})
	require.NoError(t, err)
	assert.Equal(t, "reference", out.Kind)
	assert.Equal(t, 1, out.New)

	// The reference id routes searches to its own index.
	found, err := s.FindSymbols(context.Background(), FindSymbolsInput{
		Query:       "Helper",
		WorkspaceID: out.WorkspaceID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, found.Matches)
	assert.Equal(t, "Helper", found.Matches[0].Name)
}

func TestServer_FindSymbols(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.IndexWorkspace(ctx, IndexWorkspaceInput{})
	require.NoError(t, err)

	out, err := s.FindSymbols(ctx, FindSymbolsInput{Query: "Greet"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Matches)
	m := out.Matches[0]
	assert.Equal(t, "Greet", m.Name)
	assert.Equal(t, "main.go", m.FilePath)
	assert.Equal(t, "name", m.Source)
	assert.Greater(t, m.StartLine, 0)
}

func TestServer_FindSymbolsRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.FindSymbols(context.Background(), FindSymbolsInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_SemanticSearch(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.IndexWorkspace(ctx, IndexWorkspaceInput{})
	require.NoError(t, err)

	out, err := s.SemanticSearch(ctx, SemanticSearchInput{
		Query:     "greeting for a name",
		Threshold: 0.1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Matches)
	assert.NotEmpty(t, out.Strategy)
	assert.Equal(t, "semantic", out.Matches[0].Source)
	assert.Greater(t, out.Matches[0].Similarity, 0.0)
}

func TestServer_SemanticSearchRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.SemanticSearch(context.Background(), SemanticSearchInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestServer_WorkspaceStatus(t *testing.T) {
	s, root := newTestServer(t)
	ctx := context.Background()

	_, err := s.IndexWorkspace(ctx, IndexWorkspaceInput{})
	require.NoError(t, err)

	out, err := s.WorkspaceStatus(ctx)
	require.NoError(t, err)
	canonical, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, canonical, out.Root)
	assert.Equal(t, 1, out.Files)
	assert.GreaterOrEqual(t, out.Symbols, 1)
	assert.True(t, out.Healthy)
	assert.Nil(t, out.Indexing)
}

func TestServer_WorkspaceStatusReportsProgress(t *testing.T) {
	s, _ := newTestServer(t)

	progress := async.NewProgress()
	progress.SetStage(async.StageExtracting, 10)
	progress.UpdateFiles(5)
	s.SetProgress(progress)

	out, err := s.WorkspaceStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Indexing)
	assert.Equal(t, string(async.StatusIndexing), out.Indexing.Status)
	assert.Equal(t, string(async.StageExtracting), out.Indexing.Stage)
	assert.Equal(t, 5, out.Indexing.FilesProcessed)
}
