package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/symdex-dev/symdex/internal/async"
	"github.com/symdex-dev/symdex/internal/engine"
	"github.com/symdex-dev/symdex/internal/index"
	"github.com/symdex-dev/symdex/internal/semantic"
	"github.com/symdex-dev/symdex/pkg/version"
)

const serverName = "symdex"

// Server bridges MCP clients with the symdex engine. All tool calls
// operate on the primary workspace the engine was opened for, except
// index_workspace and find_symbols with an explicit workspace id.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger

	mu       sync.RWMutex
	progress *async.Progress
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates an MCP server over an open engine.
func NewServer(eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, NewInvalidParamsError("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: eng,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// SetProgress attaches a background indexing tracker. When set, the
// workspace_status tool reports the pass in flight.
func (s *Server) SetProgress(p *async.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "index_workspace",
			Description: "Index a workspace incrementally. Only new and changed files are reprocessed, and entries for deleted files are removed. Pass a path to index another project as a reference workspace with its own isolated index.",
		},
		{
			Name:        "find_symbols",
			Description: "Find symbol definitions by name. Tries exact and prefix name matches first, then full-text search, then falls back to semantic similarity so renamed or paraphrased symbols still surface.",
		},
		{
			Name:        "semantic_search",
			Description: "Search symbols by meaning using embeddings. Use for natural-language queries like 'function that retries failed requests' where no symbol name is known.",
		},
		{
			Name:        "workspace_status",
			Description: "Report index counts, embedding model, registered workspaces, and health checks. Use before searching to verify the index is ready.",
		},
	}
}

// registerTools registers the typed tool handlers with the SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_workspace",
		Description: s.toolDescription("index_workspace"),
	}, s.indexWorkspaceHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_symbols",
		Description: s.toolDescription("find_symbols"),
	}, s.findSymbolsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: s.toolDescription("semantic_search"),
	}, s.semanticSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "workspace_status",
		Description: s.toolDescription("workspace_status"),
	}, s.workspaceStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(s.ListTools())))
}

func (s *Server) toolDescription(name string) string {
	for _, t := range s.ListTools() {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func (s *Server) indexWorkspaceHandler(ctx context.Context, req *mcp.CallToolRequest, input IndexWorkspaceInput) (
	*mcp.CallToolResult,
	IndexWorkspaceOutput,
	error,
) {
	out, err := s.IndexWorkspace(ctx, input)
	if err != nil {
		return nil, IndexWorkspaceOutput{}, MapError(err)
	}
	return nil, out, nil
}

// IndexWorkspace runs one incremental pass. An empty path indexes the
// primary workspace; any other path is registered and indexed as a
// reference workspace.
func (s *Server) IndexWorkspace(ctx context.Context, input IndexWorkspaceInput) (IndexWorkspaceOutput, error) {
	ws := s.engine.Workspace()
	var (
		counts index.Counts
		err    error
	)
	if input.Path == "" {
		counts, err = s.engine.Index(ctx, nil)
	} else {
		ws, counts, err = s.engine.IndexReference(ctx, input.Path, nil)
	}
	if err != nil {
		return IndexWorkspaceOutput{}, err
	}

	return IndexWorkspaceOutput{
		WorkspaceID: ws.ID,
		Root:        ws.Root,
		Kind:        string(ws.Kind),
		New:         counts.New,
		Modified:    counts.Modified,
		Unchanged:   counts.Unchanged,
		Removed:     counts.Removed,
		Failed:      counts.Failed,
	}, nil
}

func (s *Server) findSymbolsHandler(ctx context.Context, req *mcp.CallToolRequest, input FindSymbolsInput) (
	*mcp.CallToolResult,
	FindSymbolsOutput,
	error,
) {
	out, err := s.FindSymbols(ctx, input)
	if err != nil {
		return nil, FindSymbolsOutput{}, MapError(err)
	}
	return nil, out, nil
}

// FindSymbols runs the layered name, text, semantic search pipeline.
func (s *Server) FindSymbols(ctx context.Context, input FindSymbolsInput) (FindSymbolsOutput, error) {
	if input.Query == "" {
		return FindSymbolsOutput{}, NewInvalidParamsError("query parameter is required")
	}

	matches, err := s.engine.FindSymbols(ctx, input.Query, input.Limit, input.WorkspaceID)
	if err != nil {
		return FindSymbolsOutput{}, err
	}

	out := FindSymbolsOutput{Matches: make([]SymbolMatch, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, SymbolMatch{
			Name:       m.Symbol.Name,
			Kind:       m.Symbol.Kind,
			FilePath:   m.Symbol.FilePath,
			StartLine:  m.Symbol.StartLine,
			EndLine:    m.Symbol.EndLine,
			Signature:  m.Symbol.Signature,
			DocComment: m.Symbol.DocComment,
			Source:     m.Source,
			Similarity: m.Similarity,
		})
	}
	return out, nil
}

func (s *Server) semanticSearchHandler(ctx context.Context, req *mcp.CallToolRequest, input SemanticSearchInput) (
	*mcp.CallToolResult,
	SemanticSearchOutput,
	error,
) {
	out, err := s.SemanticSearch(ctx, input)
	if err != nil {
		return nil, SemanticSearchOutput{}, MapError(err)
	}
	return nil, out, nil
}

// SemanticSearch runs a raw similarity query against the primary
// workspace.
func (s *Server) SemanticSearch(ctx context.Context, input SemanticSearchInput) (SemanticSearchOutput, error) {
	if input.Query == "" {
		return SemanticSearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	matches, strategy, err := s.engine.SemanticSearch(ctx, input.Query, input.Limit, input.Threshold)
	if err != nil {
		return SemanticSearchOutput{}, err
	}

	out := SemanticSearchOutput{
		Matches:  make([]SymbolMatch, 0, len(matches)),
		Strategy: strategy,
	}
	for _, m := range matches {
		out.Matches = append(out.Matches, semanticMatchOutput(m))
	}
	return out, nil
}

func semanticMatchOutput(m semantic.Match) SymbolMatch {
	return SymbolMatch{
		Name:       m.Symbol.Name,
		Kind:       m.Symbol.Kind,
		FilePath:   m.Symbol.FilePath,
		StartLine:  m.Symbol.StartLine,
		EndLine:    m.Symbol.EndLine,
		Signature:  m.Symbol.Signature,
		DocComment: m.Symbol.DocComment,
		Source:     "semantic",
		Similarity: m.Similarity,
	}
}

// WorkspaceStatusOutput is the output schema for workspace_status.
type WorkspaceStatusOutput struct {
	engine.Status
	Indexing *async.ProgressSnapshot `json:"indexing,omitempty"`
}

func (s *Server) workspaceStatusHandler(ctx context.Context, req *mcp.CallToolRequest, input WorkspaceStatusInput) (
	*mcp.CallToolResult,
	WorkspaceStatusOutput,
	error,
) {
	out, err := s.WorkspaceStatus(ctx)
	if err != nil {
		return nil, WorkspaceStatusOutput{}, MapError(err)
	}
	return nil, out, nil
}

// WorkspaceStatus reports index counts and health, plus the background
// pass in flight when one is attached.
func (s *Server) WorkspaceStatus(ctx context.Context) (WorkspaceStatusOutput, error) {
	status, err := s.engine.Status(ctx)
	if err != nil {
		return WorkspaceStatusOutput{}, err
	}

	out := WorkspaceStatusOutput{Status: status}

	s.mu.RLock()
	progress := s.progress
	s.mu.RUnlock()
	if progress != nil {
		snap := progress.Snapshot()
		out.Indexing = &snap
	}
	return out, nil
}

// Serve runs the server over stdio until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting",
		slog.String("workspace", s.engine.Workspace().ID))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
