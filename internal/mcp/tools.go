package mcp

// IndexWorkspaceInput is the input schema for index_workspace.
type IndexWorkspaceInput struct {
	Path string `json:"path,omitempty" jsonschema:"workspace root to index; empty indexes the primary workspace, any other path is registered as a reference workspace with its own index"`
}

// IndexWorkspaceOutput is the output schema for index_workspace.
type IndexWorkspaceOutput struct {
	WorkspaceID string `json:"workspace_id"`
	Root        string `json:"root"`
	Kind        string `json:"kind"`
	New         int    `json:"new"`
	Modified    int    `json:"modified"`
	Unchanged   int    `json:"unchanged"`
	Removed     int    `json:"removed"`
	Failed      int    `json:"failed"`
}

// FindSymbolsInput is the input schema for find_symbols.
type FindSymbolsInput struct {
	Query       string `json:"query" jsonschema:"symbol name or free-text query"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"search a reference workspace by id; empty searches the primary workspace"`
}

// FindSymbolsOutput is the output schema for find_symbols.
type FindSymbolsOutput struct {
	Matches []SymbolMatch `json:"matches"`
}

// SymbolMatch is one search hit. Source explains which layer produced
// it: name, text, or semantic. Similarity is set only for semantic
// hits.
type SymbolMatch struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Signature  string  `json:"signature,omitempty"`
	DocComment string  `json:"doc_comment,omitempty"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity,omitempty"`
}

// SemanticSearchInput is the input schema for semantic_search.
type SemanticSearchInput struct {
	Query     string  `json:"query" jsonschema:"natural-language description of the code to find"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between 0 and 1, default 0.70"`
}

// SemanticSearchOutput is the output schema for semantic_search.
type SemanticSearchOutput struct {
	Matches  []SymbolMatch `json:"matches"`
	Strategy string        `json:"strategy,omitempty" jsonschema:"how the search executed: hnsw or linear"`
}

// WorkspaceStatusInput is the input schema for workspace_status (no
// parameters).
type WorkspaceStatusInput struct{}
