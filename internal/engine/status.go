package engine

import (
	"context"

	"github.com/symdex-dev/symdex/internal/store"
	"github.com/symdex-dev/symdex/internal/workspace"
)

// Status is a point-in-time view of the engine for the status command
// and the workspace_status MCP tool.
type Status struct {
	WorkspaceID    string                  `json:"workspace_id"`
	Root           string                  `json:"root"`
	Files          int                     `json:"files"`
	Symbols        int                     `json:"symbols"`
	EmbeddingModel string                  `json:"embedding_model,omitempty"`
	TextBackend    string                  `json:"text_backend"`
	Vectors        store.VectorStats       `json:"vectors"`
	Registry       workspace.Stats         `json:"registry"`
	Health         []workspace.CheckResult `json:"health"`
	Healthy        bool                    `json:"healthy"`
}

// Status collects counts and health checks for the primary workspace.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	files, err := e.symbols.FileCount(ctx)
	if err != nil {
		return Status{}, err
	}
	symbols, err := e.symbols.SymbolCount(ctx)
	if err != nil {
		return Status{}, err
	}
	model, err := e.symbols.EmbeddingModel(ctx)
	if err != nil {
		return Status{}, err
	}

	health := workspace.CheckHealth(e.primary, e.layout)

	return Status{
		WorkspaceID:    e.primary.ID,
		Root:           e.primary.Root,
		Files:          files,
		Symbols:        symbols,
		EmbeddingModel: model,
		TextBackend:    e.cfg.TextIndex.Backend,
		Vectors:        e.vectors.Stats(),
		Registry:       e.registry.Stats(),
		Health:         health,
		Healthy:        workspace.Healthy(health),
	}, nil
}
