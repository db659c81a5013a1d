// Package engine assembles the stores, indexer, embedder, and semantic
// resolver into one handle the CLI and MCP server drive. The engine
// owns the primary workspace; reference workspaces are opened per
// operation through the registry so their data never mixes with the
// primary's.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/symdex-dev/symdex/internal/config"
	"github.com/symdex-dev/symdex/internal/embed"
	symerrors "github.com/symdex-dev/symdex/internal/errors"
	"github.com/symdex-dev/symdex/internal/extract"
	"github.com/symdex-dev/symdex/internal/index"
	"github.com/symdex-dev/symdex/internal/semantic"
	"github.com/symdex-dev/symdex/internal/store"
	"github.com/symdex-dev/symdex/internal/workspace"
)

// Options controls engine construction.
type Options struct {
	// Create initializes the data dir and stores when absent. Search
	// and status surfaces leave this false so an unindexed workspace
	// produces a clear not-initialized error instead of an empty index.
	Create bool
}

// Engine is the assembled system for one primary workspace.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	primary  workspace.Descriptor
	layout   workspace.Layout
	registry *workspace.Registry

	symbols  store.SymbolStore
	text     store.TextIndex
	vectors  *store.VectorStore
	embedder embed.Embedder
	resolver *semantic.Resolver
	indexer  *index.Indexer
}

// New opens the engine for the workspace at root.
func New(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ws, err := workspace.Resolve(root, workspace.KindPrimary)
	if err != nil {
		return nil, err
	}
	layout := workspace.NewLayout(ws.Root)

	if _, statErr := os.Stat(layout.PrimaryStorePath()); statErr != nil {
		if !opts.Create {
			return nil, symerrors.NotInitialized("workspace " + ws.Root)
		}
		if err := layout.EnsureDataDir(); err != nil {
			return nil, symerrors.IOError("creating data dir", err)
		}
	}

	registry, err := workspace.OpenRegistry(layout, cfg.Registry.ReferenceTTL, logger)
	if err != nil {
		return nil, err
	}
	if _, err := registry.RegisterPrimary(ws.Root); err != nil {
		return nil, err
	}
	if cfg.Registry.AutoCleanup {
		if removed := registry.CleanupExpired(time.Now()); len(removed) > 0 {
			logger.Info("expired_references_removed", slog.Int("count", len(removed)))
		}
	}

	symbols, err := store.OpenSymbolStore(layout.PrimaryStorePath(), ws.ID, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		primary:  ws,
		layout:   layout,
		registry: registry,
		symbols:  symbols,
	}

	if err := e.openTextIndex(); err != nil {
		_ = symbols.Close()
		return nil, err
	}

	e.embedder = embed.New(ctx, cfg.Embeddings, logger)
	if err := e.openVectors(ctx); err != nil {
		e.closePartial()
		return nil, err
	}

	e.resolver = semantic.New(e.symbols, e.vectors, e.embedder, logger)

	e.indexer, err = index.New(cfg, layout, symbols, extract.DefaultRegistry(), logger)
	if err != nil {
		e.closePartial()
		return nil, err
	}

	logger.Debug("engine_ready",
		slog.String("workspace", ws.ID),
		slog.String("text_backend", cfg.TextIndex.Backend),
		slog.String("embedding_model", e.embedder.ModelName()))
	return e, nil
}

func (e *Engine) openTextIndex() error {
	switch e.cfg.TextIndex.Backend {
	case config.TextBackendBleve:
		idx, err := store.NewBleveTextIndex(e.layout.BleveIndexPath(e.primary.ID), e.logger)
		if err != nil {
			return err
		}
		e.text = idx
	default:
		sqlStore, ok := e.symbols.(*store.SQLiteSymbolStore)
		if !ok {
			return fmt.Errorf("fts5 text index requires the sqlite symbol store")
		}
		e.text = store.NewFTS5TextIndex(sqlStore)
	}
	return nil
}

// openVectors sizes the vector store to the stored embeddings when any
// exist, otherwise to the active embedder, then loads entries and the
// persisted graph.
func (e *Engine) openVectors(ctx context.Context) error {
	dims := e.embedder.Dimensions()

	entries, err := e.symbols.AllEmbeddings(ctx)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		dims = len(entries[0].Embedding)
	}

	cfg := store.VectorStoreConfig{
		Dimensions: dims,
		M:          e.cfg.Vectors.M,
		EfSearch:   e.cfg.Vectors.EfSearch,
	}
	e.vectors = store.NewVectorStore(cfg, e.layout.VectorsPath(e.primary.ID), e.logger)

	if err := e.vectors.ReplaceAll(entries); err != nil {
		return err
	}
	if err := e.vectors.LoadGraph(); err != nil {
		e.logger.Warn("vector_graph_load_failed", slog.String("error", err.Error()))
	}
	return nil
}

// Workspace returns the primary workspace descriptor.
func (e *Engine) Workspace() workspace.Descriptor {
	return e.primary
}

// Registry returns the workspace registry.
func (e *Engine) Registry() *workspace.Registry {
	return e.registry
}

// InvalidateGitignoreCache drops cached ignore rules so the next pass
// re-reads them.
func (e *Engine) InvalidateGitignoreCache() {
	e.indexer.InvalidateGitignoreCache()
}

func (e *Engine) closePartial() {
	if e.vectors != nil {
		_ = e.vectors.Close()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	if e.text != nil {
		_ = e.text.Close()
	}
	if e.symbols != nil {
		_ = e.symbols.Close()
	}
}

// Close persists the vector graph and releases every resource.
func (e *Engine) Close() error {
	if e.vectors != nil && !e.vectors.IsEmpty() {
		if err := e.vectors.SaveGraph(); err != nil {
			e.logger.Warn("vector_graph_save_failed", slog.String("error", err.Error()))
		}
	}
	e.closePartial()
	return nil
}
