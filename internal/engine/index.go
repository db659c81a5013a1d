package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/symdex-dev/symdex/internal/index"
	"github.com/symdex-dev/symdex/internal/semantic"
	"github.com/symdex-dev/symdex/internal/store"
	"github.com/symdex-dev/symdex/internal/watcher"
	"github.com/symdex-dev/symdex/internal/workspace"
)

// Stages the engine reports beyond the indexer's own.
const (
	StageEmbedding  = "embedding"
	StageRebuilding = "rebuilding"
)

// Index runs one incremental pass over the primary workspace: scan,
// extract, clean orphans, embed changed symbols, and rebuild the
// vector graph when configured.
func (e *Engine) Index(ctx context.Context, progress index.ProgressFunc) (index.Counts, error) {
	if progress == nil {
		progress = func(string, int, int) {}
	}

	counts, err := e.indexer.Run(ctx, e.primary, progress)
	if err != nil {
		return counts, err
	}

	if err := e.syncDerivedIndexes(ctx, progress); err != nil {
		return counts, err
	}

	e.updateRegistryCounts(ctx, e.primary.ID, e.symbols)

	if e.cfg.Vectors.RebuildAfterIndex && counts.New+counts.Modified+counts.Removed > 0 {
		progress(StageRebuilding, 0, 0)
		if err := e.vectors.Rebuild(ctx); err != nil {
			return counts, err
		}
		if err := e.vectors.SaveGraph(); err != nil {
			e.logger.Warn("vector_graph_save_failed", slog.String("error", err.Error()))
		}
		progress(StageRebuilding, 1, 1)
	}
	return counts, nil
}

// IndexReference indexes a reference workspace into its own store.
// Registering the primary root as a reference routes to the primary
// index instead of creating a second store.
func (e *Engine) IndexReference(ctx context.Context, root string, progress index.ProgressFunc) (workspace.Descriptor, index.Counts, error) {
	ws, err := e.registry.RegisterReference(root)
	if err != nil {
		return workspace.Descriptor{}, index.Counts{}, err
	}
	if ws.ID == e.primary.ID {
		counts, err := e.Index(ctx, progress)
		return ws, counts, err
	}

	counts, err := e.indexer.Run(ctx, ws, progress)
	if err != nil {
		return ws, counts, err
	}
	e.registry.Touch(ws.ID)

	refStore, err := store.OpenSymbolStore(e.layout.ReferenceStorePath(ws.ID), ws.ID, e.logger)
	if err != nil {
		return ws, counts, err
	}
	defer func() { _ = refStore.Close() }()
	e.updateRegistryCounts(ctx, ws.ID, refStore)

	return ws, counts, nil
}

func (e *Engine) updateRegistryCounts(ctx context.Context, id string, st store.SymbolStore) {
	files, err := st.FileCount(ctx)
	if err != nil {
		return
	}
	symbols, err := st.SymbolCount(ctx)
	if err != nil {
		return
	}
	e.registry.UpdateCounts(id, files, symbols)
}

// syncDerivedIndexes brings the embeddings, vector store, and text
// index up to date with the symbol store after a pass. A model switch
// discards all stored embeddings and starts over.
func (e *Engine) syncDerivedIndexes(ctx context.Context, progress index.ProgressFunc) error {
	known := make(map[string]struct{})

	storedModel, err := e.symbols.EmbeddingModel(ctx)
	if err != nil {
		return err
	}
	if storedModel == "" || storedModel == e.embedder.ModelName() {
		existing, err := e.symbols.AllEmbeddings(ctx)
		if err != nil {
			return err
		}
		for _, entry := range existing {
			known[entry.SymbolID] = struct{}{}
		}
	} else {
		e.logger.Info("embedding_model_changed",
			slog.String("stored", storedModel),
			slog.String("active", e.embedder.ModelName()))
		// The old vectors are useless under a new model; resize the
		// store to the active embedder and re-embed everything.
		_ = e.vectors.Close()
		cfg := store.VectorStoreConfig{
			Dimensions: e.embedder.Dimensions(),
			M:          e.cfg.Vectors.M,
			EfSearch:   e.cfg.Vectors.EfSearch,
		}
		e.vectors = store.NewVectorStore(cfg, e.layout.VectorsPath(e.primary.ID), e.logger)
		e.resolver = semantic.New(e.symbols, e.vectors, e.embedder, e.logger)
	}

	pending, err := e.collectUnembedded(ctx, known)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		progress(StageEmbedding, 0, len(pending))
		if err := e.embedSymbols(ctx, pending, progress); err != nil {
			return err
		}
	}

	// The store is the authority; reloading drops embeddings whose
	// files were removed this pass.
	entries, err := e.symbols.AllEmbeddings(ctx)
	if err != nil {
		return err
	}
	return e.vectors.ReplaceAll(entries)
}

func (e *Engine) collectUnembedded(ctx context.Context, known map[string]struct{}) ([]store.Symbol, error) {
	fileCounts, err := e.symbols.FileSymbolCounts(ctx, e.primary.ID)
	if err != nil {
		return nil, err
	}

	var pending []store.Symbol
	for path, count := range fileCounts {
		if count == 0 {
			continue
		}
		symbols, err := e.symbols.SymbolsForFile(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, sym := range symbols {
			if _, ok := known[sym.ID]; !ok {
				pending = append(pending, sym)
			}
		}
	}
	return pending, nil
}

func (e *Engine) embedSymbols(ctx context.Context, symbols []store.Symbol, progress index.ProgressFunc) error {
	batchSize := e.cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(symbols); start += batchSize {
		end := min(start+batchSize, len(symbols))
		batch := symbols[start:end]

		texts := make([]string, len(batch))
		for i, sym := range batch {
			texts[i] = embeddingText(sym)
		}

		vecs, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding symbols: %w", err)
		}

		entries := make([]store.VectorEntry, len(batch))
		for i, sym := range batch {
			entries[i] = store.VectorEntry{SymbolID: sym.ID, Embedding: vecs[i]}
		}
		if err := e.symbols.SaveEmbeddings(ctx, entries, e.embedder.ModelName()); err != nil {
			return err
		}
		if err := e.text.IndexSymbols(ctx, batch); err != nil {
			return err
		}
		progress(StageEmbedding, end, len(symbols))
	}
	return nil
}

// embeddingText is the text a symbol embeds as: name, signature, and
// doc, the parts a natural-language query is likely to mention.
func embeddingText(sym store.Symbol) string {
	text := sym.Name
	if sym.Signature != "" {
		text += " " + sym.Signature
	}
	if sym.DocComment != "" {
		text += " " + sym.DocComment
	}
	return text
}

// Watch runs an initial pass and then re-indexes on file changes until
// the context ends. onPass is invoked after every pass with its
// outcome.
func (e *Engine) Watch(ctx context.Context, onPass func(index.Counts, error)) error {
	if onPass == nil {
		onPass = func(index.Counts, error) {}
	}

	counts, err := e.Index(ctx, nil)
	onPass(counts, err)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		DebounceWindow:  e.cfg.Watch.Debounce,
		IgnorePatterns:  e.cfg.Paths.Exclude,
		EventBufferSize: 0,
	}, e.logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Start(ctx, e.primary.Root) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watchErr:
			return err
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if batchNeedsReconcile(batch) {
				e.indexer.InvalidateGitignoreCache()
			}
			start := time.Now()
			counts, err := e.Index(ctx, nil)
			e.logger.Debug("watch_pass",
				slog.Int("events", len(batch)),
				slog.Int("changed", counts.New+counts.Modified+counts.Removed),
				slog.Duration("duration", time.Since(start)))
			onPass(counts, err)
		}
	}
}

// batchNeedsReconcile reports whether the batch contains an ignore
// rule or config change.
func batchNeedsReconcile(batch []watcher.FileEvent) bool {
	for _, ev := range batch {
		if ev.Operation == watcher.OpGitignoreChange || ev.Operation == watcher.OpConfigChange {
			return true
		}
	}
	return false
}
