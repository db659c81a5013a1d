package engine

import (
	"context"
	"log/slog"
	"sort"

	symerrors "github.com/symdex-dev/symdex/internal/errors"
	"github.com/symdex-dev/symdex/internal/semantic"
	"github.com/symdex-dev/symdex/internal/store"
)

// Match sources, in the order the search pipeline tries them.
const (
	SourceName     = "name"
	SourceText     = "text"
	SourceSemantic = "semantic"
)

// Match is one search hit with its provenance. Similarity is set only
// for semantic hits.
type Match struct {
	Symbol     store.Symbol `json:"symbol"`
	Source     string       `json:"source"`
	Similarity float64      `json:"similarity,omitempty"`
}

// DefaultSearchLimit caps searches that pass no limit.
const DefaultSearchLimit = 20

// FindSymbols searches one workspace by symbol name: exact and prefix
// matches first, then full-text, then the semantic fallback when name
// search found nothing good. workspaceID selects a reference
// workspace; empty means primary. The semantic layer only covers the
// primary workspace.
func (e *Engine) FindSymbols(ctx context.Context, query string, limit int, workspaceID string) ([]Match, error) {
	if query == "" {
		return nil, symerrors.ValidationError("query must not be empty", nil)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	st, closer, err := e.storeForSearch(workspaceID)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}
	isPrimary := st == e.symbols

	seen := make(map[string]struct{})
	var matches []Match

	named, err := st.FindSymbolsByName(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for _, sym := range named {
		seen[sym.ID] = struct{}{}
		matches = append(matches, Match{Symbol: sym, Source: SourceName})
	}

	if len(matches) < limit {
		textMatches, err := e.searchText(ctx, st, isPrimary, query, limit)
		if err != nil {
			e.logger.Warn("text_search_failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
		}
		for _, sym := range textMatches {
			if _, dup := seen[sym.ID]; dup {
				continue
			}
			seen[sym.ID] = struct{}{}
			matches = append(matches, Match{Symbol: sym, Source: SourceText})
			if len(matches) == limit {
				break
			}
		}
	}

	if isPrimary && len(matches) < limit {
		semMatches, err := e.resolver.FindDefinitions(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, m := range semMatches {
			if _, dup := seen[m.Symbol.ID]; dup {
				continue
			}
			seen[m.Symbol.ID] = struct{}{}
			matches = append(matches, Match{
				Symbol:     m.Symbol,
				Source:     SourceSemantic,
				Similarity: m.Similarity,
			})
			if len(matches) == limit {
				break
			}
		}
	}

	return matches, nil
}

// searchText runs the full-text layer. The primary workspace goes
// through the configured text index; reference stores use their own
// FTS tables.
func (e *Engine) searchText(ctx context.Context, st store.SymbolStore, isPrimary bool, query string, limit int) ([]store.Symbol, error) {
	if !isPrimary {
		return st.SearchSymbols(ctx, query, limit)
	}

	ids, err := e.text.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return st.SymbolsByIDs(ctx, ids)
}

// References is the outcome of a find-references query: the name
// matches plus semantically similar symbols not already among them.
type References struct {
	Definitions []store.Symbol       `json:"definitions"`
	Semantic    []semantic.Match     `json:"semantic"`
	Inferred    []store.Relationship `json:"inferred"`
}

// FindReferences resolves a symbol name to its definitions and then
// asks the semantic layer for referencing symbols the name search
// could not see.
func (e *Engine) FindReferences(ctx context.Context, name string) (References, error) {
	if name == "" {
		return References{}, symerrors.ValidationError("name must not be empty", nil)
	}

	defs, err := e.symbols.FindSymbolsByName(ctx, name, DefaultSearchLimit)
	if err != nil {
		return References{}, err
	}
	defIDs := make([]string, len(defs))
	for i, sym := range defs {
		defIDs[i] = sym.ID
	}

	result, err := e.resolver.FindReferences(ctx, name, defIDs, nil)
	if err != nil {
		return References{}, err
	}

	return References{
		Definitions: defs,
		Semantic:    result.Matches,
		Inferred:    result.Relationships,
	}, nil
}

// SemanticSearch runs a raw similarity query against the primary
// workspace's embeddings. Strategy reports how the search executed
// ("hnsw" or "linear"); empty results with no error mean the semantic
// layer has nothing indexed yet.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]semantic.Match, string, error) {
	if query == "" {
		return nil, "", symerrors.ValidationError("query must not be empty", nil)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if threshold <= 0 {
		threshold = semantic.DefinitionThreshold
	}

	if !e.resolver.Ready() {
		return nil, "", nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("semantic_embed_failed", slog.String("error", err.Error()))
		return nil, "", nil
	}

	hits, strategy, err := e.vectors.Search(ctx, vec, limit, threshold)
	if err != nil {
		return nil, "", err
	}
	if len(hits) == 0 {
		return nil, strategy, nil
	}

	ids := make([]string, len(hits))
	similarity := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.SymbolID
		similarity[hit.SymbolID] = hit.Score
	}

	symbols, err := e.symbols.SymbolsByIDs(ctx, ids)
	if err != nil {
		return nil, "", err
	}

	matches := make([]semantic.Match, 0, len(symbols))
	for _, sym := range symbols {
		matches = append(matches, semantic.Match{
			Symbol:     sym,
			Similarity: similarity[sym.ID],
			Strategy:   strategy,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	return matches, strategy, nil
}

// storeForSearch routes a workspace id to its store. The returned
// closer is non-nil for reference stores, which open per query.
func (e *Engine) storeForSearch(workspaceID string) (store.SymbolStore, func(), error) {
	if workspaceID == "" || workspaceID == e.primary.ID {
		return e.symbols, nil, nil
	}

	ws, ok := e.registry.Lookup(workspaceID)
	if !ok {
		return nil, nil, symerrors.NotInitialized("workspace " + workspaceID)
	}

	refStore, err := store.OpenSymbolStore(e.layout.ReferenceStorePath(ws.ID), ws.ID, e.logger)
	if err != nil {
		return nil, nil, err
	}
	e.registry.Touch(ws.ID)
	return refStore, func() { _ = refStore.Close() }, nil
}
