// Package semantic answers find-definitions and find-references
// queries from symbol embeddings. It is strictly a fallback layer:
// results already found by exact or fuzzy name matching are excluded,
// and similarity thresholds discard weak matches entirely rather than
// returning them with a low-confidence label.
package semantic

import (
	"context"
	"log/slog"

	"github.com/symdex-dev/symdex/internal/embed"
	"github.com/symdex-dev/symdex/internal/store"
)

// Thresholds and limits for semantic matching. Matches below the
// threshold are dropped, not down-ranked: the consumers are automated
// agents, and a plausible-looking false positive costs more than a
// missing result.
const (
	ReferenceThreshold  = 0.75
	DefinitionThreshold = 0.70
	ReferenceLimit      = 5
	DefinitionLimit     = 10
)

// Match is one accepted semantic hit with its provenance.
type Match struct {
	Symbol     store.Symbol
	Similarity float64
	Strategy   string
}

// Result is the outcome of a reference query: the matched symbols plus
// one synthesized relationship per match, with confidence equal to the
// cosine similarity.
type Result struct {
	Matches       []Match
	Relationships []store.Relationship
}

// Resolver runs semantic queries against one workspace's stores.
type Resolver struct {
	symbols  store.SymbolStore
	vectors  *store.VectorStore
	embedder embed.Embedder
	logger   *slog.Logger
}

// New creates a resolver. Any of vectors or embedder may be nil; the
// resolver then degrades to empty results rather than failing queries.
func New(symbols store.SymbolStore, vectors *store.VectorStore, embedder embed.Embedder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		symbols:  symbols,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

// Ready reports whether a semantic query has anywhere to search.
// Queries check this before computing an embedding so an empty store
// never costs an embedding round-trip.
func (r *Resolver) Ready() bool {
	return r.symbols != nil && r.vectors != nil && r.embedder != nil && !r.vectors.IsEmpty()
}

// FindReferences returns symbols semantically similar to queryName
// that are not already in knownDefIDs or knownRefIDs, each paired with
// a references relationship carrying the similarity as confidence.
func (r *Resolver) FindReferences(ctx context.Context, queryName string, knownDefIDs, knownRefIDs []string) (Result, error) {
	known := make(map[string]struct{}, len(knownDefIDs)+len(knownRefIDs))
	for _, id := range knownDefIDs {
		known[id] = struct{}{}
	}
	for _, id := range knownRefIDs {
		known[id] = struct{}{}
	}

	matches, err := r.query(ctx, queryName, ReferenceThreshold, ReferenceLimit, known)
	if err != nil {
		return Result{}, err
	}

	// The query itself has no symbol row, so the from side is a
	// synthetic id derived from the query name and the to side is the
	// matched symbol.
	queryID := "semantic_query:" + queryName
	result := Result{Matches: matches}
	for _, m := range matches {
		result.Relationships = append(result.Relationships, store.Relationship{
			ID:           store.GenerateRelationshipID(queryID, m.Symbol.ID, store.RelReferences),
			FromSymbolID: queryID,
			ToSymbolID:   m.Symbol.ID,
			Kind:         store.RelReferences,
			Confidence:   m.Similarity,
			FilePath:     m.Symbol.FilePath,
			LineNumber:   m.Symbol.StartLine,
		})
	}
	return result, nil
}

// FindDefinitions returns symbols semantically similar to queryName,
// used when exact and fuzzy name lookups found nothing.
func (r *Resolver) FindDefinitions(ctx context.Context, queryName string) ([]Match, error) {
	return r.query(ctx, queryName, DefinitionThreshold, DefinitionLimit, nil)
}

// query is the shared pipeline: readiness check, query embedding,
// vector search with fallback, threshold filter, dedup, and batch
// symbol resolution. Embedding and search failures degrade to empty
// results; only symbol-store failures propagate.
func (r *Resolver) query(ctx context.Context, queryName string, threshold float64, limit int, known map[string]struct{}) ([]Match, error) {
	if !r.Ready() {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, queryName)
	if err != nil {
		r.logger.Warn("semantic_embed_failed",
			slog.String("query", queryName),
			slog.String("error", err.Error()))
		return nil, nil
	}

	// Over-fetch so dedup against known ids cannot empty the result.
	fetch := limit + len(known)
	hits, strategy, err := r.vectors.Search(ctx, queryVec, fetch, threshold)
	if err != nil {
		r.logger.Warn("semantic_search_failed",
			slog.String("query", queryName),
			slog.String("error", err.Error()))
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	similarity := make(map[string]float64, len(hits))
	for _, hit := range hits {
		if _, dup := known[hit.SymbolID]; dup {
			continue
		}
		ids = append(ids, hit.SymbolID)
		similarity[hit.SymbolID] = hit.Score
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	// One batch query instead of a lookup per hit. Ids whose symbols
	// were deleted since the embedding was stored drop out here; the
	// symbol store is the authority on existence.
	symbols, err := r.symbols.SymbolsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(symbols))
	for _, sym := range symbols {
		matches = append(matches, Match{
			Symbol:     sym,
			Similarity: similarity[sym.ID],
			Strategy:   strategy,
		})
	}

	r.logger.Debug("semantic_query_complete",
		slog.String("query", queryName),
		slog.String("strategy", strategy),
		slog.Int("matches", len(matches)))
	return matches, nil
}
