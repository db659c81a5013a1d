package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// VectorStore holds one workspace's symbol embeddings with an optional
// HNSW graph for approximate search and a linear scan fallback.
//
// The entry map is authoritative: additions and deletions apply to it
// immediately, while the graph only changes on Rebuild. Search results
// are filtered against the map, so deleted symbols never surface even
// when the graph still carries their nodes. Between rebuilds new
// entries are served by falling back where needed; a rebuild brings the
// graph back in step.
//
// Rebuild never blocks readers for its duration: it snapshots under a
// short lock, builds the new graph unlocked, and re-acquires the lock
// only to publish the finished graph.
type VectorStore struct {
	mu      sync.RWMutex
	entries map[string][]float32
	graph   *hnswGraph
	config  VectorStoreConfig
	path    string
	logger  *slog.Logger
	closed  bool

	rebuilding atomic.Bool
}

// VectorStats describes the store for status reporting.
type VectorStats struct {
	Entries    int
	GraphNodes int
	Strategy   string
}

// NewVectorStore creates an empty vector store. path is where the HNSW
// graph is cached between runs; empty disables persistence.
func NewVectorStore(cfg VectorStoreConfig, path string, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		entries: make(map[string][]float32),
		config:  cfg,
		path:    path,
		logger:  logger,
	}
}

// LoadGraph restores the cached HNSW graph if one exists. A missing,
// unreadable, or dimension-mismatched cache is not an error; the store
// serves linear searches until the next rebuild.
func (s *VectorStore) LoadGraph() error {
	if s.path == "" {
		return nil
	}

	g, err := loadHNSWGraph(s.path)
	if err != nil {
		s.logger.Warn("vector_graph_load_failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return nil
	}
	if g == nil {
		return nil
	}
	if g.config.Dimensions != s.config.Dimensions {
		s.logger.Warn("vector_graph_dimension_mismatch",
			slog.Int("cached", g.config.Dimensions),
			slog.Int("configured", s.config.Dimensions))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	s.graph = g
	return nil
}

// ReplaceAll swaps in a full set of entries, typically loaded from the
// symbol store at startup.
func (s *VectorStore) ReplaceAll(entries []VectorEntry) error {
	fresh := make(map[string][]float32, len(entries))
	for _, entry := range entries {
		if len(entry.Embedding) != s.config.Dimensions {
			return &ErrDimensionMismatch{Expected: s.config.Dimensions, Actual: len(entry.Embedding)}
		}
		fresh[entry.SymbolID] = entry.Embedding
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	s.entries = fresh
	return nil
}

// Upsert adds or replaces entries. The graph is not touched; new
// entries become searchable by graph after the next rebuild.
func (s *VectorStore) Upsert(entries []VectorEntry) error {
	for _, entry := range entries {
		if len(entry.Embedding) != s.config.Dimensions {
			return &ErrDimensionMismatch{Expected: s.config.Dimensions, Actual: len(entry.Embedding)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	for _, entry := range entries {
		s.entries[entry.SymbolID] = entry.Embedding
	}
	return nil
}

// Delete removes entries by symbol id. Takes effect immediately for
// search results regardless of graph state.
func (s *VectorStore) Delete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, id := range ids {
		delete(s.entries, id)
	}
}

// IsEmpty reports whether the store has no embeddings. Semantic
// operations check this before doing any work.
func (s *VectorStore) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) == 0
}

// Count returns the number of live entries.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Search returns up to k entries with cosine similarity at or above
// threshold, best first, along with the strategy used ("hnsw" or
// "linear"). Hits whose entries were deleted since the last rebuild are
// filtered out.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int, threshold float64) ([]VectorMatch, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, "", fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, "", &ErrDimensionMismatch{Expected: s.config.Dimensions, Actual: len(query)}
	}
	if len(s.entries) == 0 || k <= 0 {
		return []VectorMatch{}, StrategyLinear, nil
	}

	if s.graph != nil && s.graph.size() > 0 {
		return s.searchGraph(query, k, threshold), StrategyHNSW, nil
	}
	return s.searchLinear(query, k, threshold), StrategyLinear, nil
}

// searchGraph queries the HNSW graph, over-fetching to compensate for
// entries removed since the graph was built.
func (s *VectorStore) searchGraph(query []float32, k int, threshold float64) []VectorMatch {
	hits := s.graph.search(query, k*2)

	matches := make([]VectorMatch, 0, k)
	for _, hit := range hits {
		if _, live := s.entries[hit.SymbolID]; !live {
			continue
		}
		if hit.Score < threshold {
			continue
		}
		matches = append(matches, hit)
		if len(matches) == k {
			break
		}
	}
	return matches
}

// searchLinear scans every entry. Exact but O(n); used while no graph
// is available.
func (s *VectorStore) searchLinear(query []float32, k int, threshold float64) []VectorMatch {
	matches := make([]VectorMatch, 0, k)
	for id, vec := range s.entries {
		score := cosineSimilarity(query, vec)
		if score < threshold {
			continue
		}
		matches = append(matches, VectorMatch{SymbolID: id, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].SymbolID < matches[j].SymbolID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Rebuild constructs a fresh HNSW graph from the current entries and
// publishes it. Concurrent calls coalesce; the second returns
// immediately. The build runs without holding the store lock, so reads
// stay fast during long rebuilds.
func (s *VectorStore) Rebuild(ctx context.Context) error {
	if !s.rebuilding.CompareAndSwap(false, true) {
		s.logger.Debug("vector_rebuild_already_running")
		return nil
	}
	defer s.rebuilding.Store(false)

	start := time.Now()

	// Snapshot under a short lock. Embedding slices are never mutated
	// in place after insertion, so sharing the backing arrays is safe.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("vector store is closed")
	}
	ids := make([]string, 0, len(s.entries))
	vecs := make([][]float32, 0, len(s.entries))
	for id, vec := range s.entries {
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		s.mu.Lock()
		s.graph = nil
		s.mu.Unlock()
		if s.path != "" {
			_ = os.Remove(s.path)
			_ = os.Remove(s.path + ".meta")
		}
		return nil
	}

	// Build unlocked. This is the slow part.
	g := newHNSWGraph(s.config)
	for i, id := range ids {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				s.logger.Info("vector_rebuild_cancelled", slog.Int("inserted", i))
				return err
			}
		}
		g.add(id, vecs[i])
	}

	// Publish under a short lock.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("vector store is closed")
	}
	s.graph = g
	s.mu.Unlock()

	if s.path != "" {
		if err := g.save(s.path); err != nil {
			s.logger.Warn("vector_graph_save_failed",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
	}

	s.logger.Info("vector_rebuild_complete",
		slog.Int("entries", len(ids)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// SaveGraph persists the current graph, if any.
func (s *VectorStore) SaveGraph() error {
	s.mu.RLock()
	g := s.graph
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return fmt.Errorf("vector store is closed")
	}
	if g == nil || s.path == "" {
		return nil
	}
	return g.save(s.path)
}

// Stats reports entry and graph counts plus the strategy the next
// search would use.
func (s *VectorStore) Stats() VectorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := VectorStats{Entries: len(s.entries), Strategy: StrategyLinear}
	if s.graph != nil {
		stats.GraphNodes = s.graph.size()
		if stats.GraphNodes > 0 {
			stats.Strategy = StrategyHNSW
		}
	}
	return stats
}

// Close marks the store closed. Callers save the graph first if they
// want it persisted.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	s.graph = nil
	return nil
}

// cosineSimilarity computes similarity without mutating its inputs.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
