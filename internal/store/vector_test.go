package store

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func seededVec(dims int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	v := make([]float32, dims)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func seededEntries(n, dims int) []VectorEntry {
	entries := make([]VectorEntry, n)
	for i := range entries {
		entries[i] = VectorEntry{
			SymbolID:  GenerateSymbolID("gen.go", "sym", KindFunction, i, 0),
			Embedding: seededVec(dims, int64(i)),
		}
	}
	return entries
}

func TestVectorStore_EmptyUntilFirstUpsert(t *testing.T) {
	vs := NewVectorStore(DefaultVectorStoreConfig(4), "", nil)
	defer func() { _ = vs.Close() }()

	assert.True(t, vs.IsEmpty())
	assert.Equal(t, 0, vs.Count())

	require.NoError(t, vs.Upsert([]VectorEntry{{SymbolID: "a", Embedding: []float32{1, 0, 0, 0}}}))
	assert.False(t, vs.IsEmpty())
	assert.Equal(t, 1, vs.Count())
}

func TestVectorStore_LinearSearch_ThresholdAndOrder(t *testing.T) {
	vs := NewVectorStore(DefaultVectorStoreConfig(2), "", nil)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Upsert([]VectorEntry{
		{SymbolID: "identical", Embedding: []float32{1, 0}},
		{SymbolID: "close", Embedding: []float32{0.6, 0.8}},
		{SymbolID: "orthogonal", Embedding: []float32{0, 1}},
	}))

	matches, strategy, err := vs.Search(context.Background(), []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, StrategyLinear, strategy)
	require.Len(t, matches, 2)
	assert.Equal(t, "identical", matches[0].SymbolID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "close", matches[1].SymbolID)
	assert.InDelta(t, 0.6, matches[1].Score, 1e-6)
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	vs := NewVectorStore(DefaultVectorStoreConfig(4), "", nil)
	defer func() { _ = vs.Close() }()

	err := vs.Upsert([]VectorEntry{{SymbolID: "bad", Embedding: []float32{1, 2}}})
	var dimErr *ErrDimensionMismatch
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	require.NoError(t, vs.Upsert([]VectorEntry{{SymbolID: "ok", Embedding: []float32{1, 0, 0, 0}}}))
	_, _, err = vs.Search(context.Background(), []float32{1, 0}, 5, 0)
	require.True(t, errors.As(err, &dimErr))
}

func TestVectorStore_Rebuild_PublishesGraph(t *testing.T) {
	const dims = 16
	vs := NewVectorStore(DefaultVectorStoreConfig(dims), "", nil)
	defer func() { _ = vs.Close() }()

	entries := seededEntries(50, dims)
	require.NoError(t, vs.Upsert(entries))
	assert.Equal(t, StrategyLinear, vs.Stats().Strategy)

	require.NoError(t, vs.Rebuild(context.Background()))

	stats := vs.Stats()
	assert.Equal(t, StrategyHNSW, stats.Strategy)
	assert.Equal(t, 50, stats.GraphNodes)

	// Searching with an entry's own vector finds it first.
	matches, strategy, err := vs.Search(context.Background(), entries[7].Embedding, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, StrategyHNSW, strategy)
	require.NotEmpty(t, matches)
	assert.Equal(t, entries[7].SymbolID, matches[0].SymbolID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
}

func TestVectorStore_DeletedEntriesNeverSurface(t *testing.T) {
	const dims = 16
	vs := NewVectorStore(DefaultVectorStoreConfig(dims), "", nil)
	defer func() { _ = vs.Close() }()

	entries := seededEntries(20, dims)
	require.NoError(t, vs.Upsert(entries))
	require.NoError(t, vs.Rebuild(context.Background()))

	// Delete after the rebuild, so the graph still holds the node.
	victim := entries[3]
	vs.Delete([]string{victim.SymbolID})

	matches, strategy, err := vs.Search(context.Background(), victim.Embedding, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, StrategyHNSW, strategy)
	for _, m := range matches {
		assert.NotEqual(t, victim.SymbolID, m.SymbolID)
	}
}

func TestVectorStore_NewEntriesSearchableAfterNextRebuild(t *testing.T) {
	const dims = 16
	vs := NewVectorStore(DefaultVectorStoreConfig(dims), "", nil)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Upsert(seededEntries(10, dims)))
	require.NoError(t, vs.Rebuild(context.Background()))

	late := VectorEntry{SymbolID: "late-arrival", Embedding: seededVec(dims, 999)}
	require.NoError(t, vs.Upsert([]VectorEntry{late}))
	require.NoError(t, vs.Rebuild(context.Background()))

	matches, _, err := vs.Search(context.Background(), late.Embedding, 3, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "late-arrival", matches[0].SymbolID)
}

func TestVectorStore_Rebuild_CancelledContextAborts(t *testing.T) {
	vs := NewVectorStore(DefaultVectorStoreConfig(8), "", nil)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Upsert(seededEntries(10, 8)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := vs.Rebuild(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The old (absent) graph is untouched.
	assert.Equal(t, 0, vs.Stats().GraphNodes)
}

func TestVectorStore_SearchStaysResponsiveDuringRebuild(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const dims = 64
	vs := NewVectorStore(DefaultVectorStoreConfig(dims), "", nil)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Upsert(seededEntries(3000, dims)))
	query := seededVec(dims, 12345)

	var g errgroup.Group
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return vs.Rebuild(context.Background())
	})

	g.Go(func() error {
		for {
			start := time.Now()
			_, _, err := vs.Search(context.Background(), query, 10, 0)
			if err != nil {
				return err
			}
			// A search must never block for the duration of the build.
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("search blocked for %v during rebuild", elapsed)
			}
			select {
			case <-done:
				return nil
			default:
			}
		}
	})

	require.NoError(t, g.Wait())
	assert.Equal(t, StrategyHNSW, vs.Stats().Strategy)
}

func TestVectorStore_SaveAndLoadGraph(t *testing.T) {
	const dims = 16
	path := filepath.Join(t.TempDir(), "vectors", "graph.hnsw")
	entries := seededEntries(25, dims)

	vs := NewVectorStore(DefaultVectorStoreConfig(dims), path, nil)
	require.NoError(t, vs.Upsert(entries))
	require.NoError(t, vs.Rebuild(context.Background()))
	require.NoError(t, vs.Close())

	// A fresh store loads the cached graph instead of rebuilding.
	reopened := NewVectorStore(DefaultVectorStoreConfig(dims), path, nil)
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.ReplaceAll(entries))
	require.NoError(t, reopened.LoadGraph())

	stats := reopened.Stats()
	assert.Equal(t, StrategyHNSW, stats.Strategy)
	assert.Equal(t, 25, stats.GraphNodes)

	matches, strategy, err := reopened.Search(context.Background(), entries[0].Embedding, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, StrategyHNSW, strategy)
	require.NotEmpty(t, matches)
	assert.Equal(t, entries[0].SymbolID, matches[0].SymbolID)
}

func TestVectorStore_LoadGraph_IgnoresDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.hnsw")

	vs := NewVectorStore(DefaultVectorStoreConfig(4), path, nil)
	require.NoError(t, vs.Upsert(seededEntries(5, 4)))
	require.NoError(t, vs.Rebuild(context.Background()))
	require.NoError(t, vs.Close())

	// Same cache path, different embedding dimension.
	other := NewVectorStore(DefaultVectorStoreConfig(8), path, nil)
	defer func() { _ = other.Close() }()
	require.NoError(t, other.LoadGraph())
	assert.Equal(t, 0, other.Stats().GraphNodes)
}

func TestVectorStore_ReplaceAllSwapsEntireSet(t *testing.T) {
	vs := NewVectorStore(DefaultVectorStoreConfig(2), "", nil)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Upsert([]VectorEntry{{SymbolID: "old", Embedding: []float32{1, 0}}}))
	require.NoError(t, vs.ReplaceAll([]VectorEntry{{SymbolID: "new", Embedding: []float32{0, 1}}}))

	matches, _, err := vs.Search(context.Background(), []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].SymbolID)
}
