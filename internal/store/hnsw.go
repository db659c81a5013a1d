package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"
)

// hnswGraph wraps a coder/hnsw graph with the string-to-key mapping the
// library does not provide. A graph is built once from a snapshot and
// then only read; VectorStore swaps whole graphs on rebuild, so no
// in-place mutation or locking happens here.
type hnswGraph struct {
	graph  *hnsw.Graph[uint64]
	idMap  map[string]uint64
	keyMap map[uint64]string
	next   uint64
	config VectorStoreConfig
}

// hnswMeta is the gob sidecar persisted next to the exported graph.
type hnswMeta struct {
	IDMap  map[string]uint64
	Next   uint64
	Config VectorStoreConfig
}

func newHNSWGraph(cfg VectorStoreConfig) *hnswGraph {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &hnswGraph{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		config: cfg,
	}
}

// add inserts one vector. The input is copied and normalized so cosine
// distance behaves on unnormalized embeddings.
func (g *hnswGraph) add(id string, vec []float32) {
	key := g.next
	g.next++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	g.graph.Add(hnsw.MakeNode(key, normalized))
	g.idMap[id] = key
	g.keyMap[key] = id
}

// search returns up to k nearest entries with cosine similarity scores.
func (g *hnswGraph) search(query []float32, k int) []VectorMatch {
	if g.graph.Len() == 0 || k <= 0 {
		return nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := g.graph.Search(normalized, k)
	matches := make([]VectorMatch, 0, len(nodes))
	for _, node := range nodes {
		id, ok := g.keyMap[node.Key]
		if !ok {
			continue
		}
		// Cosine distance runs 0 (identical) to 2 (opposite).
		distance := g.graph.Distance(normalized, node.Value)
		matches = append(matches, VectorMatch{
			SymbolID: id,
			Score:    1.0 - float64(distance)/2.0,
		})
	}
	return matches
}

func (g *hnswGraph) size() int {
	return len(g.idMap)
}

// save exports the graph and its id mapping atomically: each file is
// written to a temp path and renamed into place, graph first so a crash
// never leaves a mapping without its graph.
func (g *hnswGraph) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create vector directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	if err := g.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close graph file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename graph file: %w", err)
	}

	return g.saveMeta(path + ".meta")
}

func (g *hnswGraph) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create meta file: %w", err)
	}

	meta := hnswMeta{IDMap: g.idMap, Next: g.next, Config: g.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode graph meta: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close meta file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// loadHNSWGraph restores a previously saved graph. Returns nil without
// error when no graph has been saved yet.
func loadHNSWGraph(path string) (*hnswGraph, error) {
	metaFile, err := os.Open(path + ".meta")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open graph meta: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode graph meta: %w", err)
	}

	g := newHNSWGraph(meta.Config)
	g.idMap = meta.IDMap
	g.next = meta.Next
	for id, key := range g.idMap {
		g.keyMap[key] = id
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer file.Close()

	// Import needs an io.ByteReader.
	if err := g.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("failed to import graph: %w", err)
	}
	return g, nil
}
