// Package embed provides the embedding collaborators used for
// semantic search: a deterministic hash-based embedder that needs no
// network, an Ollama-backed embedder, and an LRU caching wrapper.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// StaticDimensions is the dimension of the hash-based embedder.
	StaticDimensions = 256

	// DefaultBatchSize is the number of texts per embedding request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds one embedding request against a warm model.
	DefaultTimeout = 60 * time.Second

	// ColdTimeout bounds the first request, which may trigger a model
	// load on the provider side.
	ColdTimeout = 180 * time.Second
)

// Embedder generates vector embeddings for text. Implementations are
// safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding of one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for several texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName identifies the model, recorded with stored embeddings
	// so a model switch invalidates them.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length so dot products are cosine
// similarities. Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return v
}
