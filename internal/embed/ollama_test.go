package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOllamaStub serves /api/tags with the given models and /api/embed
// with fixed-dimension vectors.
func newOllamaStub(t *testing.T, models []string, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		infos := make([]ollamaModelInfo, len(models))
		for i, m := range models {
			infos[i] = ollamaModelInfo{Name: m}
		}
		_ = json.NewEncoder(w).Encode(ollamaTagsResponse{Models: infos})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		count := 1
		if arr, ok := req.Input.([]any); ok {
			count = len(arr)
		}
		embeddings := make([][]float64, count)
		for i := range embeddings {
			vec := make([]float64, dims)
			vec[i%dims] = 1.0
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_DetectsDimensions(t *testing.T) {
	srv := newOllamaStub(t, []string{"nomic-embed-text:latest"}, 768)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 768, e.Dimensions())
	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_ModelNotPulled(t *testing.T) {
	srv := newOllamaStub(t, []string{"llama3:8b"}, 768)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaEmbedder_HostDown(t *testing.T) {
	srv := newOllamaStub(t, []string{"nomic-embed-text"}, 8)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	assert.Error(t, err)
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newOllamaStub(t, []string{"nomic-embed-text"}, 8)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:      srv.URL,
		Model:     "nomic-embed-text",
		BatchSize: 2,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "  ", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	// Blank input never reaches the API and stays a zero vector.
	assert.Zero(t, vectorNorm(vecs[2]))
	for _, i := range []int{0, 1, 3} {
		assert.InDelta(t, 1.0, vectorNorm(vecs[i]), 1e-5)
	}
}

func TestOllamaEmbedder_SkipHealthCheck(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		Model:           "nomic-embed-text",
		SkipHealthCheck: true,
		Dimensions:      512,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 512, e.Dimensions())
}
