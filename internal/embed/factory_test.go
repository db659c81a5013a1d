package embed

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex-dev/symdex/internal/config"
)

func TestNew_StaticProvider(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "static"

	e := New(context.Background(), cfg, slog.Default())
	defer func() { _ = e.Close() }()

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.inner)
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNew_OllamaFallsBackToStatic(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "ollama"
	cfg.OllamaHost = "http://127.0.0.1:1"

	e := New(context.Background(), cfg, slog.Default())
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static-hash-v1", e.ModelName())
}

func TestNew_OllamaProvider(t *testing.T) {
	srv := newOllamaStub(t, []string{"nomic-embed-text"}, 16)

	cfg := config.NewConfig().Embeddings
	cfg.Provider = "ollama"
	cfg.Model = "nomic-embed-text"
	cfg.OllamaHost = srv.URL

	e := New(context.Background(), cfg, slog.Default())
	defer func() { _ = e.Close() }()

	assert.Equal(t, 16, e.Dimensions())
	assert.Equal(t, "nomic-embed-text", e.ModelName())
}
