package embed

import (
	"context"
	"log/slog"

	"github.com/symdex-dev/symdex/internal/config"
)

// New builds the embedder for the given config. The "ollama" provider
// falls back to the static embedder with a warning when Ollama is
// unreachable, so indexing always produces embeddings; the model name
// stored with them keeps the two providers from mixing. The result is
// always wrapped in the LRU cache.
func New(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Provider {
	case "ollama":
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      cfg.OllamaHost,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			logger.Warn("ollama_unavailable",
				slog.String("host", cfg.OllamaHost),
				slog.String("error", err.Error()))
			inner = NewStaticEmbedder()
		} else {
			inner = ollama
		}
	default:
		inner = NewStaticEmbedder()
	}

	logger.Debug("embedder_ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize)
}
