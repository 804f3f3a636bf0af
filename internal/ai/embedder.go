package ai

import (
	"context"
	"errors"
	"fmt"

	"aim-assistant-backend/internal/config"
)

// ErrEmbeddingUnavailable marks embedding provider failures. Callers can
// retry; a zero vector is never returned in place of an error.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Embedder maps text to fixed-length vectors. Implementations must be
// deterministic for identical input within a single model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
	Close() error
}

// NewEmbedder builds the configured embedding provider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		return NewGoogleEmbedder(ctx, cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}
