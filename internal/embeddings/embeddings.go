// Package embeddings provides embedding generation for email content.
//
// Two providers are available: an OpenAI-compatible HTTP provider for
// production use, and a deterministic local hash provider for offline and
// test use. Both produce vectors of the configured dimension.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/mailsense/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")
)

// Embedder generates embeddings for texts.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the embedder.
	Close() error
}

// NewEmbedder creates an embedder based on the configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(cfg)
	case "hash":
		return NewHashEmbedder(cfg.VectorSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
