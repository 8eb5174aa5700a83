package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic local embedder. It hashes word tokens
// into a fixed-size vector and L2-normalizes the result, so equal texts
// always produce equal vectors and similar texts land near each other.
// Offline and test use only; it has no semantic understanding.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder with the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// EmbedDocuments generates embeddings for multiple texts.
func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query text.
func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New64a()
		hasher.Write([]byte(token))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dimension))
		// Half the hash bits pick the bucket, the other half the sign.
		if (sum>>32)&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// Dimension returns the configured embedding dimension.
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

// Close is a no-op for the hash embedder.
func (h *HashEmbedder) Close() error {
	return nil
}

var _ Embedder = (*HashEmbedder)(nil)
