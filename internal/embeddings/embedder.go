package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Embedder maps a batch of texts to one vector per text. Output order
// matches input order and every vector has the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is an Embedder backed by a concrete model.
type Provider interface {
	Embedder
	// Model returns the configured model name.
	Model() string
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// EmbedOne embeds a single text as a one-item batch.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vecs))
	}
	return vecs[0], nil
}

func validateInput(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: text at index %d is blank", ErrEmptyInput, i)
		}
	}
	return nil
}
