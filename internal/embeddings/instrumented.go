package embeddings

import (
	"context"
	"time"
)

// Instrumented wraps a Provider and records metrics for every Embed call.
type Instrumented struct {
	Provider
	name    string
	metrics *Metrics
}

// NewInstrumented wraps p. name labels the provider kind ("fastembed", "openai").
func NewInstrumented(p Provider, name string, m *Metrics) *Instrumented {
	return &Instrumented{Provider: p, name: name, metrics: m}
}

// Embed implements Embedder.
func (i *Instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Provider.Embed(ctx, texts)
	if i.metrics != nil {
		i.metrics.RecordGeneration(ctx, i.Provider.Model(), i.name, time.Since(start), len(texts), err)
	}
	return vecs, err
}
