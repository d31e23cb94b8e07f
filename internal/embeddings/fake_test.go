package embeddings

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// fakeProvider returns deterministic vectors derived from each text's hash.
type fakeProvider struct {
	dim   int
	calls atomic.Int32
	err   error
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if err := validateInput(texts); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, f.dim)
	}
	return out, nil
}

func (f *fakeProvider) Model() string  { return "fake-model" }
func (f *fakeProvider) Dimension() int { return f.dim }
func (f *fakeProvider) Close() error   { return nil }

func hashVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, dim)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed>>40) / float32(1<<24)
	}
	return v
}
