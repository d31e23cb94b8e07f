package retrieval

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"

	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const testDim = 16

// hashEmbedder maps each text to a unit vector seeded by its hash, so equal
// texts embed identically and distinct texts almost never do.
type hashEmbedder struct {
	calls atomic.Int32
	err   error
	short bool
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls.Add(1)
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	if h.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func hashVector(text string) []float32 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	x := f.Sum64()
	v := make([]float32, testDim)
	var norm float64
	for i := range v {
		x = x*6364136223846793005 + 1442695040888963407
		v[i] = float32(int32(x>>32)) / float32(math.MaxInt32)
		norm += float64(v[i]) * float64(v[i])
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// failingStore rejects every write and answers every query with nothing.
type failingStore struct{}

func (failingStore) Add(context.Context, []vectorstore.Chunk) error {
	return vectorstore.ErrWriteFailed
}

func (failingStore) Query(context.Context, []float32, int) []vectorstore.SearchResult {
	return []vectorstore.SearchResult{}
}

func (failingStore) Count(context.Context) (int, error) { return 0, errors.New("count unavailable") }

func (failingStore) Info() vectorstore.Info {
	return vectorstore.Info{Backend: "failing", Collection: "none", VectorSize: testDim}
}

func (failingStore) Close() error { return nil }

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Ingested
	err    error
}

func (r *recordingPublisher) PublishIngested(_ context.Context, ev events.Ingested) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Published() []events.Ingested {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Ingested(nil), r.events...)
}
