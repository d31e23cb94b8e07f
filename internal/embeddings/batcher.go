package embeddings

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultBatchSize is the number of texts sent to the inner embedder per call.
const DefaultBatchSize = 64

// Batcher splits large inputs into fixed-size batches and embeds them
// concurrently on a bounded worker pool. Results are reassembled in input
// order, so the output is identical to a single call on the inner embedder.
type Batcher struct {
	inner     Embedder
	pool      *ants.Pool
	batchSize int
}

// BatcherOption configures a Batcher.
type BatcherOption func(*batcherOptions)

type batcherOptions struct {
	batchSize int
	poolSize  int
}

// WithBatchSize sets the per-call batch size. Values below 1 are ignored.
func WithBatchSize(n int) BatcherOption {
	return func(o *batcherOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithPoolSize sets the number of concurrent workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(n int) BatcherOption {
	return func(o *batcherOptions) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// NewBatcher wraps inner. Call Release when done.
func NewBatcher(inner Embedder, opts ...BatcherOption) (*Batcher, error) {
	o := batcherOptions{
		batchSize: DefaultBatchSize,
		poolSize:  runtime.NumCPU() / 2,
	}
	if o.poolSize < 1 {
		o.poolSize = 1
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := ants.NewPool(o.poolSize)
	if err != nil {
		return nil, err
	}
	return &Batcher{inner: inner, pool: pool, batchSize: o.batchSize}, nil
}

// Embed implements Embedder.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInput(texts); err != nil {
		return nil, err
	}
	if len(texts) <= b.batchSize {
		return b.inner.Embed(ctx, texts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := b.inner.Embed(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), end-start))
				return
			}
			copy(out[start:end], vecs)
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	// Parent cancellation stops workers before they record an error.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Release stops the worker pool. The inner embedder is not closed.
func (b *Batcher) Release() {
	b.pool.Release()
}
