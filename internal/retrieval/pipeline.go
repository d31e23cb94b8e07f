package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/retrieval"

// Status is the outcome of a successful Ingest call.
type Status string

const (
	// StatusOK means chunks were stored under a new document id.
	StatusOK Status = "ok"
	// StatusNoContent means the upload held no indexable text.
	StatusNoContent Status = "no_content"
)

// IngestResult describes one ingestion.
type IngestResult struct {
	Status        Status `json:"status"`
	DocumentID    string `json:"document_id,omitempty"`
	Filename      string `json:"filename"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Chunks     int    `json:"chunks"`
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
}

// Extractor reads plain text out of an uploaded file.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Chunk(text string) []string
}

// Pipeline ingests documents and answers similarity queries.
type Pipeline struct {
	extractor Extractor
	chunker   Chunker
	embedder  embeddings.Embedder
	store     vectorstore.Store
	publisher events.Publisher
	logger    *logging.Logger
	tracer    trace.Tracer

	newID func() string
	now   func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPublisher sets where ingestion events go. Defaults to events.NopPublisher.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New assembles a pipeline. All four collaborators are required.
func New(extractor Extractor, chunker Chunker, embedder embeddings.Embedder, store vectorstore.Store, opts ...Option) (*Pipeline, error) {
	switch {
	case extractor == nil:
		return nil, fmt.Errorf("%w: extractor cannot be nil", ErrInvalidPipeline)
	case chunker == nil:
		return nil, fmt.Errorf("%w: chunker cannot be nil", ErrInvalidPipeline)
	case embedder == nil:
		return nil, fmt.Errorf("%w: embedder cannot be nil", ErrInvalidPipeline)
	case store == nil:
		return nil, fmt.Errorf("%w: store cannot be nil", ErrInvalidPipeline)
	}

	p := &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		publisher: events.NopPublisher{},
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest extracts, chunks, embeds and stores one uploaded file.
//
// Text that is empty after trimming yields StatusNoContent and stores
// nothing. A failure after some chunks reached the store can leave those
// chunks behind; callers recover by ingesting again.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename string) (res IngestResult, err error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Ingest", trace.WithAttributes(
		attribute.String("document.filename", filename),
		attribute.Int("document.bytes", len(data)),
	))
	start := time.Now()
	defer func() {
		IngestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			Ingestions.WithLabelValues(statusError).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			Ingestions.WithLabelValues(string(res.Status)).Inc()
			span.SetAttributes(attribute.String("ingest.status", string(res.Status)))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	res = IngestResult{Filename: filename}

	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		p.logger.Warn(ctx, "extraction failed", zap.String("filename", filename), zap.Error(err))
		return res, fmt.Errorf("%w: %s: %w", ErrExtraction, filename, err)
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Info(ctx, "no text to index", zap.String("filename", filename))
		res.Status = StatusNoContent
		return res, nil
	}

	texts := p.chunker.Chunk(text)
	if len(texts) == 0 {
		res.Status = StatusNoContent
		return res, nil
	}

	docID := p.newID()
	ctx = logging.WithDocument(ctx, docID, filename)
	span.SetAttributes(
		attribute.String("document.id", docID),
		attribute.Int("document.chunks", len(texts)),
	)

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.logger.Error(ctx, "embedding chunks failed", zap.Int("chunks", len(texts)), zap.Error(err))
		return res, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(texts))
		p.logger.Error(ctx, "embedding chunks failed", zap.Error(err))
		return res, err
	}

	chunks := make([]vectorstore.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = vectorstore.Chunk{
			ID:         vectorstore.ChunkID(docID, i),
			DocumentID: docID,
			Filename:   filename,
			Ordinal:    i,
			Text:       t,
			Embedding:  vectors[i],
		}
	}
	if err := p.store.Add(ctx, chunks); err != nil {
		p.logger.Error(ctx, "storing chunks failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return res, fmt.Errorf("%w: %w", ErrStore, err)
	}

	ChunksIndexed.Add(float64(len(chunks)))
	res.Status = StatusOK
	res.DocumentID = docID
	res.ChunksIndexed = len(chunks)
	p.logger.Info(ctx, "document indexed", zap.Int("chunks", len(chunks)))

	ev := events.Ingested{
		DocumentID:    docID,
		Filename:      filename,
		ChunksIndexed: len(chunks),
		IngestedAt:    p.now().UTC(),
	}
	if perr := p.publisher.PublishIngested(ctx, ev); perr != nil {
		p.logger.Warn(ctx, "publishing ingestion event failed", zap.Error(perr))
	}
	return res, nil
}

// Retrieve returns up to topK chunks most similar to query, best first.
// It never fails; anything that goes wrong yields an empty slice.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) []vectorstore.SearchResult {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Retrieve", trace.WithAttributes(
		attribute.Int("k", topK),
	))
	defer span.End()

	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []vectorstore.SearchResult{}
	}

	vec, err := embeddings.EmbedOne(ctx, p.embedder, query)
	if err != nil {
		RetrievalsDegraded.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn(ctx, "embedding query failed, returning no results", zap.Error(err))
		return []vectorstore.SearchResult{}
	}

	results := p.store.Query(ctx, vec, topK)
	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	for i, r := range results {
		p.logger.Trace(ctx, "retrieved chunk", zap.Int("rank", i), zap.String("chunk_id", r.ID), zap.Float32("score", r.Score))
	}
	p.logger.Debug(ctx, "retrieval completed", zap.Int("k", topK), zap.Int("results", len(results)))
	return results
}

// Stats reports the size and location of the index.
func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	n, err := p.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	info := p.store.Info()
	return Stats{Chunks: n, Backend: info.Backend, Collection: info.Collection}, nil
}
