package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BackendChromem names the embedded backend.
const BackendChromem = "chromem"

var chromemTracer = otel.Tracer("docrag.vectorstore.chromem")

// errNoEmbeddingFunc is returned if chromem is ever asked to embed text
// itself. Chunks always arrive with embeddings.
var errNoEmbeddingFunc = errors.New("chromem: documents must carry precomputed embeddings")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. A leading ~ is expanded.
	// Default: "./chroma_db"
	Path string

	// Compress enables gzip compression of persisted documents.
	Compress bool

	// Collection is the collection name.
	// Default: "docrag_docs"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Default: 384 (all-MiniLM-L6-v2)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.VectorSize == 0 {
		c.VectorSize = DefaultVectorSize
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store on an embedded chromem-go database.
//
// Every document is persisted to its own file under Path as soon as it is
// added, so a failure part-way through a batch leaves the earlier documents
// on disk.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger
	seq        *sequencer
}

// NewChromemStore opens or creates the database at config.Path.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrConnectionFailed, err)
	}
	collection, err := db.GetOrCreateCollection(config.Collection, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	count := collection.Count()
	next, err := nextChromemSeq(context.Background(), collection, config.VectorSize)
	if err != nil {
		return nil, fmt.Errorf("reading insertion sequence of %s: %w", config.Collection, err)
	}
	logger.Info("chromem store opened",
		zap.String("path", path),
		zap.String("collection", config.Collection),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.Int("chunks", count),
		zap.Int64("next_seq", next),
	)

	return &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
		seq:        newSequencer(next),
	}, nil
}

// nextChromemSeq is one past the highest seq stored in collection. A failed
// batch can leave gaps, so the document count is not enough. chromem has no
// listing call; a query for every document returns all metadata.
func nextChromemSeq(ctx context.Context, collection *chromem.Collection, dim int) (int64, error) {
	n := collection.Count()
	if n == 0 {
		return 0, nil
	}
	probe := make([]float32, dim)
	probe[0] = 1
	docs, err := collection.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return 0, err
	}
	var next int64
	for _, d := range docs {
		seq, err := strconv.ParseInt(d.Metadata[KeySeq], 10, 64)
		if err != nil {
			continue
		}
		next = max(next, seq+1)
	}
	return next, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Add implements Store.
func (s *ChromemStore) Add(ctx context.Context, chunks []Chunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	first := s.seq.reserve(len(chunks))
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Text,
			Metadata: map[string]string{
				KeyDocumentID: c.DocumentID,
				KeyFilename:   c.Filename,
				KeyOrdinal:    strconv.Itoa(c.Ordinal),
				KeySeq:        strconv.FormatInt(first+int64(i), 10),
			},
			// copied so the caller's slice is never normalised
			Embedding: append([]float32(nil), c.Embedding...),
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		WriteFailures.WithLabelValues(BackendChromem).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	ChunksAdded.WithLabelValues(BackendChromem).Add(float64(len(chunks)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added chunks to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Query implements Store. Similarity is computed exhaustively so that every
// candidate tied with the k-th result is considered for ordering.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, topK int) []SearchResult {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", topK))

	start := time.Now()
	defer func() {
		QueryDuration.WithLabelValues(BackendChromem).Observe(time.Since(start).Seconds())
	}()

	count := s.collection.Count()
	if topK <= 0 || count == 0 {
		return []SearchResult{}
	}
	if len(vector) != s.config.VectorSize {
		s.queryFailed(span, fmt.Errorf("query vector has dimension %d, want %d", len(vector), s.config.VectorSize))
		return []SearchResult{}
	}

	query := append([]float32(nil), vector...)
	found, err := s.collection.QueryEmbedding(ctx, query, count, nil, nil)
	if err != nil {
		s.queryFailed(span, err)
		return []SearchResult{}
	}

	results := make([]SearchResult, len(found))
	for i, r := range found {
		results[i] = chromemResult(r)
	}
	results = rank(results, topK)

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results
}

func (s *ChromemStore) queryFailed(span trace.Span, err error) {
	QueryFailures.WithLabelValues(BackendChromem).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("vector query failed, returning no results",
		zap.String("collection", s.config.Collection),
		zap.Error(err),
	)
}

func chromemResult(r chromem.Result) SearchResult {
	ordinal, _ := strconv.Atoi(r.Metadata[KeyOrdinal])
	seq, _ := strconv.ParseInt(r.Metadata[KeySeq], 10, 64)
	return SearchResult{
		ID:    r.ID,
		Text:  r.Content,
		Score: r.Similarity,
		Metadata: Metadata{
			DocumentID: r.Metadata[KeyDocumentID],
			Filename:   r.Metadata[KeyFilename],
			Ordinal:    ordinal,
		},
		seq: seq,
	}
}

// Count implements Store.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Info implements Store.
func (s *ChromemStore) Info() Info {
	return Info{
		Backend:    BackendChromem,
		Collection: s.config.Collection,
		VectorSize: s.config.VectorSize,
	}
}

// Close implements Store. Documents are persisted on write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}
