package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BackendQdrant names the Qdrant backend.
const BackendQdrant = "qdrant"

var qdrantTracer = otel.Tracer("docrag.vectorstore.qdrant")

// pointNamespace derives stable point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("6f1c3b8e-2f53-4c0e-9a51-7d4f9c1e2b60")

// maxTieFetch bounds the second query issued when results tie at the cut-off.
const maxTieFetch = 10000

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port, not the HTTP port.
	// Default: 6334
	Port int

	// Collection is the collection name. Created on startup if missing.
	// Default: "docrag_docs"
	Collection string

	// VectorSize must match the embedder's output dimension.
	// Default: 384
	VectorSize int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey is sent with every request when set.
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.VectorSize == 0 {
		c.VectorSize = DefaultVectorSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// qdrantClient is the subset of *qdrant.Client used by QdrantStore.
type qdrantClient interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// QdrantStore implements Store on a Qdrant collection over gRPC.
//
// Operations are attempted once. Transient gRPC failures are reported as
// such in logs (see IsTransientError) but never retried here.
type QdrantStore struct {
	client qdrantClient
	config QdrantConfig
	logger *zap.Logger
	seq    *sequencer
}

// NewQdrantStore connects, health-checks the server and ensures the
// collection exists.
func NewQdrantStore(ctx context.Context, config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store, err := newQdrantStore(ctx, client, config, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func newQdrantStore(ctx context.Context, client qdrantClient, config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Open")
	defer span.End()

	fail := func(err error) (*QdrantStore, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		return fail(fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err))
	}

	exists, err := client.CollectionExists(ctx, config.Collection)
	if err != nil {
		return fail(fmt.Errorf("checking collection %s: %w", config.Collection, err))
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(config.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fail(fmt.Errorf("creating collection %s: %w", config.Collection, err))
		}
		logger.Info("created qdrant collection", zap.String("collection", config.Collection))
	}

	// order_by needs a range index on the field. Creating it again is a no-op.
	_, err = client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: config.Collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      KeySeq,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		FieldIndexParams: qdrant.NewPayloadIndexParamsInt(&qdrant.IntegerIndexParams{
			Lookup: qdrant.PtrOf(false),
			Range:  qdrant.PtrOf(true),
		}),
	})
	if err != nil {
		return fail(fmt.Errorf("indexing %s.%s: %w", config.Collection, KeySeq, err))
	}

	next, err := nextQdrantSeq(ctx, client, config.Collection)
	if err != nil {
		return fail(fmt.Errorf("reading insertion sequence of %s: %w", config.Collection, err))
	}

	count, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return fail(fmt.Errorf("counting points in %s: %w", config.Collection, err))
	}

	logger.Info("qdrant store opened",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Uint64("chunks", count),
		zap.Int64("next_seq", next),
	)
	span.SetStatus(codes.Ok, "ready")

	return &QdrantStore{
		client: client,
		config: config,
		logger: logger,
		seq:    newSequencer(next),
	}, nil
}

// nextQdrantSeq is one past the highest seq stored in collection. Points
// from a failed batch may be missing, so the point count is not enough.
func nextQdrantSeq(ctx context.Context, client qdrantClient, collection string) (int64, error) {
	points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayloadInclude(KeySeq),
		OrderBy: &qdrant.OrderBy{
			Key:       KeySeq,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	return points[0].GetPayload()[KeySeq].GetIntegerValue() + 1, nil
}

// IsTransientError reports whether err is a gRPC failure that might succeed
// if attempted again (unavailable, deadline exceeded, aborted, resource
// exhausted).
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// Add implements Store. The batch is sent as a single upsert.
func (s *QdrantStore) Add(ctx context.Context, chunks []Chunk) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Add")
	defer span.End()
	span.SetAttributes(
		attribute.Int("chunk_count", len(chunks)),
		attribute.String("collection", s.config.Collection),
	)

	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	first := s.seq.reserve(len(chunks))
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: chunkPayload(c, first+int64(i)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		WriteFailures.WithLabelValues(BackendQdrant).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("qdrant upsert failed",
			zap.String("collection", s.config.Collection),
			zap.Int("count", len(chunks)),
			zap.Bool("transient", IsTransientError(err)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: upserting to %s: %v", ErrWriteFailed, s.config.Collection, err)
	}

	ChunksAdded.WithLabelValues(BackendQdrant).Add(float64(len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// PointID maps a chunk id to the UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func chunkPayload(c Chunk, seq int64) map[string]*qdrant.Value {
	str := func(v string) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	num := func(v int64) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
	}
	return map[string]*qdrant.Value{
		"id":          str(c.ID),
		KeyText:       str(c.Text),
		KeyDocumentID: str(c.DocumentID),
		KeyFilename:   str(c.Filename),
		KeyOrdinal:    num(int64(c.Ordinal)),
		KeySeq:        num(seq),
	}
}

func pointResult(p *qdrant.ScoredPoint) SearchResult {
	r := SearchResult{Score: p.GetScore()}
	for k, v := range p.GetPayload() {
		switch k {
		case "id":
			r.ID = v.GetStringValue()
		case KeyText:
			r.Text = v.GetStringValue()
		case KeyDocumentID:
			r.Metadata.DocumentID = v.GetStringValue()
		case KeyFilename:
			r.Metadata.Filename = v.GetStringValue()
		case KeyOrdinal:
			r.Metadata.Ordinal = int(v.GetIntegerValue())
		case KeySeq:
			r.seq = v.GetIntegerValue()
		}
	}
	return r
}

// Query implements Store. When the (k+1)-th hit ties with the k-th, a second
// query fetches every point at that score so ties resolve by insertion order.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) []SearchResult {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", topK), attribute.String("collection", s.config.Collection))

	start := time.Now()
	defer func() {
		QueryDuration.WithLabelValues(BackendQdrant).Observe(time.Since(start).Seconds())
	}()

	if topK <= 0 {
		return []SearchResult{}
	}
	if len(vector) != s.config.VectorSize {
		s.queryFailed(ctx, fmt.Errorf("query vector has dimension %d, want %d", len(vector), s.config.VectorSize))
		return []SearchResult{}
	}

	points, err := s.search(ctx, vector, uint64(topK)+1, nil)
	if err != nil {
		s.queryFailed(ctx, err)
		return []SearchResult{}
	}
	if len(points) > topK && points[topK].GetScore() == points[topK-1].GetScore() {
		threshold := points[topK-1].GetScore()
		points, err = s.search(ctx, vector, maxTieFetch, &threshold)
		if err != nil {
			s.queryFailed(ctx, err)
			return []SearchResult{}
		}
	}

	results := make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = pointResult(p)
	}
	results = rank(results, topK)

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results
}

func (s *QdrantStore) search(ctx context.Context, vector []float32, limit uint64, threshold *float32) ([]*qdrant.ScoredPoint, error) {
	return s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		ScoreThreshold: threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
}

func (s *QdrantStore) queryFailed(ctx context.Context, err error) {
	QueryFailures.WithLabelValues(BackendQdrant).Inc()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("vector query failed, returning no results",
		zap.String("collection", s.config.Collection),
		zap.Bool("transient", IsTransientError(err)),
		zap.Error(err),
	)
}

// Count implements Store.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", s.config.Collection, err)
	}
	return int(n), nil
}

// Info implements Store.
func (s *QdrantStore) Info() Info {
	return Info{
		Backend:    BackendQdrant,
		Collection: s.config.Collection,
		VectorSize: s.config.VectorSize,
	}
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
