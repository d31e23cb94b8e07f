package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Service is the part of the retrieval pipeline the tools call.
type Service interface {
	Ingest(ctx context.Context, data []byte, filename string) (retrieval.IngestResult, error)
	Retrieve(ctx context.Context, query string, topK int) []vectorstore.SearchResult
	Stats(ctx context.Context) (retrieval.Stats, error)
}

// Server registers docrag tools on an MCP server.
type Server struct {
	mcp      *mcp.Server
	service  Service
	scrubber secrets.Scrubber
	metrics  *toolMetrics
	logger   *zap.Logger
	config   *Config
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docrag")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// Logger for structured logging. In stdio mode it must not write to stdout.
	Logger *zap.Logger

	// DefaultTopK and MaxTopK bound document_search.
	DefaultTopK int
	MaxTopK     int

	// MaxFileBytes caps files read by document_ingest. Zero means no limit.
	MaxFileBytes int64

	// IngestRoot confines document_ingest paths to one directory tree.
	// Empty allows any readable path.
	IngestRoot string

	// Meter receives tool metrics; nil uses the global provider.
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:         "docrag",
		Version:      "0.1.0",
		Logger:       zap.NewNop(),
		DefaultTopK:  5,
		MaxTopK:      50,
		MaxFileBytes: 25 << 20,
	}
}

// NewServer creates an MCP server backed by service. A nil scrubber returns
// retrieved text unchanged.
func NewServer(cfg *Config, service Service, scrubber secrets.Scrubber) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = cfg.DefaultTopK
	}
	if service == nil {
		return nil, fmt.Errorf("retrieval service is required")
	}
	if scrubber == nil {
		scrubber = secrets.NoopScrubber{}
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		service:  service,
		scrubber: scrubber,
		metrics:  newToolMetrics(cfg.Meter, cfg.Logger),
		logger:   cfg.Logger,
		config:   cfg,
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying SDK server, for callers that bring their own transport.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
