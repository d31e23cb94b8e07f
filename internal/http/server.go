// Package http serves the document upload and retrieval API.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Service is the part of the retrieval pipeline the API exposes.
type Service interface {
	Ingest(ctx context.Context, data []byte, filename string) (retrieval.IngestResult, error)
	Retrieve(ctx context.Context, query string, topK int) []vectorstore.SearchResult
	Stats(ctx context.Context) (retrieval.Stats, error)
}

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo     *echo.Echo
	service  Service
	scrubber secrets.Scrubber
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes caps request bodies. Zero disables the limit.
	MaxUploadBytes int64

	// UploadRate is the sustained uploads per second allowed per client IP.
	// Zero disables rate limiting.
	UploadRate  float64
	UploadBurst int

	DefaultTopK int
	MaxTopK     int

	// Meter receives request metrics; nil uses the global provider.
	Meter metric.Meter
}

// DefaultConfig returns the configuration used when NewServer gets nil.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8088,
		MaxUploadBytes: 25 << 20,
		UploadRate:     2,
		UploadBurst:    5,
		DefaultTopK:    5,
		MaxTopK:        50,
	}
}

// NewServer creates a new HTTP server. A nil scrubber returns retrieved text
// unchanged.
func NewServer(service Service, scrubber secrets.Scrubber, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if scrubber == nil {
		scrubber = secrets.NoopScrubber{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = cfg.DefaultTopK
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(newRequestMetrics(cfg.Meter, logger).middleware())
	e.Use(requestLogger(logger))
	if cfg.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes, 10) + "B"))
	}

	s := &Server{
		echo:     e,
		service:  service,
		scrubber: scrubber,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// requestLogger logs every request and carries its id into the request
// context so pipeline logs correlate with it. Handler errors are rendered
// here so the logged and metered status is final.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return nil
		}
	}
}

func (s *Server) uploadLimiter() echo.MiddlewareFunc {
	if s.config.UploadRate <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := s.config.UploadBurst
	if burst <= 0 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.UploadRate),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn("upload rate limited", zap.String("client", identifier))
			return echo.NewHTTPError(http.StatusTooManyRequests, "upload rate limit exceeded")
		},
	})
}

// Route paths.
const (
	routeHealth    = "/health"
	routeDocuments = "/api/v1/documents"
	routeRetrieve  = "/api/v1/retrieve"
	routeStats     = "/api/v1/stats"
)

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET(routeHealth, s.handleHealth)
	s.echo.POST(routeDocuments, s.handleUpload, s.uploadLimiter())
	s.echo.POST(routeRetrieve, s.handleRetrieve)
	s.echo.GET(routeStats, s.handleStats)
}

// handleHealth reports liveness and the current index size.
func (s *Server) handleHealth(c echo.Context) error {
	stats, err := s.service.Stats(c.Request().Context())
	if err != nil {
		s.logger.Warn("health check could not count chunks", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Documents: &DocumentCounts{Chunks: stats.Chunks},
	})
}

// handleUpload ingests the multipart field "file".
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}

	filename := sanitize.Filename(fh.Filename)
	res, err := s.service.Ingest(c.Request().Context(), data, filename)
	switch {
	case errors.Is(err, retrieval.ErrExtraction):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not extract text from "+filename)
	case err != nil:
		s.logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}
	return c.JSON(http.StatusOK, res)
}

// handleRetrieve answers a similarity query with scrubbed chunk text.
func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid retrieve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	results := s.service.Retrieve(c.Request().Context(), req.Query, s.topK(req.TopK))
	for i := range results {
		scrubbed := s.scrubber.Scrub(results[i].Text)
		if scrubbed.Redacted() {
			s.logger.Debug("redacted retrieved chunk",
				zap.String("chunk_id", results[i].ID),
				zap.Int("findings", len(scrubbed.Findings)),
			)
		}
		results[i].Text = scrubbed.Text
	}
	return c.JSON(http.StatusOK, RetrieveResponse{Results: results, Count: len(results)})
}

func (s *Server) topK(requested int) int {
	switch {
	case requested <= 0:
		return s.config.DefaultTopK
	case requested > s.config.MaxTopK:
		return s.config.MaxTopK
	default:
		return requested
	}
}

// handleStats reports the index size and backend.
func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.service.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats unavailable")
	}
	return c.JSON(http.StatusOK, stats)
}

// Echo exposes the router so callers can mount extra handlers such as /metrics.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
