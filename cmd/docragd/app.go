package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunking"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// newProvider builds the embedding backend. Tests swap it for a local fake.
var newProvider = embeddings.NewProvider

// app holds the process-wide dependencies shared by every surface.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	provider  embeddings.Provider
	batcher   *embeddings.Batcher
	store     vectorstore.Store
	publisher events.Publisher
	scrubber  secrets.Scrubber
	pipeline  *retrieval.Pipeline

	closers []func() error
}

// newApp initializes everything in dependency order:
//  1. logger and telemetry
//  2. embedding provider behind an instrumented worker-pool batcher
//  3. vector store, sized from the embedder unless configured
//  4. event publisher and secret scrubber
//  5. the retrieval pipeline
//
// On error every dependency created so far is released.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.Background())
			a = nil
		}
	}()

	if err := a.initObservability(ctx); err != nil {
		return a, err
	}
	zl := a.logger.Underlying()

	a.logger.Info(ctx, "starting docragd",
		zap.String("version", version),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	provider, err := newProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Token:     cfg.Embedding.Token.Value(),
		Dimension: cfg.Embedding.Dimension,
		CacheDir:  cfg.Embedding.CacheDir,
		MaxLength: cfg.Embedding.MaxLength,
	})
	if err != nil {
		return a, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.provider = provider
	a.closers = append(a.closers, provider.Close)

	instrumented := embeddings.NewInstrumented(provider, cfg.Embedding.Provider, embeddings.NewMetrics(
		a.telemetry.Meter("github.com/fyrsmithlabs/docrag/internal/embeddings"), zl))
	batcher, err := embeddings.NewBatcher(instrumented,
		embeddings.WithBatchSize(cfg.Embedding.BatchSize),
		embeddings.WithPoolSize(cfg.Embedding.PoolSize))
	if err != nil {
		return a, fmt.Errorf("failed to create embedding batcher: %w", err)
	}
	a.batcher = batcher
	a.closers = append(a.closers, func() error { batcher.Release(); return nil })

	a.logger.Info(ctx, "embedding provider initialized",
		zap.String("model", provider.Model()),
		zap.Int("dimension", provider.Dimension()),
		zap.Object("embedding_token", cfg.Embedding.Token))

	storeCfg := cfg.Store
	if storeCfg.VectorSize == 0 {
		storeCfg.VectorSize = provider.Dimension()
	}
	store, err := vectorstore.NewStore(ctx, storeCfg, zl)
	if err != nil {
		return a, fmt.Errorf("failed to create vector store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	info := store.Info()
	a.logger.Info(ctx, "vector store ready",
		zap.String("backend", info.Backend),
		zap.String("collection", info.Collection),
		zap.Int("vector_size", info.VectorSize))

	if err := a.initPublisher(ctx); err != nil {
		return a, err
	}
	if err := a.initScrubber(ctx); err != nil {
		return a, err
	}

	chunker, err := chunking.New(
		chunking.WithChunkSize(cfg.Chunking.Size),
		chunking.WithOverlap(cfg.Chunking.Overlap))
	if err != nil {
		return a, fmt.Errorf("failed to create chunker: %w", err)
	}

	pipeline, err := retrieval.New(extraction.New(), chunker, batcher, store,
		retrieval.WithLogger(a.logger),
		retrieval.WithPublisher(a.publisher),
		retrieval.WithTracer(a.telemetry.Tracer("github.com/fyrsmithlabs/docrag/internal/retrieval")))
	if err != nil {
		return a, fmt.Errorf("failed to create pipeline: %w", err)
	}
	a.pipeline = pipeline
	return a, nil
}

func (a *app) initObservability(ctx context.Context) error {
	boot, err := logging.NewLogger(&a.cfg.Logging, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = boot

	tel, err := telemetry.New(ctx, &a.cfg.Telemetry, telemetry.WithLogger(boot.Underlying()))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel

	if lp := tel.LoggerProvider(); lp != nil && a.cfg.Logging.Output.OTEL {
		logger, err := logging.NewLogger(&a.cfg.Logging, lp)
		if err != nil {
			return fmt.Errorf("failed to initialize otel logger: %w", err)
		}
		a.logger = logger
	}
	return nil
}

func (a *app) initPublisher(ctx context.Context) error {
	if !a.cfg.Events.Enabled {
		a.publisher = events.NopPublisher{}
		return nil
	}
	pub, err := events.Connect(events.Config{
		URL:           a.cfg.Events.NATSURL,
		SubjectPrefix: a.cfg.Events.SubjectPrefix,
		Name:          "docragd",
	}, a.logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	a.logger.Info(ctx, "publishing ingestion events",
		zap.String("nats_url", a.cfg.Events.NATSURL),
		zap.String("subject_prefix", a.cfg.Events.SubjectPrefix))
	return nil
}

func (a *app) initScrubber(ctx context.Context) error {
	if !a.cfg.Secrets.Enabled {
		a.scrubber = secrets.NoopScrubber{}
		return nil
	}
	allowlist, err := secrets.LoadAllowlist(a.cfg.Secrets.AllowlistPath)
	if err != nil {
		return fmt.Errorf("failed to load secrets allowlist: %w", err)
	}
	scrubber, err := secrets.NewGitleaks(allowlist)
	if err != nil {
		return fmt.Errorf("failed to create secret scrubber: %w", err)
	}
	a.scrubber = scrubber
	a.logger.Debug(ctx, "secret scrubbing enabled",
		zap.Int("allowlist_regexes", len(allowlist.Regexes)))
	return nil
}

// Close releases dependencies in reverse creation order, then flushes
// telemetry and the logger.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync() // Best-effort sync on shutdown
	}
	return errors.Join(errs...)
}
