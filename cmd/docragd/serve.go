package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	httpapi "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/watcher"
)

// runServe serves the HTTP API, plus the inbox watcher when enabled, and
// blocks until ctx is cancelled. Shutdown waits up to
// server.shutdown_timeout for in-flight requests.
func runServe(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := newHTTPServer(a)
	if err != nil {
		return err
	}

	if cfg.Watch.Enabled {
		w, err := startWatcher(ctx, a)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	a.logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", srv.Addr())),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutting down",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}

func newHTTPServer(a *app) (*httpapi.Server, error) {
	cfg := a.cfg
	srv, err := httpapi.NewServer(a.pipeline, a.scrubber, a.logger.Underlying(), &httpapi.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadRate:     cfg.Server.UploadRate,
		UploadBurst:    cfg.Server.UploadBurst,
		DefaultTopK:    cfg.Retrieval.DefaultTopK,
		MaxTopK:        cfg.Retrieval.MaxTopK,
		Meter:          a.telemetry.Meter("github.com/fyrsmithlabs/docrag/internal/http"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return srv, nil
}

func startWatcher(ctx context.Context, a *app) (*watcher.Watcher, error) {
	cfg := a.cfg
	w, err := watcher.New(watcher.Config{
		Dir:            cfg.Watch.Dir,
		Extensions:     cfg.Watch.Extensions,
		Debounce:       cfg.Watch.Debounce,
		IngestExisting: cfg.Watch.IngestExisting,
		MaxFileBytes:   cfg.Server.MaxUploadBytes,
		IgnoreFile:     cfg.Watch.IgnoreFile,
	}, a.pipeline, a.logger.Underlying().Named("watcher"))
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start inbox watcher: %w", err)
	}
	a.logger.Info(ctx, "watching inbox",
		zap.String("dir", w.Dir()),
		zap.Strings("extensions", cfg.Watch.Extensions))
	return w, nil
}
