package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/mcp"
)

// runStdioServer serves the MCP tools on stdin/stdout. stdout belongs to
// the protocol, so logging is forced onto stderr.
func runStdioServer(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logging.Output.Stdout = false
	cfg.Logging.Output.Stderr = true

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := newMCPServer(a)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "docragd mcp stdio mode started (%s store %q)\n",
		a.store.Info().Backend, a.store.Info().Collection)

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}

func newMCPServer(a *app) (*mcp.Server, error) {
	srv, err := mcp.NewServer(&mcp.Config{
		Name:         "docrag",
		Version:      version,
		Logger:       a.logger.Underlying().Named("mcp"),
		DefaultTopK:  a.cfg.Retrieval.DefaultTopK,
		MaxTopK:      a.cfg.Retrieval.MaxTopK,
		MaxFileBytes: a.cfg.Server.MaxUploadBytes,
		IngestRoot:   a.cfg.Server.IngestRoot,
		Meter:        a.telemetry.Meter("github.com/fyrsmithlabs/docrag/internal/mcp"),
	}, a.pipeline, a.scrubber)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp server: %w", err)
	}
	return srv, nil
}
