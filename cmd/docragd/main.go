// Docragd is the docrag daemon: it ingests documents into a vector store and
// answers similarity queries over HTTP or MCP.
//
// Configuration is read from ~/.config/docrag/config.yaml (or --config),
// then .env, then the environment. See internal/config for details.
//
// Usage:
//
//	# Serve the HTTP API (default)
//	docragd
//	docragd serve --config /etc/docrag/config.yaml
//
//	# Serve MCP tools over stdio
//	docragd mcp
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9090 STORE_BACKEND=qdrant docragd
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docragd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docragd",
		Short: "Document ingestion and retrieval daemon",
		Long: `docragd extracts text from uploaded PDF and text documents, splits it into
overlapping chunks, embeds them and stores them in a persistent vector store.
Queries return the most similar chunks.

Running docragd without a subcommand is the same as "docragd serve".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docrag/config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Serve document_search, document_ingest and document_stats as MCP tools on
stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStdioServer(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd)
		},
	})
	return root
}

// printVersion prints version information
func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "docragd by Fyrsmith Labs\n")
	fmt.Fprintf(out, "Version:    %s\n", version)
	fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(out, "Build Date: %s\n", buildDate)
}
