// Package main implements the docrag CLI for working with a docragd server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/client"
)

// version information
var version = "dev"

type rootOptions struct {
	serverURL string
	timeout   time.Duration
	json      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docrag",
		Short: "CLI for docragd document ingestion and retrieval",
		Long: `docrag is a command-line interface for a running docragd server.
It uploads documents, runs similarity queries and reports index statistics.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server", client.DefaultServerURL, "docragd server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON responses")

	root.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newStatsCmd(opts),
		newHealthCmd(opts),
		newBrowseCmd(opts),
	)
	return root
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(o.serverURL, client.WithTimeout(o.timeout))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
