package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/tui"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			st, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stored:     %s\n", tui.FormatCount(st.Chunks))
			fmt.Fprintf(out, "Backend:    %s\n", st.Backend)
			fmt.Fprintf(out, "Collection: %s\n", st.Collection)
			return nil
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check docragd server health",
		Long: `Check the health status of the docragd HTTP server.

Examples:
  # Check health
  docrag health

  # Check health on a different server
  docrag health --server http://localhost:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s is unhealthy: %w", c.BaseURL(), err)
			}
			if opts.json {
				return printJSON(cmd, h)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", h.Status)
			fmt.Fprintf(out, "Server URL: %s\n", c.BaseURL())
			if h.Documents != nil {
				fmt.Fprintf(out, "Stored: %s\n", tui.FormatCount(h.Documents.Chunks))
			}
			return nil
		},
	}
}
