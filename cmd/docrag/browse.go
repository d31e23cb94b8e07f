package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/tui"
)

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var (
		topK     int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Search interactively in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), c, tui.Config{
				ServerURL: c.BaseURL(),
				TopK:      topK,
				Interval:  interval,
				Timeout:   opts.timeout,
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "results per query")
	cmd.Flags().DurationVar(&interval, "refresh", 5*time.Second, "stats refresh interval")
	return cmd
}
