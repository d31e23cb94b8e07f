package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/tui"
)

const snippetWidth = 100

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "query TEXT...",
		Short: "Find the chunks most similar to a query",
		Long: `Embed the query and print the most similar stored chunks, best first.

Examples:
  docrag query "how are invoices approved"
  docrag query --top-k 10 quarterly revenue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Retrieve(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if resp.Count == 0 {
				fmt.Fprintln(out, "No matching chunks.")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%d. %s  score %s\n", i+1,
					tui.FormatSource(r.Metadata.Filename, r.Metadata.Ordinal), tui.FormatScore(r.Score))
				fmt.Fprintf(out, "   %s\n", tui.Snippet(r.Text, snippetWidth))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (0 uses the server default)")
	return cmd
}
