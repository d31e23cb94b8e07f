package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Upload documents for indexing",
		Long: `Upload one or more PDF or text files to docragd. Every file becomes a new
document, even if the same file was uploaded before.

Examples:
  # Index a single PDF
  docrag ingest report.pdf

  # Index every markdown file in a directory
  docrag ingest notes/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			results := make([]retrieval.IngestResult, 0, len(args))
			failed := 0
			for _, path := range args {
				res, err := c.IngestFile(cmd.Context(), path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", path, err)
					continue
				}
				results = append(results, res)
				if opts.json {
					continue
				}
				switch res.Status {
				case retrieval.StatusNoContent:
					fmt.Fprintf(cmd.OutOrStdout(), "skipped %s: no extractable text\n", res.Filename)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d chunks (document %s)\n",
						res.Filename, res.ChunksIndexed, res.DocumentID)
				}
			}

			if opts.json {
				if err := printJSON(cmd, results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
