package retrieval

import "errors"

var (
	// ErrExtraction wraps failures to read text out of an upload.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbedding wraps embedder failures during ingestion.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore wraps vector store write failures during ingestion.
	ErrStore = errors.New("storing chunks failed")

	// ErrInvalidPipeline is returned by New when a collaborator is missing.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)
