package embeddings

import "errors"

var (
	// ErrEmptyInput is returned for an empty batch or a batch containing an
	// empty string.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig is returned when a provider cannot be constructed from
	// its configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed wraps inference failures.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrFastEmbedNotAvailable is returned by the fastembed provider in
	// binaries built without cgo.
	ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the openai provider instead)")
)
