package chunking

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the window length in runes.
	DefaultChunkSize = 900
	// DefaultOverlap is the number of runes shared by consecutive windows.
	DefaultOverlap = 150
)

// ErrInvalidConfig is returned by New when the window parameters cannot make
// forward progress.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Chunker produces overlapping fixed-size text windows.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window length in runes.
func WithChunkSize(n int) Option {
	return func(c *Chunker) { c.size = n }
}

// WithOverlap sets how many runes consecutive windows share.
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// New returns a Chunker. The overlap must be non-negative and strictly
// smaller than the chunk size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.overlap)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.overlap, c.size)
	}
	return c, nil
}

// Size returns the configured window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into trimmed, non-empty windows. Carriage returns are
// removed first. An empty input yields nil.
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(strings.ReplaceAll(text, "\r", ""))
	length := len(runes)

	var chunks []string
	for start := 0; start < length; {
		end := start + c.size
		if end > length {
			end = length
		}
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			chunks = append(chunks, part)
		}
		if end == length {
			break
		}
		start = end - c.overlap
	}
	return chunks
}
