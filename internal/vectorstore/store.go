package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidChunk is returned by Add for chunks missing required fields or
	// carrying an embedding of the wrong dimension.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrWriteFailed wraps backend failures during Add.
	ErrWriteFailed = errors.New("vector store write failed")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// Metadata keys persisted with every chunk.
const (
	KeyDocumentID = "document_id"
	KeyFilename   = "filename"
	KeyOrdinal    = "ordinal"
	KeySeq        = "seq"
	KeyText       = "text"
)

// Chunk is one embedded text window of a document.
type Chunk struct {
	// ID is "{document_id}_{ordinal}".
	ID         string
	DocumentID string
	Filename   string
	Ordinal    int
	Text       string
	Embedding  []float32
}

// ChunkID formats the identifier of a document's n-th chunk.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

// Metadata describes where a retrieved chunk came from.
type Metadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Ordinal    int    `json:"ordinal"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`

	seq int64
}

// Info describes a store instance.
type Info struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	VectorSize int    `json:"vector_size"`
}

// Store is an append-only collection of embedded chunks.
type Store interface {
	// Add persists chunks. All chunks are validated before anything is
	// written. A backend failure mid-batch may leave a prefix of the batch
	// stored; the error wraps ErrWriteFailed.
	Add(ctx context.Context, chunks []Chunk) error

	// Query returns up to topK chunks by descending cosine similarity, ties
	// broken by insertion order. It returns an empty slice when the store is
	// empty, topK is not positive, or the backend fails.
	Query(ctx context.Context, vector []float32, topK int) []SearchResult

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Info describes the backend and collection.
	Info() Info

	// Close releases backend resources.
	Close() error
}

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that are empty, too long, or contain
// anything besides lowercase letters, digits and underscores.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func validateChunks(chunks []Chunk, dim int) error {
	for i, c := range chunks {
		switch {
		case c.ID == "":
			return fmt.Errorf("%w: chunk %d has no id", ErrInvalidChunk, i)
		case c.DocumentID == "":
			return fmt.Errorf("%w: chunk %s has no document id", ErrInvalidChunk, c.ID)
		case strings.TrimSpace(c.Text) == "":
			return fmt.Errorf("%w: chunk %s has no text", ErrInvalidChunk, c.ID)
		case c.Ordinal < 0:
			return fmt.Errorf("%w: chunk %s has negative ordinal", ErrInvalidChunk, c.ID)
		case len(c.Embedding) == 0:
			return fmt.Errorf("%w: chunk %s has no embedding", ErrInvalidChunk, c.ID)
		case dim > 0 && len(c.Embedding) != dim:
			return fmt.Errorf("%w: chunk %s has dimension %d, want %d", ErrInvalidChunk, c.ID, len(c.Embedding), dim)
		}
	}
	return nil
}

// sequencer hands out contiguous insertion sequence ranges.
type sequencer struct {
	next atomic.Int64
}

func newSequencer(start int64) *sequencer {
	s := &sequencer{}
	s.next.Store(start)
	return s
}

// reserve returns the first of n consecutive sequence numbers.
func (s *sequencer) reserve(n int) int64 {
	return s.next.Add(int64(n)) - int64(n)
}

// rank orders results by score descending, then insertion order, and keeps
// the first topK.
func rank(results []SearchResult, topK int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].seq < results[j].seq
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
