package vectorstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"default collection", "docrag_docs", false},
		{"digits", "docs_2024", false},
		{"empty name", "", true},
		{"uppercase letters", "Docrag_Docs", true},
		{"hyphen", "docrag-docs", true},
		{"path traversal attempt", "../docs", true},
		{"too long", "a123456789012345678901234567890123456789012345678901234567890123456789", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChunks(t *testing.T) {
	valid := Chunk{ID: "d_0", DocumentID: "d", Filename: "f.txt", Text: "hello", Embedding: []float32{1, 0, 0}}

	tests := []struct {
		name   string
		mutate func(c *Chunk)
	}{
		{"missing id", func(c *Chunk) { c.ID = "" }},
		{"missing document id", func(c *Chunk) { c.DocumentID = "" }},
		{"blank text", func(c *Chunk) { c.Text = "  \n" }},
		{"negative ordinal", func(c *Chunk) { c.Ordinal = -1 }},
		{"no embedding", func(c *Chunk) { c.Embedding = nil }},
		{"wrong dimension", func(c *Chunk) { c.Embedding = []float32{1, 0} }},
	}

	require.NoError(t, validateChunks([]Chunk{valid}, 3))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.ErrorIs(t, validateChunks([]Chunk{valid, c}, 3), ErrInvalidChunk)
		})
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "abc_0", ChunkID("abc", 0))
	assert.Equal(t, "abc_12", ChunkID("abc", 12))
}

func TestSequencer_ReservesContiguousRanges(t *testing.T) {
	s := newSequencer(10)
	assert.Equal(t, int64(10), s.reserve(3))
	assert.Equal(t, int64(13), s.reserve(1))
	assert.Equal(t, int64(14), s.reserve(5))
}

func TestSequencer_Concurrent(t *testing.T) {
	s := newSequencer(0)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := s.reserve(4)
			mu.Lock()
			defer mu.Unlock()
			for j := first; j < first+4; j++ {
				seen[j] = true
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 200)
}

func TestRank(t *testing.T) {
	results := []SearchResult{
		{ID: "c", Score: 0.5, seq: 2},
		{ID: "a", Score: 0.9, seq: 5},
		{ID: "d", Score: 0.5, seq: 0},
		{ID: "b", Score: 0.7, seq: 1},
		{ID: "e", Score: 0.5, seq: 1},
	}

	got := rank(results, 4)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "d", "e"}, ids)
}

func TestRank_FewerThanTopK(t *testing.T) {
	got := rank([]SearchResult{{ID: "x", Score: 0.1}}, 5)
	assert.Len(t, got, 1)
}
