package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

type ingestCall struct {
	data     string
	filename string
}

// fakeService records ingestions and serves canned results.
type fakeService struct {
	ingested  []ingestCall
	ingestErr error
	results   []vectorstore.SearchResult
	lastK     int
	statsErr  error
}

func (f *fakeService) Ingest(_ context.Context, data []byte, filename string) (retrieval.IngestResult, error) {
	if f.ingestErr != nil {
		return retrieval.IngestResult{}, f.ingestErr
	}
	f.ingested = append(f.ingested, ingestCall{data: string(data), filename: filename})
	if strings.TrimSpace(string(data)) == "" {
		return retrieval.IngestResult{Status: retrieval.StatusNoContent, Filename: filename}, nil
	}
	return retrieval.IngestResult{Status: retrieval.StatusOK, DocumentID: "doc-1", Filename: filename, ChunksIndexed: 2}, nil
}

func (f *fakeService) Retrieve(_ context.Context, _ string, topK int) []vectorstore.SearchResult {
	f.lastK = topK
	return append([]vectorstore.SearchResult(nil), f.results...)
}

func (f *fakeService) Stats(context.Context) (retrieval.Stats, error) {
	if f.statsErr != nil {
		return retrieval.Stats{}, f.statsErr
	}
	return retrieval.Stats{Chunks: 12, Backend: "chromem", Collection: "docrag_docs"}, nil
}

type tokenScrubber struct{}

func (tokenScrubber) Scrub(text string) secrets.Result {
	return secrets.Result{Text: strings.ReplaceAll(text, "tok_live_123", "[REDACTED:token]")}
}

func newTestServer(t *testing.T, svc *fakeService) *Server {
	t.Helper()
	s, err := NewServer(nil, svc, tokenScrubber{})
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("requires a service", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil)
		assert.ErrorContains(t, err, "retrieval service is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		s, err := NewServer(&Config{Name: "x"}, &fakeService{}, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, s.config.DefaultTopK)
		assert.Equal(t, 5, s.config.MaxTopK)
		assert.NotNil(t, s.logger)
		assert.IsType(t, secrets.NoopScrubber{}, s.scrubber)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "docrag", cfg.Name)
	assert.Equal(t, 5, cfg.DefaultTopK)
	assert.Equal(t, 50, cfg.MaxTopK)
	assert.EqualValues(t, 25<<20, cfg.MaxFileBytes)
}

func TestHandleSearch(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{results: []vectorstore.SearchResult{
		{ID: "d_0", Text: "key is tok_live_123", Score: 0.8, Metadata: vectorstore.Metadata{DocumentID: "d", Filename: "keys.md", Ordinal: 0}},
		{ID: "d_1", Text: "nothing secret", Score: 0.5, Metadata: vectorstore.Metadata{DocumentID: "d", Filename: "keys.md", Ordinal: 1}},
	}}
	s := newTestServer(t, svc)

	res, out, err := s.handleSearch(ctx, nil, searchInput{Query: "key", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.lastK)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "key is [REDACTED:token]", out.Results[0].Text)

	text := res.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, "Found 2 matching chunks")
	assert.Contains(t, text, "keys.md #1")
	assert.NotContains(t, text, "tok_live_123")

	t.Run("top_k bounds", func(t *testing.T) {
		_, _, err := s.handleSearch(ctx, nil, searchInput{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, 5, svc.lastK)

		_, _, err = s.handleSearch(ctx, nil, searchInput{Query: "q", TopK: 1000})
		require.NoError(t, err)
		assert.Equal(t, 50, svc.lastK)
	})

	t.Run("blank query", func(t *testing.T) {
		_, _, err := s.handleSearch(ctx, nil, searchInput{Query: " "})
		assert.ErrorIs(t, err, errInvalidInput)
	})
}

func TestHandleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("inline content", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)

		_, out, err := s.handleIngest(ctx, nil, ingestInput{Filename: "../notes.md", Content: "# Notes"})
		require.NoError(t, err)
		assert.Equal(t, "ok", out.Status)
		assert.Equal(t, "doc-1", out.DocumentID)
		assert.Equal(t, 2, out.ChunksIndexed)
		require.Len(t, svc.ingested, 1)
		assert.Equal(t, ingestCall{data: "# Notes", filename: "notes.md"}, svc.ingested[0])
	})

	t.Run("file path", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)
		path := filepath.Join(t.TempDir(), "report.txt")
		require.NoError(t, os.WriteFile(path, []byte("quarterly numbers"), 0o600))

		_, out, err := s.handleIngest(ctx, nil, ingestInput{Path: path})
		require.NoError(t, err)
		assert.Equal(t, "report.txt", out.Filename)
		require.Len(t, svc.ingested, 1)
		assert.Equal(t, "quarterly numbers", svc.ingested[0].data)
	})

	t.Run("no content", func(t *testing.T) {
		s := newTestServer(t, &fakeService{})

		res, out, err := s.handleIngest(ctx, nil, ingestInput{Filename: "blank.txt", Content: "   "})
		require.NoError(t, err)
		assert.Equal(t, "no_content", out.Status)
		assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "No indexable text")
	})

	tests := []struct {
		name string
		args ingestInput
	}{
		{"nothing", ingestInput{}},
		{"both", ingestInput{Path: "/tmp/a.txt", Content: "x", Filename: "a.txt"}},
		{"content without filename", ingestInput{Content: "x"}},
		{"traversal", ingestInput{Path: "/tmp/../etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			_, _, err := newTestServer(t, svc).handleIngest(ctx, nil, tt.args)
			assert.ErrorIs(t, err, errInvalidInput)
			assert.Empty(t, svc.ingested)
		})
	}

	t.Run("directory", func(t *testing.T) {
		_, _, err := newTestServer(t, &fakeService{}).handleIngest(ctx, nil, ingestInput{Path: t.TempDir()})
		assert.ErrorIs(t, err, errInvalidInput)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := newTestServer(t, &fakeService{}).handleIngest(ctx, nil, ingestInput{Path: filepath.Join(t.TempDir(), "gone.txt")})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("oversized file", func(t *testing.T) {
		s, err := NewServer(&Config{MaxFileBytes: 4}, &fakeService{}, nil)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "big.txt")
		require.NoError(t, os.WriteFile(path, []byte("too large"), 0o600))

		_, _, err = s.handleIngest(ctx, nil, ingestInput{Path: path})
		assert.ErrorIs(t, err, errInvalidInput)
	})

	t.Run("outside ingest root", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.IngestRoot = t.TempDir()
		svc := &fakeService{}
		s, err := NewServer(cfg, svc, nil)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "elsewhere.txt")
		require.NoError(t, os.WriteFile(path, []byte("private"), 0o600))

		_, _, err = s.handleIngest(ctx, nil, ingestInput{Path: path})
		assert.ErrorIs(t, err, errInvalidInput)
		assert.Empty(t, svc.ingested)

		inside := filepath.Join(cfg.IngestRoot, "ok.txt")
		require.NoError(t, os.WriteFile(inside, []byte("public"), 0o600))
		_, out, err := s.handleIngest(ctx, nil, ingestInput{Path: inside})
		require.NoError(t, err)
		assert.Equal(t, "ok.txt", out.Filename)
	})

	t.Run("pipeline error", func(t *testing.T) {
		svc := &fakeService{ingestErr: fmt.Errorf("%w: bad pdf", retrieval.ErrExtraction)}
		_, _, err := newTestServer(t, svc).handleIngest(ctx, nil, ingestInput{Filename: "a.pdf", Content: "x"})
		assert.ErrorIs(t, err, retrieval.ErrExtraction)
	})
}

func TestHandleStats(t *testing.T) {
	ctx := context.Background()

	_, out, err := newTestServer(t, &fakeService{}).handleStats(ctx, nil, statsInput{})
	require.NoError(t, err)
	assert.Equal(t, statsOutput{Chunks: 12, Backend: "chromem", Collection: "docrag_docs"}, out)

	_, _, err = newTestServer(t, &fakeService{statsErr: errors.New("down")}).handleStats(ctx, nil, statsInput{})
	assert.Error(t, err)
}

func TestServer_InMemorySession(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, &fakeService{})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"document_ingest", "document_search", "document_stats"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "document_stats",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out statsOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 12, out.Chunks)
}
