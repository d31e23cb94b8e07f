package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// errInvalidInput marks tool arguments that fail validation.
var errInvalidInput = errors.New("invalid input")

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_search",
		Description: "Search indexed documents for the chunks most similar to a query. Results carry the source filename for citation.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_ingest",
		Description: "Index a document. Pass either an absolute file path readable by the server, or a filename plus its text content.",
	}, s.handleIngest)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_stats",
		Description: "Report how many chunks are indexed and which vector store backs the index",
	}, s.handleStats)
}

// instrument wraps a tool body with invocation metrics.
func (s *Server) instrument(ctx context.Context, tool string) func(err error) {
	finish := s.metrics.begin(ctx, tool)
	return func(err error) {
		finish(err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

// ===== SEARCH =====

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language query to match against document chunks"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Maximum number of chunks to return (default 5, max 50)"`
}

type searchOutput struct {
	Results []vectorstore.SearchResult `json:"results" jsonschema:"Matching chunks, best first"`
	Count   int                        `json:"count" jsonschema:"Number of chunks returned"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (res *mcp.CallToolResult, out searchOutput, toolErr error) {
	done := s.instrument(ctx, "document_search")
	defer func() { done(toolErr) }()

	if strings.TrimSpace(args.Query) == "" {
		return nil, searchOutput{}, fmt.Errorf("%w: query is required", errInvalidInput)
	}

	results := s.service.Retrieve(ctx, args.Query, s.topK(args.TopK))
	for i := range results {
		results[i].Text = s.scrubber.Scrub(results[i].Text).Text
	}
	out = searchOutput{Results: results, Count: len(results)}
	s.metrics.recordSearch(ctx, out.Count)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching chunks", out.Count)
	for _, r := range results {
		fmt.Fprintf(&b, "\n\n[%s #%d, score %.3f]\n%s", r.Metadata.Filename, r.Metadata.Ordinal, r.Score, r.Text)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
	}, out, nil
}

func (s *Server) topK(requested int) int {
	switch {
	case requested <= 0:
		return s.config.DefaultTopK
	case requested > s.config.MaxTopK:
		return s.config.MaxTopK
	default:
		return requested
	}
}

// ===== INGEST =====

type ingestInput struct {
	Path     string `json:"path,omitempty" jsonschema:"Path of a file on the server to index"`
	Filename string `json:"filename,omitempty" jsonschema:"Name to record for inline content"`
	Content  string `json:"content,omitempty" jsonschema:"Inline text content to index"`
}

type ingestOutput struct {
	Status        string `json:"status" jsonschema:"ok or no_content"`
	DocumentID    string `json:"document_id,omitempty" jsonschema:"Identifier assigned to the document"`
	Filename      string `json:"filename" jsonschema:"Recorded filename"`
	ChunksIndexed int    `json:"chunks_indexed" jsonschema:"Number of chunks stored"`
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, args ingestInput) (res *mcp.CallToolResult, out ingestOutput, toolErr error) {
	done := s.instrument(ctx, "document_ingest")
	defer func() { done(toolErr) }()

	data, filename, err := s.ingestSource(args)
	if err != nil {
		return nil, ingestOutput{}, err
	}

	result, err := s.service.Ingest(ctx, data, filename)
	if err != nil {
		return nil, ingestOutput{}, fmt.Errorf("ingesting %s: %w", filename, err)
	}

	out = ingestOutput{
		Status:        string(result.Status),
		DocumentID:    result.DocumentID,
		Filename:      result.Filename,
		ChunksIndexed: result.ChunksIndexed,
	}
	text := fmt.Sprintf("Indexed %s: %d chunks (document %s)", out.Filename, out.ChunksIndexed, out.DocumentID)
	if result.Status == retrieval.StatusNoContent {
		text = fmt.Sprintf("No indexable text in %s", out.Filename)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

// ingestSource resolves the bytes and filename to ingest from exactly one of
// path or content.
func (s *Server) ingestSource(args ingestInput) ([]byte, string, error) {
	switch {
	case args.Path != "" && args.Content != "":
		return nil, "", fmt.Errorf("%w: pass either path or content, not both", errInvalidInput)
	case args.Path != "":
		return s.readFile(args.Path)
	case args.Content != "":
		if strings.TrimSpace(args.Filename) == "" {
			return nil, "", fmt.Errorf("%w: filename is required with content", errInvalidInput)
		}
		if s.config.MaxFileBytes > 0 && int64(len(args.Content)) > s.config.MaxFileBytes {
			return nil, "", fmt.Errorf("%w: content exceeds %d bytes", errInvalidInput, s.config.MaxFileBytes)
		}
		return []byte(args.Content), sanitize.Filename(args.Filename), nil
	default:
		return nil, "", fmt.Errorf("%w: path or content is required", errInvalidInput)
	}
}

func (s *Server) readFile(path string) ([]byte, string, error) {
	clean, err := sanitize.ResolvePath(path, s.config.IngestRoot)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errInvalidInput, err)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, "", err
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("%w: %s is not a regular file", errInvalidInput, clean)
	}
	if s.config.MaxFileBytes > 0 && info.Size() > s.config.MaxFileBytes {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", errInvalidInput, clean, s.config.MaxFileBytes)
	}

	f, err := os.Open(clean) // #nosec G304 -- path validated above
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	r := io.Reader(f)
	if s.config.MaxFileBytes > 0 {
		r = io.LimitReader(f, s.config.MaxFileBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", clean, err)
	}

	name, err := sanitize.BaseName(clean)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errInvalidInput, err)
	}
	return data, name, nil
}

// ===== STATS =====

type statsInput struct{}

type statsOutput struct {
	Chunks     int    `json:"chunks" jsonschema:"Number of indexed chunks"`
	Backend    string `json:"backend" jsonschema:"Vector store backend"`
	Collection string `json:"collection" jsonschema:"Collection name"`
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ statsInput) (res *mcp.CallToolResult, out statsOutput, toolErr error) {
	done := s.instrument(ctx, "document_stats")
	defer func() { done(toolErr) }()

	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, statsOutput{}, err
	}
	out = statsOutput{Chunks: stats.Chunks, Backend: stats.Backend, Collection: stats.Collection}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d chunks indexed in %s (%s)", out.Chunks, out.Collection, out.Backend)},
		},
	}, out, nil
}
