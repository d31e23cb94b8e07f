// Package mcp exposes the retrieval pipeline as MCP tools over stdio.
//
// Tools:
//   - document_search: similarity search over indexed chunks
//   - document_ingest: index a file by path or inline content
//   - document_stats: report index size
//
// Retrieved text is scrubbed for secrets before it reaches the client.
package mcp
