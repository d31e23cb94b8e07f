// Package secrets redacts credentials from chunk text before it leaves the
// service, using the Gitleaks rule set.
//
// Ingested documents are stored verbatim; scrubbing happens on the way out
// (HTTP and MCP retrieval responses) so that an allow-list change applies
// to already indexed content.
package secrets
