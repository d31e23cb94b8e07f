package http

import "github.com/fyrsmithlabs/docrag/internal/vectorstore"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Documents *DocumentCounts `json:"documents,omitempty"`
}

// DocumentCounts reports index size.
type DocumentCounts struct {
	Chunks int `json:"chunks"`
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	Results []vectorstore.SearchResult `json:"results"`
	Count   int                        `json:"count"`
}
