// Package vectorstore persists embedded chunks and answers nearest-neighbour
// queries over them.
//
// The store is append-only: chunks are never updated or deleted. Every chunk
// is stamped with a monotonically increasing insertion sequence at write
// time, and query results with equal similarity are ordered by that sequence,
// earliest first.
//
// Implementations:
//   - ChromemStore: embedded chromem-go database persisted to disk (default)
//   - QdrantStore: external Qdrant server over gRPC
//
// Query never returns an error. Backend failures are logged, counted in
// docrag_vectorstore_query_failures_total and surface as an empty result.
package vectorstore
