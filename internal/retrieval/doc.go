// Package retrieval wires extraction, chunking, embedding and the vector
// store into the two operations the service exposes: Ingest and Retrieve.
//
// Ingest turns an uploaded file into stored chunks under a fresh document id.
// Re-ingesting the same bytes produces a new document; duplicates are
// accepted. Retrieve never fails: an empty query, an embedding failure or a
// store failure all degrade to an empty result, logged and metered.
//
// The pipeline is stateless apart from its collaborators and is safe for
// concurrent use whenever they are.
package retrieval
