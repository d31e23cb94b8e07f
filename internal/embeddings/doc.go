// Package embeddings turns text into fixed-dimension vectors.
//
// Every backend implements Embedder, a single-method interface that maps a
// batch of texts to one vector per text, in input order. Two local backends
// are provided:
//
//   - fastembed: in-process ONNX inference (requires cgo), default model
//     sentence-transformers/all-MiniLM-L6-v2
//   - openai: any OpenAI-compatible embedding server reachable on the local
//     network (llama.cpp, Ollama, TEI), via langchaingo
//
// Batcher fans large inputs out over a worker pool without changing the
// result order, and Instrumented records OpenTelemetry metrics.
package embeddings
