package embeddings

import "strings"

// DefaultModel is the model used when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// knownDimensions covers the models fastembed ships plus common names served
// by OpenAI-compatible local servers.
var knownDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"all-MiniLM-L6-v2":                       384,
	"fast-all-MiniLM-L6-v2":                  384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"fast-bge-small-zh-v1.5":                 512,
	"nomic-embed-text":                       768,
	"mxbai-embed-large":                      1024,
}

// ModelDimension returns the dimension of a known model.
func ModelDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// detectDimensionFromModel guesses the dimension from the model name and
// falls back to 384.
func detectDimensionFromModel(model string) int {
	if dim, ok := ModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}
