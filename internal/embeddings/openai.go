package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig configures an OpenAI-compatible embedding server.
type OpenAIConfig struct {
	// BaseURL is the server root including the API version path,
	// e.g. http://localhost:11434/v1.
	BaseURL string
	// Model is sent with every request.
	Model string
	// Token is sent as the bearer token. Local servers usually ignore it.
	Token string
	// Dimension overrides name-based dimension detection.
	Dimension int
}

// OpenAIProvider embeds texts through an OpenAI-compatible server such as
// llama.cpp, Ollama or TEI.
//
// Unlike FastEmbedProvider it makes a network call per batch, and every
// chunk's text is sent to BaseURL. Whether that stays on the host, and
// whether the same text always yields the same vector, depends entirely on
// the server behind BaseURL. Point it at a local server to keep documents
// local; the hosted OpenAI API is neither local nor guaranteed bit-for-bit
// deterministic.
type OpenAIProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
}

// NewOpenAIProvider builds the client. No request is made until Embed.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required for the openai provider", ErrInvalidConfig)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	token := cfg.Token
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	embedder, err := lcembeddings.NewEmbedder(client, lcembeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	dim := cfg.Dimension
	if dim <= 0 {
		dim = detectDimensionFromModel(model)
	}
	return &OpenAIProvider{embedder: embedder, model: model, dimension: dim}, nil
}

// Embed generates one vector per text.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInput(texts); err != nil {
		return nil, err
	}
	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	return vecs, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Dimension returns the configured or detected embedding dimension.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// Close is a no-op; the client holds no persistent connections.
func (p *OpenAIProvider) Close() error { return nil }
