package embeddings

import (
	"fmt"
)

// Provider kinds accepted by NewProvider.
const (
	ProviderFastEmbed = "fastembed"
	ProviderOpenAI    = "openai"
)

// ProviderConfig selects and configures an embedding backend.
type ProviderConfig struct {
	// Provider is "fastembed" (default) or "openai".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the OpenAI-compatible server URL (openai only).
	BaseURL string
	// Token is the bearer token (openai only).
	Token string
	// Dimension overrides model-based detection (openai only).
	Dimension int
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
	// MaxLength is the token limit per input (fastembed only).
	MaxLength int
	// ShowProgress enables download progress output (fastembed only).
	ShowProgress bool
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderFastEmbed, "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:        cfg.Model,
			CacheDir:     cfg.CacheDir,
			MaxLength:    cfg.MaxLength,
			ShowProgress: cfg.ShowProgress,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Token:     cfg.Token,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
