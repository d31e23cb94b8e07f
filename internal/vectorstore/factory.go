package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"go.uber.org/zap"
)

// Defaults shared by both backends.
const (
	DefaultPath       = "./chroma_db"
	DefaultCollection = "docrag_docs"
	DefaultVectorSize = 384
)

// NewStore creates the backend selected by cfg.Backend:
//   - "chromem" (default): embedded database under cfg.Path
//   - "qdrant": external server at cfg.QdrantHost:cfg.QdrantPort
//
// The store is meant to be opened once per process and shared.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendChromem, "":
		s, err := NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendQdrant:
		s, err := NewQdrantStore(ctx, QdrantConfig{
			Host:           cfg.QdrantHost,
			Port:           cfg.QdrantPort,
			Collection:     cfg.Collection,
			VectorSize:     cfg.VectorSize,
			UseTLS:         cfg.QdrantTLS,
			APIKey:         cfg.QdrantAPIKey.Value(),
			MaxMessageSize: cfg.QdrantMaxMessageSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore backend %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Backend)
	}
}
