// Package config provides configuration loading for docrag.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete docrag configuration.
//
// Sections hold flat fields so that each one maps onto a single
// SECTION_FIELD_NAME environment variable.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Store     StoreConfig      `koanf:"store"`
	Embedding EmbeddingConfig  `koanf:"embedding"`
	Chunking  ChunkingConfig   `koanf:"chunking"`
	Retrieval RetrievalConfig  `koanf:"retrieval"`
	Events    EventsConfig     `koanf:"events"`
	Watch     WatchConfig      `koanf:"watch"`
	Secrets   SecretsConfig    `koanf:"secrets"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	// UploadRate is the sustained per-client upload rate in requests/second.
	UploadRate  float64 `koanf:"upload_rate"`
	UploadBurst int     `koanf:"upload_burst"`
	// IngestRoot limits which files the document_ingest tool may read.
	IngestRoot string `koanf:"ingest_root"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend    string `koanf:"backend"` // chromem or qdrant
	Collection string `koanf:"collection"`
	// VectorSize of 0 means the embedder's dimension.
	VectorSize int `koanf:"vector_size"`

	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`

	QdrantHost           string `koanf:"qdrant_host"`
	QdrantPort           int    `koanf:"qdrant_port"`
	QdrantTLS            bool   `koanf:"qdrant_tls"`
	QdrantAPIKey         Secret `koanf:"qdrant_api_key"`
	QdrantMaxMessageSize int    `koanf:"qdrant_max_message_size"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `koanf:"provider"` // fastembed or openai
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	Token     Secret `koanf:"token"`
	Dimension int    `koanf:"dimension"`
	CacheDir  string `koanf:"cache_dir"`
	MaxLength int    `koanf:"max_length"`
	BatchSize int    `koanf:"batch_size"`
	// PoolSize of 0 sizes the worker pool from the CPU count.
	PoolSize int `koanf:"pool_size"`
}

// ChunkingConfig sets the sliding window in characters.
type ChunkingConfig struct {
	Size    int `koanf:"chunk_size"`
	Overlap int `koanf:"overlap"`
}

// RetrievalConfig bounds top_k for requests that omit or overstate it.
type RetrievalConfig struct {
	DefaultTopK int `koanf:"default_top_k"`
	MaxTopK     int `koanf:"max_top_k"`
}

// EventsConfig configures ingestion event publishing to NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// WatchConfig configures the inbox directory watcher.
type WatchConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Dir            string        `koanf:"dir"`
	Extensions     []string      `koanf:"extensions"`
	Debounce       time.Duration `koanf:"debounce"`
	IngestExisting bool          `koanf:"ingest_existing"`
	// IgnoreFile is a gitignore-style pattern file inside Dir.
	IgnoreFile     string        `koanf:"ignore_file"`
}

// SecretsConfig configures secret scrubbing of retrieved chunk text.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// DefaultWatchExtensions are watched when watch.extensions is unset.
var DefaultWatchExtensions = []string{".pdf", ".txt", ".md"}

// Default returns the configuration used when nothing is overridden.
// Slice-valued defaults are filled in after loading; see applyDefaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8088,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  25 << 20,
			UploadRate:      2,
			UploadBurst:     5,
		},
		Store: StoreConfig{
			Backend:    "chromem",
			Collection: "docrag_docs",
			Path:       "./chroma_db",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Embedding: EmbeddingConfig{
			Provider:  "fastembed",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			CacheDir:  "./local_cache",
			BatchSize: 64,
		},
		Chunking: ChunkingConfig{
			Size:    900,
			Overlap: 150,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK: 5,
			MaxTopK:     50,
		},
		Events: EventsConfig{
			NATSURL:       "nats://127.0.0.1:4222",
			SubjectPrefix: "docrag",
		},
		Watch: WatchConfig{
			Dir:        "./inbox",
			Debounce:   500 * time.Millisecond,
			IgnoreFile: ".docragignore",
		},
		Secrets: SecretsConfig{
			Enabled: true,
		},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.http_port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		add("server.max_upload_bytes must be positive")
	}
	if c.Server.UploadRate < 0 || c.Server.UploadBurst < 0 {
		add("server.upload_rate and server.upload_burst must be >= 0")
	}

	switch c.Store.Backend {
	case "chromem":
		if c.Store.Path == "" {
			add("store.path is required for the chromem backend")
		}
	case "qdrant":
		if c.Store.QdrantHost == "" {
			add("store.qdrant_host is required for the qdrant backend")
		}
		if c.Store.QdrantPort < 1 || c.Store.QdrantPort > 65535 {
			add("store.qdrant_port must be 1-65535, got %d", c.Store.QdrantPort)
		}
	default:
		add("store.backend must be 'chromem' or 'qdrant', got %q", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		add("store.collection is required")
	}
	if c.Store.VectorSize < 0 {
		add("store.vector_size must be >= 0")
	}

	switch c.Embedding.Provider {
	case "fastembed":
	case "openai":
		if c.Embedding.BaseURL == "" {
			add("embedding.base_url is required for the openai provider")
		}
	default:
		add("embedding.provider must be 'fastembed' or 'openai', got %q", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		add("embedding.model is required")
	}
	if c.Embedding.BatchSize < 1 {
		add("embedding.batch_size must be >= 1")
	}
	if c.Embedding.PoolSize < 0 || c.Embedding.Dimension < 0 {
		add("embedding.pool_size and embedding.dimension must be >= 0")
	}

	if c.Chunking.Size < 1 {
		add("chunking.chunk_size must be >= 1")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		add("chunking.overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}

	if c.Retrieval.DefaultTopK < 1 || c.Retrieval.MaxTopK < c.Retrieval.DefaultTopK {
		add("retrieval requires 1 <= default_top_k <= max_top_k")
	}

	if c.Events.Enabled {
		if c.Events.NATSURL == "" {
			add("events.nats_url is required when events are enabled")
		}
		if c.Events.SubjectPrefix == "" || strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
			add("events.subject_prefix must be a non-empty subject token, got %q", c.Events.SubjectPrefix)
		}
	}

	if c.Watch.Enabled {
		if c.Watch.Dir == "" {
			add("watch.dir is required when the watcher is enabled")
		}
		if len(c.Watch.Extensions) == 0 {
			add("watch.extensions must not be empty")
		}
		if c.Watch.Debounce < 0 {
			add("watch.debounce must be >= 0")
		}
	}

	if err := c.Logging.Validate(); err != nil {
		add("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		add("telemetry: %w", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
