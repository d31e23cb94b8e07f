// Package events publishes document lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ErrPublishFailed wraps marshal and transport failures.
var ErrPublishFailed = errors.New("event publish failed")

// DefaultSubjectPrefix is the first token of every subject.
const DefaultSubjectPrefix = "docrag"

// Ingested is emitted after a document's chunks are stored.
type Ingested struct {
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename"`
	ChunksIndexed int       `json:"chunks_indexed"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// Publisher delivers ingestion events.
type Publisher interface {
	PublishIngested(ctx context.Context, ev Ingested) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishIngested implements Publisher.
func (NopPublisher) PublishIngested(context.Context, Ingested) error { return nil }

// NATSPublisher publishes events as JSON on core NATS subjects:
//
//	{prefix}.documents.{document_id}.ingested
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
}

// Config configures Connect.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
}

// Connect dials NATS and returns a publisher that owns the connection.
func Connect(cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "docrag"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. The caller keeps
// ownership of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject an ingestion event for documentID goes to.
func (p *NATSPublisher) Subject(documentID string) string {
	return IngestedSubject(p.prefix, documentID)
}

// IngestedSubject builds {prefix}.documents.{id}.ingested. Characters that
// are not valid inside a subject token are replaced with '_'.
func IngestedSubject(prefix, documentID string) string {
	return fmt.Sprintf("%s.documents.%s.ingested", prefix, subjectToken(documentID))
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishIngested implements Publisher.
func (p *NATSPublisher) PublishIngested(ctx context.Context, ev Ingested) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrPublishFailed, err)
	}
	subject := p.Subject(ev.DocumentID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, subject, err)
	}
	p.logger.Debug("published event", zap.String("subject", subject))
	return nil
}

// Close drains the connection if the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
