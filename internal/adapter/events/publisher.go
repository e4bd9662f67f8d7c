// internal/adapter/events/publisher.go

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"discover/internal/config"
	"discover/internal/logger"
)

// Kinds of aggregation reported in events
const (
	KindPlaces    = "places"
	KindPosts     = "posts"
	KindFollowees = "followees"
)

// SearchCompleted is published after every fresh (non-cached) aggregation
type SearchCompleted struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Location   string         `json:"location"`
	Category   string         `json:"category"`
	Counts     map[string]int `json:"counts"`
	Warnings   []string       `json:"warnings"`
	DurationMS int64          `json:"duration_ms"`
	At         time.Time      `json:"at"`
}

// Publisher emits search events
type Publisher interface {
	SearchCompleted(ctx context.Context, event SearchCompleted)
}

// Nop discards events. It is used when NATS is not configured.
type Nop struct{}

// SearchCompleted does nothing
func (Nop) SearchCompleted(context.Context, SearchCompleted) {}

// NATSPublisher publishes events as JSON on NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher creates a publisher on an open connection
func NewNATSPublisher(conn *nats.Conn, subjectPrefix string, log *zap.Logger) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "search"
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subjectPrefix + ".completed",
		logger:  logger.OrNop(log).Named("events"),
	}
}

// Subject returns the subject events are published on
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// SearchCompleted publishes the event. Failures are logged, never returned.
func (p *NATSPublisher) SearchCompleted(ctx context.Context, event SearchCompleted) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("subject", p.subject),
			zap.String("kind", event.Kind),
			zap.Error(err),
		)
	}
}

// headerCarrier adapts NATS headers for trace propagation
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Connect opens the NATS connection
func Connect(cfg config.NATSConfig, log *zap.Logger) (*nats.Conn, error) {
	log = logger.OrNop(log).Named("nats")

	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
