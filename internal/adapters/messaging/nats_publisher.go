// Package messaging publishes execution log entries to NATS for downstream consumers
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"commerce-agent/internal/core/domain"
)

// Publisher is the subset of *nats.Conn used by NATSPublisher
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher forwards execution log entries to a subject
type NATSPublisher struct {
	pub     Publisher
	subject string
}

// NewNATSPublisher wraps an existing connection
func NewNATSPublisher(pub Publisher, subject string) *NATSPublisher {
	return &NATSPublisher{pub: pub, subject: subject}
}

// Connect dials NATS with reconnect handling
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			slog.Error("NATS error", "error", err)
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// PublishExecutionLog publishes entry as JSON on <subject>.<event_type>
func (p *NATSPublisher) PublishExecutionLog(_ context.Context, entry *domain.ExecutionLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal execution log: %w", err)
	}
	subject := p.subject + "." + entry.EventType
	if err := p.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
