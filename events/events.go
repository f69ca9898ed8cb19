// Package events publishes follow graph events to NATS.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"sociapi/domain"
	"sociapi/logging"
)

// NATS publishes every event as json on "<prefix>.<event type>".
type NATS struct {
	conn   *nats.Conn
	prefix string
}

var _ domain.EventPublisher = &NATS{}

// Connect dials the NATS server at url.
func Connect(url, prefix string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("sociapi"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "sociapi"
	}
	return &NATS{conn: conn, prefix: prefix}, nil
}

// Publish sends e without waiting for subscribers. Failures are logged.
func (n *NATS) Publish(ctx context.Context, e domain.Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("type", e.Type).Msg("encoding event")
		return
	}
	if err := n.conn.Publish(n.Subject(e.Type), data); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("type", e.Type).Msg("publishing event")
	}
}

// Subject returns the subject events of type eventType are published on.
func (n *NATS) Subject(eventType string) string {
	return n.prefix + "." + eventType
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(ctx context.Context, e domain.Event) {}
