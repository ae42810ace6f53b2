package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSNotifier publishes events to a JetStream subject per event type:
// <prefix>.<event type>.
type NATSNotifier struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	prefix    string
	ownedConn bool
}

const publishTimeout = 5 * time.Second

// NewNATSNotifier connects to NATS and prepares the events stream. The
// stream covers <prefix>.> so every event type lands in it.
func NewNATSNotifier(ctx context.Context, url, stream, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n, err := NewNATSNotifierWithConn(ctx, conn, stream, prefix)
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.ownedConn = true
	return n, nil
}

// NewNATSNotifierWithConn wraps an existing connection; the caller keeps
// ownership of the connection unless created via NewNATSNotifier.
func NewNATSNotifierWithConn(ctx context.Context, conn *nats.Conn, stream, prefix string) (*NATSNotifier, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure events stream: %w", err)
	}

	slog.Info("notification publisher initialized",
		"stream", stream,
		"subject_prefix", prefix)

	return &NATSNotifier{conn: conn, js: js, prefix: prefix}, nil
}

// Publish sends one event. The timestamp is stamped here so callers never
// have to.
func (n *NATSNotifier) Publish(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := n.prefix + "." + event.Type
	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("published document event",
		"type", event.Type,
		"session_id", event.SessionID,
		"stage", event.Stage,
		"document_key", event.DocumentKey)
	return nil
}

// Close releases the connection when this notifier owns it.
func (n *NATSNotifier) Close() error {
	if n.ownedConn && n.conn != nil {
		n.conn.Close()
	}
	return nil
}
