package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSQueue publishes and consumes render requests over JetStream.
type NATSQueue struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	stream    jetstream.Stream
	subject   string
	ownedConn bool
	logger    *slog.Logger
}

const (
	publishTimeout = 5 * time.Second
	fetchMaxWait   = 5 * time.Second
)

// NewNATSQueue connects to NATS and ensures the render request stream
// exists.
func NewNATSQueue(ctx context.Context, url, stream, subject string, logger *slog.Logger) (*NATSQueue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	q, err := NewNATSQueueWithConn(ctx, conn, stream, subject, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.ownedConn = true
	return q, nil
}

// NewNATSQueueWithConn wraps an existing connection.
func NewNATSQueueWithConn(ctx context.Context, conn *nats.Conn, stream, subject string, logger *slog.Logger) (*NATSQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	st, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure render stream: %w", err)
	}

	return &NATSQueue{conn: conn, js: js, stream: st, subject: subject, logger: logger}, nil
}

// Enqueue validates and publishes a render request. Validation happens
// before the publish: an invalid request must never reach the stream.
func (q *NATSQueue) Enqueue(ctx context.Context, req RenderRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal render request: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.subject, data); err != nil {
		return fmt.Errorf("failed to publish render request: %w", err)
	}

	q.logger.Debug("render request enqueued",
		"document_identity", req.DocumentIdentity,
		"document_key", req.DocumentKey,
		"source_contribution_id", req.SourceContributionID)
	return nil
}

// Handler processes one render request. A returned error triggers
// redelivery (at-least-once semantics); the handler must therefore be
// idempotent.
type Handler func(ctx context.Context, req RenderRequest) error

// Consume fetches render requests until the context is cancelled. Requests
// that fail to decode are terminated rather than redelivered; handler
// failures are NAKed for redelivery up to the consumer's MaxDeliver.
func (q *NATSQueue) Consume(ctx context.Context, durable string, handler Handler) error {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: q.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       120 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create render consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(fetchMaxWait))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Debug("fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			q.handleMessage(ctx, msg, handler)
		}
		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			q.logger.Warn("render request fetch error", "error", msgs.Error())
		}
	}
}

func (q *NATSQueue) handleMessage(ctx context.Context, msg jetstream.Msg, handler Handler) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			q.logger.Warn("failed to NAK message during shutdown", "error", err)
		}
		return
	}

	var req RenderRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		q.logger.Error("undecodable render request, terminating", "error", err)
		if err := msg.Term(); err != nil {
			q.logger.Warn("failed to terminate message", "error", err)
		}
		return
	}

	if err := handler(ctx, req); err != nil {
		q.logger.Error("render request failed",
			"document_identity", req.DocumentIdentity,
			"document_key", req.DocumentKey,
			"error", err)
		if err := msg.Nak(); err != nil {
			q.logger.Warn("failed to NAK message", "error", err)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		q.logger.Warn("failed to ACK message", "error", err)
	}
}

// Close releases the connection when this queue owns it.
func (q *NATSQueue) Close() error {
	if q.ownedConn && q.conn != nil {
		q.conn.Close()
	}
	return nil
}
