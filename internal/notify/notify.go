// Package notify delivers document lifecycle events to downstream
// consumers.
package notify

import (
	"context"
	"time"
)

// Event types emitted by the orchestrator and render worker.
const (
	// EventDocumentCompleted fires when a chunk finishes a document (the
	// model stopped on its own).
	EventDocumentCompleted = "document_completed"
	// EventChunkCompleted fires when a chunk is persisted but the chain
	// continues.
	EventChunkCompleted = "document_chunk_completed"

	// Render lifecycle events.
	EventRenderStarted        = "render_started"
	EventRenderChunkCompleted = "render_chunk_completed"
	EventRenderCompleted      = "render_completed"
	EventRenderFailed         = "render_failed"
)

// Event is one document lifecycle notification.
type Event struct {
	Type             string    `json:"type"`
	SessionID        string    `json:"session_id"`
	Stage            string    `json:"stage"`
	Iteration        int       `json:"iteration"`
	DocumentKey      string    `json:"document_key"`
	DocumentIdentity string    `json:"document_identity,omitempty"`
	FragmentID       string    `json:"fragment_id,omitempty"`
	Path             string    `json:"path,omitempty"`
	Title            string    `json:"title,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Notifier publishes document lifecycle events.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) error { return nil }
func (NopNotifier) Close() error                         { return nil }
