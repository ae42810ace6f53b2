package queue

import (
	"context"
	"sync"
)

// MemQueue is an in-memory Enqueuer for tests. It validates like the real
// queue and records accepted requests in order.
type MemQueue struct {
	mu       sync.Mutex
	requests []RenderRequest
	// FailNext, when set, is returned by the next Enqueue call.
	FailNext error
}

// NewMemQueue creates an empty in-memory queue.
func NewMemQueue() *MemQueue { return &MemQueue{} }

func (m *MemQueue) Enqueue(_ context.Context, req RenderRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	m.requests = append(m.requests, req)
	return nil
}

func (m *MemQueue) Close() error { return nil }

// Requests returns the accepted requests in order.
func (m *MemQueue) Requests() []RenderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RenderRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
