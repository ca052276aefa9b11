// Package notify publishes run-completion events for downstream schedulers.
package notify

import (
	"context"
	"sync"
)

// Publisher sends one serialized event.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// Noop discards events. The default when notification is not configured.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, []byte) error {
	return nil
}

// Memory collects events in order, for tests.
type Memory struct {
	mu     sync.Mutex
	events [][]byte
}

// NewMemory returns an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish appends a copy of the event.
func (m *Memory) Publish(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.events = append(m.events, cp)
	return nil
}

// Events returns the published payloads.
func (m *Memory) Events() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}
