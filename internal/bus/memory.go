package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process bus for single-instance deployments and tests.
// Handlers run synchronously in Publish.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewMemoryBus creates an in-process event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

// Publish delivers the event to every subscriber of the topic. Handler
// errors are collected into the first one seen.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return nil
	}

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for a topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return nil
}

// Close drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[string][]Handler)
	b.mu.Unlock()
	return nil
}
