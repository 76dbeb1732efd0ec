// Package bus publishes plan lifecycle events so downstream executors and
// audit consumers can follow planning activity.
package bus

import (
	"context"
	"time"
)

// Topics for plan lifecycle events.
const (
	TopicPlanCreated   = "plan.created"
	TopicPlanValidated = "plan.validated"
	TopicPlanCacheHit  = "plan.cache.hit"
)

// Event is one plan lifecycle notification.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Payload       []byte    `json:"payload,omitempty"`
}

// Handler consumes one event. Returning an error leaves redelivery to the
// backend.
type Handler func(ctx context.Context, event Event) error

// Bus carries plan lifecycle events. Publish must be safe for concurrent
// use; publishing is fire-and-forget from the planner's point of view.
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
