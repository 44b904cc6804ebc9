// Package messaging publishes bridge sync events to RabbitMQ.
// Publication is best effort: a failed publish is logged by the caller
// and never changes the outcome of the sync that produced the event.
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a sync event; it doubles as the routing key.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventUserUpdated    EventType = "user.updated"
	EventTestCompleted  EventType = "test.completed"
	EventTelegramLinked EventType = "telegram.linked"
)

// Event is the envelope published for every successful Remote Store write.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher publishes sync events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
