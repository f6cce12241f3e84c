// Package events fans lead and call-request notifications out from the
// request path to in-process subscribers. Durable delivery is the job
// queue's concern; a handler that needs retries enqueues there.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is something a module announces after it committed a change.
type Event interface {
	// EventName is the subscription key, e.g. "leads.lead.captured".
	EventName() string
	// EventID identifies one publication in logs.
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent is embedded by every event to supply EventID and OccurredAt.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh event ID and the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// Handler reacts to a published event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is what publishers and subscribers depend on.
type Bus interface {
	// Publish returns immediately; handler failures are only logged.
	Publish(ctx context.Context, event Event)
	// PublishSync runs the handlers inline and reports their errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
