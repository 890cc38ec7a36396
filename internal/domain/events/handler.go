package events

import "context"

// AckFunc is invoked by a handler once it has finished with an event. A nil
// error acknowledges the event; a non-nil error leaves it for redelivery on
// transports that support it.
type AckFunc func(error)

// HandlerFunc processes a single event delivered by an EventBus.
type HandlerFunc func(ctx context.Context, evt EventEnvelope, ack AckFunc) error

// EventHandler defines the contract for components that process domain events.
// Each handler must declare which event types it can process and implement the
// logic to handle those events.
type EventHandler interface {
	// HandleEvent processes a domain event and returns an error if processing fails.
	HandleEvent(ctx context.Context, evt EventEnvelope, ack AckFunc) error

	// SupportedEvents returns the event types this handler can process.
	SupportedEvents() []EventType
}

// NoopAck is used by transports without acknowledgement semantics.
func NoopAck(error) {}
