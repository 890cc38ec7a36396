package events

import "time"

// DomainEvent is implemented by every event the domain raises. The concrete
// type doubles as the event payload.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType
	// OccurredAt records when the event happened.
	OccurredAt() time.Time
}

// EventEnvelope carries an event through an EventBus along with its routing
// metadata.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically the job identifier so
	// every event for a job lands on the same partition in order.
	Key string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any
}
