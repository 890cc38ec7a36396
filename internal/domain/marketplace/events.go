package marketplace

import (
	"time"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/domain/events"
)

// Event types raised by the marketplace.
const (
	EventTypePostingCreated       events.EventType = "PostingCreated"
	EventTypePostingClosed        events.EventType = "PostingClosed"
	EventTypeApplicationSubmitted events.EventType = "ApplicationSubmitted"
)

// PostingCreatedEvent signals a new open posting.
type PostingCreatedEvent struct {
	occurredAt time.Time
	PostingID  uuid.UUID `json:"posting_id"`
	ClientID   uuid.UUID `json:"client_id"`
	Title      string    `json:"title"`
	Skills     []string  `json:"skills"`
}

// NewPostingCreatedEvent creates a new posting created event.
func NewPostingCreatedEvent(p *Posting) PostingCreatedEvent {
	return PostingCreatedEvent{
		occurredAt: p.CreatedAt(),
		PostingID:  p.ID(),
		ClientID:   p.ClientID(),
		Title:      p.Details().Title,
		Skills:     p.Details().Skills,
	}
}

func (e PostingCreatedEvent) EventType() events.EventType { return EventTypePostingCreated }
func (e PostingCreatedEvent) OccurredAt() time.Time       { return e.occurredAt }

// PostingClosedEvent signals a posting stopped taking applications.
type PostingClosedEvent struct {
	occurredAt time.Time
	PostingID  uuid.UUID `json:"posting_id"`
}

// NewPostingClosedEvent creates a new posting closed event.
func NewPostingClosedEvent(p *Posting) PostingClosedEvent {
	return PostingClosedEvent{occurredAt: p.ClosedAt(), PostingID: p.ID()}
}

func (e PostingClosedEvent) EventType() events.EventType { return EventTypePostingClosed }
func (e PostingClosedEvent) OccurredAt() time.Time       { return e.occurredAt }

// ApplicationSubmittedEvent signals a worker applied and a job was opened at
// stage 1.
type ApplicationSubmittedEvent struct {
	occurredAt    time.Time
	ApplicationID uuid.UUID `json:"application_id"`
	PostingID     uuid.UUID `json:"posting_id"`
	WorkerID      uuid.UUID `json:"worker_id"`
	ClientID      uuid.UUID `json:"client_id"`
}

// NewApplicationSubmittedEvent creates a new application submitted event.
func NewApplicationSubmittedEvent(a *Application) ApplicationSubmittedEvent {
	return ApplicationSubmittedEvent{
		occurredAt:    a.CreatedAt(),
		ApplicationID: a.ID(),
		PostingID:     a.PostingID(),
		WorkerID:      a.WorkerID(),
		ClientID:      a.ClientID(),
	}
}

func (e ApplicationSubmittedEvent) EventType() events.EventType {
	return EventTypeApplicationSubmitted
}
func (e ApplicationSubmittedEvent) OccurredAt() time.Time { return e.occurredAt }
