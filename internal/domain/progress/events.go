package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/domain/events"
)

// Event types raised by job progress.
const (
	EventTypeStageAdvanced    events.EventType = "StageAdvanced"
	EventTypePaymentRequested events.EventType = "PaymentRequested"
	EventTypePaymentSettled   events.EventType = "PaymentSettled"
	EventTypePaymentFailed    events.EventType = "PaymentFailed"
	EventTypeReviewSubmitted  events.EventType = "ReviewSubmitted"
	EventTypeJobClosed        events.EventType = "JobClosed"
)

// StageAdvancedEvent is raised for every accepted stage change.
type StageAdvancedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	From       Stage     `json:"from"`
	To         Stage     `json:"to"`
	Action     Action    `json:"action"`
	Role       Role      `json:"role,omitempty"`
	Version    int64     `json:"version"`
}

// NewStageAdvancedEvent creates a new stage advanced event.
func NewStageAdvancedEvent(jobID uuid.UUID, change StageChange, version int64) StageAdvancedEvent {
	return StageAdvancedEvent{
		occurredAt: change.At,
		JobID:      jobID,
		From:       change.From,
		To:         change.To,
		Action:     change.Action,
		Role:       change.Role,
		Version:    version,
	}
}

func (e StageAdvancedEvent) EventType() events.EventType { return EventTypeStageAdvanced }
func (e StageAdvancedEvent) OccurredAt() time.Time       { return e.occurredAt }

// PaymentRequestedEvent signals that a settlement attempt should be charged.
type PaymentRequestedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	Attempt    int       `json:"attempt"`
	ClientID   uuid.UUID `json:"client_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	Amount     int64     `json:"amount"`
}

// NewPaymentRequestedEvent creates a new payment requested event.
func NewPaymentRequestedEvent(at time.Time, req ChargeRequest) PaymentRequestedEvent {
	return PaymentRequestedEvent{
		occurredAt: at,
		JobID:      req.JobID,
		Attempt:    req.Attempt,
		ClientID:   req.ClientID,
		WorkerID:   req.WorkerID,
		Amount:     req.Amount,
	}
}

func (e PaymentRequestedEvent) EventType() events.EventType { return EventTypePaymentRequested }
func (e PaymentRequestedEvent) OccurredAt() time.Time       { return e.occurredAt }

// PaymentSettledEvent signals a successful charge.
type PaymentSettledEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	Attempt    int       `json:"attempt"`
	Receipt    Receipt   `json:"receipt"`
}

// NewPaymentSettledEvent creates a new payment settled event.
func NewPaymentSettledEvent(at time.Time, jobID uuid.UUID, attempt int, receipt Receipt) PaymentSettledEvent {
	return PaymentSettledEvent{occurredAt: at, JobID: jobID, Attempt: attempt, Receipt: receipt}
}

func (e PaymentSettledEvent) EventType() events.EventType { return EventTypePaymentSettled }
func (e PaymentSettledEvent) OccurredAt() time.Time       { return e.occurredAt }

// PaymentFailedEvent signals a failed charge. The job waits at stage 5.
type PaymentFailedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	Attempt    int       `json:"attempt"`
	Reason     string    `json:"reason"`
}

// NewPaymentFailedEvent creates a new payment failed event.
func NewPaymentFailedEvent(at time.Time, jobID uuid.UUID, attempt int, reason string) PaymentFailedEvent {
	return PaymentFailedEvent{occurredAt: at, JobID: jobID, Attempt: attempt, Reason: reason}
}

func (e PaymentFailedEvent) EventType() events.EventType { return EventTypePaymentFailed }
func (e PaymentFailedEvent) OccurredAt() time.Time       { return e.occurredAt }

// ReviewSubmittedEvent carries the client's frozen review of the worker.
type ReviewSubmittedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	Review     string    `json:"review"`
	Rating     int       `json:"rating"`
}

// NewReviewSubmittedEvent creates a new review submitted event.
func NewReviewSubmittedEvent(at time.Time, jobID, workerID uuid.UUID, review string, rating int) ReviewSubmittedEvent {
	return ReviewSubmittedEvent{occurredAt: at, JobID: jobID, WorkerID: workerID, Review: review, Rating: rating}
}

func (e ReviewSubmittedEvent) EventType() events.EventType { return EventTypeReviewSubmitted }
func (e ReviewSubmittedEvent) OccurredAt() time.Time       { return e.occurredAt }

// JobClosedEvent signals that the job reached its final stage.
type JobClosedEvent struct {
	occurredAt time.Time
	JobID      uuid.UUID `json:"job_id"`
	PostingID  uuid.UUID `json:"posting_id"`
}

// NewJobClosedEvent creates a new job closed event.
func NewJobClosedEvent(at time.Time, jobID, postingID uuid.UUID) JobClosedEvent {
	return JobClosedEvent{occurredAt: at, JobID: jobID, PostingID: postingID}
}

func (e JobClosedEvent) EventType() events.EventType { return EventTypeJobClosed }
func (e JobClosedEvent) OccurredAt() time.Time       { return e.occurredAt }
