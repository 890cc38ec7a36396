// Package activity consumes lifecycle events from the event bus and writes
// them to the audit log.
package activity

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

var _ events.EventHandler = (*Recorder)(nil)

// Recorder logs one audit record per lifecycle event and counts them by type.
type Recorder struct {
	logger   *logger.Logger
	observed metric.Int64Counter
}

// NewRecorder creates a Recorder whose counter is registered on mp.
func NewRecorder(log *logger.Logger, mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter("activity", metric.WithInstrumentationVersion("v0.1.0"))
	observed, err := meter.Int64Counter(
		"events_observed_total",
		metric.WithDescription("Total number of lifecycle events observed on the event bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events observed counter: %w", err)
	}

	return &Recorder{
		logger:   log.With("component", "activity_recorder"),
		observed: observed,
	}, nil
}

// SupportedEvents returns every event the marketplace and job progress raise.
func (r *Recorder) SupportedEvents() []events.EventType {
	return []events.EventType{
		marketplace.EventTypePostingCreated,
		marketplace.EventTypePostingClosed,
		marketplace.EventTypeApplicationSubmitted,
		progress.EventTypeStageAdvanced,
		progress.EventTypePaymentRequested,
		progress.EventTypePaymentSettled,
		progress.EventTypePaymentFailed,
		progress.EventTypeReviewSubmitted,
		progress.EventTypeJobClosed,
	}
}

// HandleEvent writes the audit record for evt and acknowledges it.
func (r *Recorder) HandleEvent(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	r.observed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", evt.Type.String())))

	args := append([]any{"event_type", evt.Type, "key", evt.Key, "occurred_at", evt.Timestamp}, fields(evt.Payload)...)
	switch evt.Type {
	case progress.EventTypePaymentFailed:
		r.logger.Warn(ctx, "job activity", args...)
	default:
		r.logger.Info(ctx, "job activity", args...)
	}

	ack(nil)
	return nil
}

// fields flattens the payload of the known events into log attributes. The
// review text itself is left out of the log.
func fields(payload any) []any {
	switch e := payload.(type) {
	case progress.StageAdvancedEvent:
		return []any{"job_id", e.JobID, "from", int(e.From), "to", int(e.To),
			"action", e.Action, "role", e.Role, "version", e.Version}
	case progress.PaymentRequestedEvent:
		return []any{"job_id", e.JobID, "attempt", e.Attempt, "amount", e.Amount}
	case progress.PaymentSettledEvent:
		return []any{"job_id", e.JobID, "attempt", e.Attempt, "reference", e.Receipt.Reference}
	case progress.PaymentFailedEvent:
		return []any{"job_id", e.JobID, "attempt", e.Attempt, "reason", e.Reason}
	case progress.ReviewSubmittedEvent:
		return []any{"job_id", e.JobID, "worker_id", e.WorkerID, "rating", e.Rating}
	case progress.JobClosedEvent:
		return []any{"job_id", e.JobID, "posting_id", e.PostingID}
	case marketplace.PostingCreatedEvent:
		return []any{"posting_id", e.PostingID, "client_id", e.ClientID}
	case marketplace.PostingClosedEvent:
		return []any{"posting_id", e.PostingID}
	case marketplace.ApplicationSubmittedEvent:
		return []any{"application_id", e.ApplicationID, "posting_id", e.PostingID, "worker_id", e.WorkerID}
	default:
		return nil
	}
}
