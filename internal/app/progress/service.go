// Package progress coordinates job lifecycle changes: it authorizes the actor,
// runs the domain reducer, persists the result with an optimistic version
// check, publishes the raised events and drives payment settlement.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	domain "github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

// TransitionRequest is a participant asking to advance a job.
type TransitionRequest struct {
	ActorID uuid.UUID
	Role    domain.Role
	Action  domain.Action
	Review  string
	Rating  int
	// ExpectedVersion, when set, must equal the stored version or the
	// request fails with ErrConflict.
	ExpectedVersion *int64
}

// JobProgressService is the server authority over job lifecycles.
type JobProgressService interface {
	// Get returns the canonical progress of a job.
	Get(ctx context.Context, jobID uuid.UUID) (*domain.JobProgress, error)

	// Apply validates and applies a participant's transition request.
	Apply(ctx context.Context, jobID uuid.UUID, req TransitionRequest) (*domain.JobProgress, error)

	// Availability derives the action view for role, evaluating draft as the
	// payload the participant would submit.
	Availability(ctx context.Context, jobID uuid.UUID, role domain.Role, draft domain.Payload) (domain.ActionAvailability, error)

	// SettlePayment records the processor's completion for attempt. A nil
	// chargeErr is a success.
	SettlePayment(ctx context.Context, jobID uuid.UUID, attempt int, receipt domain.Receipt, chargeErr error) (*domain.JobProgress, error)

	// RetryPayment re-dispatches a failed settlement on the client's behalf.
	RetryPayment(ctx context.Context, jobID, actorID uuid.UUID) (*domain.JobProgress, error)

	// CancelSettlement abandons the settlement in flight on the client's
	// behalf. The job stays at stage 5 and can be retried.
	CancelSettlement(ctx context.Context, jobID, actorID uuid.UUID) (*domain.JobProgress, error)

	// WorkerRating summarizes the ratings a worker has received.
	WorkerRating(ctx context.Context, workerID uuid.UUID) (domain.RatingSummary, error)

	// ResumeSettlements re-dispatches settlements that were in flight when the
	// service last stopped.
	ResumeSettlements(ctx context.Context) (int, error)
}

// maxSettleConflicts bounds how often a settlement is re-applied when it
// races another write to the same job.
const maxSettleConflicts = 3

var _ JobProgressService = (*service)(nil)

type service struct {
	repo       domain.Repository
	publisher  events.DomainEventPublisher
	dispatcher Dispatcher
	metrics    TransitionMetrics

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates the job progress service. metrics may be nil.
func NewService(
	repo domain.Repository,
	publisher events.DomainEventPublisher,
	dispatcher Dispatcher,
	metrics TransitionMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &service{
		repo:       repo,
		publisher:  publisher,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.With("component", "job_progress_service"),
		tracer:     tracer,
	}
}

func (s *service) Get(ctx context.Context, jobID uuid.UUID) (*domain.JobProgress, error) {
	ctx, span := s.tracer.Start(ctx, "job_progress_service.get",
		trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load job progress")
		return nil, fmt.Errorf("get job progress (job_id: %s): %w", jobID, err)
	}

	return job, nil
}

func (s *service) Apply(ctx context.Context, jobID uuid.UUID, req TransitionRequest) (*domain.JobProgress, error) {
	logger := s.logger.With("operation", "apply", "job_id", jobID, "role", req.Role, "action", req.Action)
	ctx, span := s.tracer.Start(ctx, "job_progress_service.apply",
		trace.WithAttributes(
			attribute.String("job_id", jobID.String()),
			attribute.String("role", req.Role.String()),
			attribute.String("action", req.Action.String()),
		))
	defer span.End()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load job progress")
		return nil, fmt.Errorf("apply %s (job_id: %s): %w", req.Action, jobID, err)
	}

	if err := job.Authorize(req.ActorID, req.Role); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actor not authorized")
		return nil, err
	}

	prevVersion := job.Version()
	if req.ExpectedVersion != nil && *req.ExpectedVersion != prevVersion {
		span.SetStatus(codes.Error, "version mismatch")
		return nil, fmt.Errorf("apply %s (job_id: %s, expected: %d, current: %d): %w",
			req.Action, jobID, *req.ExpectedVersion, prevVersion, domain.ErrConflict)
	}

	evts, err := job.Perform(req.Role, req.Action, domain.Payload{Review: req.Review, Rating: req.Rating})
	s.metrics.IncTransitions(ctx, req.Action.String(), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		logger.Debug(ctx, "transition rejected", "error", err)
		return nil, err
	}
	span.AddEvent("transition_applied", trace.WithAttributes(attribute.Int("stage", int(job.Stage()))))

	if err := s.repo.Update(ctx, job, prevVersion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist job progress")
		return nil, fmt.Errorf("apply %s (job_id: %s): %w", req.Action, jobID, err)
	}

	s.publish(ctx, jobID, evts)

	if req.Action == domain.ActionReleasePayment {
		s.dispatch(ctx, job)
	}

	logger.Info(ctx, "job advanced", "stage", job.Stage().String(), "version", job.Version())
	span.SetStatus(codes.Ok, "transition applied")

	return job, nil
}

func (s *service) Availability(
	ctx context.Context,
	jobID uuid.UUID,
	role domain.Role,
	draft domain.Payload,
) (domain.ActionAvailability, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return domain.ActionAvailability{}, err
	}
	return job.Availability(role, draft), nil
}

func (s *service) SettlePayment(
	ctx context.Context,
	jobID uuid.UUID,
	attempt int,
	receipt domain.Receipt,
	chargeErr error,
) (*domain.JobProgress, error) {
	logger := s.logger.With("operation", "settle_payment", "job_id", jobID, "attempt", attempt)
	ctx, span := s.tracer.Start(ctx, "job_progress_service.settle_payment",
		trace.WithAttributes(
			attribute.String("job_id", jobID.String()),
			attribute.Int("attempt", attempt),
			attribute.Bool("success", chargeErr == nil),
		))
	defer span.End()

	for try := 1; ; try++ {
		job, err := s.repo.Get(ctx, jobID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load job progress")
			return nil, fmt.Errorf("settle payment (job_id: %s): %w", jobID, err)
		}

		prevVersion := job.Version()

		var evts []events.DomainEvent
		if chargeErr == nil {
			evts, err = job.SettlePayment(attempt, receipt)
		} else {
			evts, err = job.FailPayment(attempt, chargeErr.Error())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "settlement rejected")
			if errors.Is(err, domain.ErrStaleSettlement) {
				logger.Warn(ctx, "ignoring stale settlement", "stage", job.Stage().String(),
					"current_attempt", job.State().PaymentAttempt)
			}
			return nil, err
		}

		err = s.repo.Update(ctx, job, prevVersion)
		if errors.Is(err, domain.ErrConflict) && try < maxSettleConflicts {
			span.AddEvent("settlement_conflict_retry")
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to persist settlement")
			return nil, fmt.Errorf("settle payment (job_id: %s): %w", jobID, err)
		}

		s.publish(ctx, jobID, evts)

		if chargeErr != nil {
			logger.Warn(ctx, "payment failed, waiting for retry", "error", chargeErr)
		} else {
			logger.Info(ctx, "payment settled", "reference", receipt.Reference)
		}
		span.SetStatus(codes.Ok, "settlement recorded")

		return job, nil
	}
}

func (s *service) RetryPayment(ctx context.Context, jobID, actorID uuid.UUID) (*domain.JobProgress, error) {
	ctx, span := s.tracer.Start(ctx, "job_progress_service.retry_payment",
		trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retry payment (job_id: %s): %w", jobID, err)
	}

	if err := job.Authorize(actorID, domain.RoleClient); err != nil {
		span.RecordError(err)
		return nil, err
	}

	prevVersion := job.Version()
	evts, err := job.RetryPayment()
	s.metrics.IncTransitions(ctx, domain.ActionRetryPayment.String(), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retry rejected")
		return nil, err
	}

	if err := s.repo.Update(ctx, job, prevVersion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist retry")
		return nil, fmt.Errorf("retry payment (job_id: %s): %w", jobID, err)
	}

	s.publish(ctx, jobID, evts)
	s.dispatch(ctx, job)
	span.SetStatus(codes.Ok, "payment retry dispatched")

	return job, nil
}

func (s *service) CancelSettlement(ctx context.Context, jobID, actorID uuid.UUID) (*domain.JobProgress, error) {
	ctx, span := s.tracer.Start(ctx, "job_progress_service.cancel_settlement",
		trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()

	for try := 1; ; try++ {
		job, err := s.repo.Get(ctx, jobID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("cancel settlement (job_id: %s): %w", jobID, err)
		}

		if err := job.Authorize(actorID, domain.RoleClient); err != nil {
			span.RecordError(err)
			return nil, err
		}

		prevVersion := job.Version()
		evts, err := job.CancelPayment()
		s.metrics.IncTransitions(ctx, domain.ActionCancelPayment.String(), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancel rejected")
			return nil, err
		}

		// Stop the charge before persisting. If its completion already
		// landed the update conflicts and the reload sees the settled state.
		s.dispatcher.Cancel(jobID)

		err = s.repo.Update(ctx, job, prevVersion)
		if errors.Is(err, domain.ErrConflict) && try < maxSettleConflicts {
			span.AddEvent("cancel_conflict_retry")
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to persist cancellation")
			return nil, fmt.Errorf("cancel settlement (job_id: %s): %w", jobID, err)
		}

		s.publish(ctx, jobID, evts)
		s.logger.Info(ctx, "settlement canceled", "job_id", jobID, "attempt", job.State().PaymentAttempt)
		span.SetStatus(codes.Ok, "settlement canceled")

		return job, nil
	}
}

func (s *service) WorkerRating(ctx context.Context, workerID uuid.UUID) (domain.RatingSummary, error) {
	ctx, span := s.tracer.Start(ctx, "job_progress_service.worker_rating",
		trace.WithAttributes(attribute.String("worker_id", workerID.String())))
	defer span.End()

	summary, err := s.repo.WorkerRating(ctx, workerID)
	if err != nil {
		span.RecordError(err)
		return domain.RatingSummary{}, fmt.Errorf("worker rating (worker_id: %s): %w", workerID, err)
	}
	return summary, nil
}

func (s *service) ResumeSettlements(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "job_progress_service.resume_settlements")
	defer span.End()

	jobs, err := s.repo.ListPendingSettlements(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("resume settlements: %w", err)
	}

	for _, job := range jobs {
		s.dispatch(ctx, job)
	}
	span.SetAttributes(attribute.Int("resumed", len(jobs)))
	if len(jobs) > 0 {
		s.logger.Info(ctx, "resumed pending settlements", "count", len(jobs))
	}

	return len(jobs), nil
}

// dispatch hands the job's current settlement attempt to the dispatcher. The
// completion is fed back through SettlePayment, where the attempt token
// rejects anything stale.
func (s *service) dispatch(ctx context.Context, job *domain.JobProgress) {
	req := job.ChargeRequest()
	trace.SpanFromContext(ctx).AddEvent("settlement_dispatched",
		trace.WithAttributes(attribute.Int("attempt", req.Attempt)))

	s.dispatcher.Dispatch(req, func(ctx context.Context, out Outcome) {
		_, err := s.SettlePayment(ctx, out.Request.JobID, out.Request.Attempt, out.Receipt, out.Err)
		if err != nil && !errors.Is(err, domain.ErrStaleSettlement) {
			s.logger.Error(ctx, "failed to record settlement", "job_id", out.Request.JobID,
				"attempt", out.Request.Attempt, "error", err)
		}
	})
}

// publish sends evts keyed by job. The state change is already durable, so a
// publish failure is logged rather than failing the request.
func (s *service) publish(ctx context.Context, jobID uuid.UUID, evts []events.DomainEvent) {
	span := trace.SpanFromContext(ctx)
	for _, evt := range evts {
		if err := s.publisher.PublishDomainEvent(ctx, evt, events.WithKey(jobID.String())); err != nil {
			span.RecordError(err)
			s.logger.Error(ctx, "failed to publish domain event",
				"job_id", jobID, "event_type", evt.EventType(), "error", err)
			continue
		}
		span.AddEvent("event_published", trace.WithAttributes(attribute.String("event_type", string(evt.EventType()))))
	}
}
