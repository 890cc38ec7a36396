// Package marketplace runs the posting and application workflows that lead up
// to a hired job.
package marketplace

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	domain "github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

// Repository is the storage the marketplace service needs.
type Repository interface {
	domain.PostingRepository
	domain.ApplicationRepository
}

// Service manages postings and applications.
type Service interface {
	CreatePosting(ctx context.Context, clientID uuid.UUID, details domain.PostingDetails) (*domain.Posting, error)
	GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error)
	ListPostings(ctx context.Context, filter domain.PostingFilter) ([]*domain.Posting, error)
	ClosePosting(ctx context.Context, id, actorID uuid.UUID) (*domain.Posting, error)

	// Apply submits workerID's application and seeds its job progress at
	// the first stage.
	Apply(ctx context.Context, postingID, workerID uuid.UUID, coverNote string) (*domain.Application, *progress.JobProgress, error)
	ListApplications(ctx context.Context, postingID, actorID uuid.UUID) ([]*domain.Application, error)
}

var _ Service = (*service)(nil)

type service struct {
	repo      Repository
	publisher events.DomainEventPublisher

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates the marketplace service.
func NewService(repo Repository, publisher events.DomainEventPublisher, logger *logger.Logger, tracer trace.Tracer) *service {
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "marketplace_service"),
		tracer:    tracer,
	}
}

func (s *service) CreatePosting(ctx context.Context, clientID uuid.UUID, details domain.PostingDetails) (*domain.Posting, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.create_posting",
		trace.WithAttributes(attribute.String("client_id", clientID.String())))
	defer span.End()

	posting := domain.NewPosting(clientID, details)
	if err := s.repo.CreatePosting(ctx, posting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create posting")
		return nil, fmt.Errorf("create posting: %w", err)
	}

	s.publish(ctx, posting.ID(), domain.NewPostingCreatedEvent(posting))
	s.logger.Info(ctx, "posting created", "posting_id", posting.ID(), "type", posting.Details().Type)
	span.SetAttributes(attribute.String("posting_id", posting.ID().String()))

	return posting, nil
}

func (s *service) GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.get_posting",
		trace.WithAttributes(attribute.String("posting_id", id.String())))
	defer span.End()

	posting, err := s.repo.GetPosting(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get posting (posting_id: %s): %w", id, err)
	}
	return posting, nil
}

func (s *service) ListPostings(ctx context.Context, filter domain.PostingFilter) ([]*domain.Posting, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.list_postings",
		trace.WithAttributes(
			attribute.String("status", string(filter.Status)),
			attribute.String("skill", filter.Skill),
			attribute.Int("limit", filter.PageLimit()),
		))
	defer span.End()

	filter.Limit = filter.PageLimit()
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	postings, err := s.repo.ListPostings(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list postings: %w", err)
	}
	span.SetAttributes(attribute.Int("count", len(postings)))

	return postings, nil
}

func (s *service) ClosePosting(ctx context.Context, id, actorID uuid.UUID) (*domain.Posting, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.close_posting",
		trace.WithAttributes(attribute.String("posting_id", id.String())))
	defer span.End()

	posting, err := s.repo.GetPosting(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("close posting (posting_id: %s): %w", id, err)
	}

	wasOpen := posting.IsOpen()
	if err := posting.Close(actorID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close rejected")
		return nil, fmt.Errorf("close posting (posting_id: %s): %w", id, err)
	}
	if !wasOpen {
		return posting, nil
	}

	if err := s.repo.UpdatePosting(ctx, posting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist posting")
		return nil, fmt.Errorf("close posting (posting_id: %s): %w", id, err)
	}

	s.publish(ctx, posting.ID(), domain.NewPostingClosedEvent(posting))
	s.logger.Info(ctx, "posting closed", "posting_id", id)

	return posting, nil
}

func (s *service) Apply(
	ctx context.Context,
	postingID, workerID uuid.UUID,
	coverNote string,
) (*domain.Application, *progress.JobProgress, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.apply",
		trace.WithAttributes(
			attribute.String("posting_id", postingID.String()),
			attribute.String("worker_id", workerID.String()),
		))
	defer span.End()

	posting, err := s.repo.GetPosting(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("apply (posting_id: %s): %w", postingID, err)
	}

	app, err := domain.NewApplication(posting, workerID, coverNote)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "application rejected")
		return nil, nil, fmt.Errorf("apply (posting_id: %s): %w", postingID, err)
	}

	job := progress.NewJobProgress(
		app.ID(),
		posting.ID(),
		app.ID(),
		progress.Participants{ClientID: posting.ClientID(), WorkerID: workerID},
		posting.Details().Salary,
	)

	if err := s.repo.CreateApplication(ctx, app, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store application")
		return nil, nil, fmt.Errorf("apply (posting_id: %s): %w", postingID, err)
	}

	s.publish(ctx, app.ID(), domain.NewApplicationSubmittedEvent(app))
	s.logger.Info(ctx, "application submitted", "posting_id", postingID, "job_id", app.ID())
	span.SetAttributes(attribute.String("job_id", app.ID().String()))

	return app, job, nil
}

func (s *service) ListApplications(ctx context.Context, postingID, actorID uuid.UUID) ([]*domain.Application, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace_service.list_applications",
		trace.WithAttributes(attribute.String("posting_id", postingID.String())))
	defer span.End()

	posting, err := s.repo.GetPosting(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list applications (posting_id: %s): %w", postingID, err)
	}
	if posting.ClientID() != actorID {
		return nil, fmt.Errorf("list applications (posting_id: %s): %w", postingID, domain.ErrNotOwner)
	}

	apps, err := s.repo.ListApplications(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list applications (posting_id: %s): %w", postingID, err)
	}

	return apps, nil
}

func (s *service) publish(ctx context.Context, key uuid.UUID, evt events.DomainEvent) {
	if err := s.publisher.PublishDomainEvent(ctx, evt, events.WithKey(key.String())); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		s.logger.Error(ctx, "failed to publish domain event", "event_type", evt.EventType(), "error", err)
	}
}
