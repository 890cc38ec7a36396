package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/db"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/internal/infra/storage"
)

var _ progress.Repository = (*jobProgressStore)(nil)

// jobProgressStore implements progress.Repository. Updates are conditional on
// the version the caller loaded, which is how concurrent writers are detected.
type jobProgressStore struct {
	q      *db.Queries
	tracer trace.Tracer
}

// NewJobProgressStore creates a PostgreSQL-backed job progress repository.
func NewJobProgressStore(pool *pgxpool.Pool, tracer trace.Tracer) *jobProgressStore {
	return &jobProgressStore{q: db.New(pool), tracer: tracer}
}

func jobToRow(job *progress.JobProgress) (db.JobProgress, error) {
	history := job.Timeline().History()
	if history == nil {
		history = []progress.StageChange{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return db.JobProgress{}, fmt.Errorf("marshal stage history: %w", err)
	}

	state := job.State()
	participants := job.Participants()
	tl := job.Timeline()

	return db.JobProgress{
		JobID:             pgUUID(job.JobID()),
		PostingID:         pgUUID(job.PostingID()),
		ApplicationID:     pgUUID(job.ApplicationID()),
		ClientID:          pgUUID(participants.ClientID),
		WorkerID:          pgUUID(participants.WorkerID),
		Amount:            job.Amount(),
		CurrentStage:      int16(state.CurrentStage),
		Review:            state.Review,
		Rating:            int16(state.Rating),
		PaymentProcessing: state.PaymentProcessing,
		PaymentAttempt:    int32(state.PaymentAttempt),
		LastPaymentError:  state.LastPaymentError,
		StageSixClosedBy:  string(state.StageSixClosedBy),
		Version:           state.Version,
		History:           historyJSON,
		CreatedAt:         timestamptz(tl.CreatedAt()),
		LastUpdate:        timestamptz(tl.LastUpdate()),
		ClosedAt:          timestamptz(tl.ClosedAt()),
	}, nil
}

func jobFromRow(row db.JobProgress) (*progress.JobProgress, error) {
	var history []progress.StageChange
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &history); err != nil {
			return nil, fmt.Errorf("unmarshal stage history: %w", err)
		}
	}

	state := progress.State{
		CurrentStage:      progress.Stage(row.CurrentStage),
		Review:            row.Review,
		Rating:            int(row.Rating),
		PaymentProcessing: row.PaymentProcessing,
		PaymentAttempt:    int(row.PaymentAttempt),
		LastPaymentError:  row.LastPaymentError,
		StageSixClosedBy:  progress.Role(row.StageSixClosedBy),
		Version:           row.Version,
	}

	return progress.ReconstructJobProgress(
		row.JobID.Bytes,
		row.PostingID.Bytes,
		row.ApplicationID.Bytes,
		progress.Participants{ClientID: row.ClientID.Bytes, WorkerID: row.WorkerID.Bytes},
		row.Amount,
		state,
		progress.ReconstructTimeline(
			fromTimestamptz(row.CreatedAt),
			fromTimestamptz(row.LastUpdate),
			fromTimestamptz(row.ClosedAt),
			history,
		),
	), nil
}

// Create inserts a new job progress record.
func (s *jobProgressStore) Create(ctx context.Context, job *progress.JobProgress) error {
	dbAttrs := dbAttributes(attribute.String("job_id", job.JobID().String()))

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_job_progress", dbAttrs, func(ctx context.Context) error {
		row, err := jobToRow(job)
		if err != nil {
			return err
		}
		if err := s.q.CreateJobProgress(ctx, row); err != nil {
			return fmt.Errorf("CreateJobProgress insert error: %w", err)
		}
		return nil
	})
}

// Get loads a job's progress.
func (s *jobProgressStore) Get(ctx context.Context, jobID uuid.UUID) (*progress.JobProgress, error) {
	var job *progress.JobProgress
	dbAttrs := dbAttributes(attribute.String("job_id", jobID.String()))

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_job_progress", dbAttrs, func(ctx context.Context) error {
		row, err := s.q.GetJobProgress(ctx, pgUUID(jobID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return progress.ErrJobNotFound
			}
			return fmt.Errorf("GetJobProgress query error: %w", err)
		}

		job, err = jobFromRow(row)
		return err
	})
	return job, err
}

// Update writes job if the stored version still equals expectedVersion.
func (s *jobProgressStore) Update(ctx context.Context, job *progress.JobProgress, expectedVersion int64) error {
	dbAttrs := dbAttributes(
		attribute.String("job_id", job.JobID().String()),
		attribute.Int("stage", int(job.Stage())),
		attribute.Int64("expected_version", expectedVersion),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_job_progress", dbAttrs, func(ctx context.Context) error {
		row, err := jobToRow(job)
		if err != nil {
			return err
		}

		rowsAffected, err := s.q.UpdateJobProgress(ctx, db.UpdateJobProgressParams{
			JobID:             row.JobID,
			ExpectedVersion:   expectedVersion,
			CurrentStage:      row.CurrentStage,
			Review:            row.Review,
			Rating:            row.Rating,
			PaymentProcessing: row.PaymentProcessing,
			PaymentAttempt:    row.PaymentAttempt,
			LastPaymentError:  row.LastPaymentError,
			StageSixClosedBy:  row.StageSixClosedBy,
			Version:           row.Version,
			History:           row.History,
			LastUpdate:        row.LastUpdate,
			ClosedAt:          row.ClosedAt,
		})
		if err != nil {
			return fmt.Errorf("UpdateJobProgress query error: %w", err)
		}
		if rowsAffected > 0 {
			return nil
		}

		exists, err := s.q.JobProgressExists(ctx, row.JobID)
		if err != nil {
			return fmt.Errorf("JobProgressExists query error: %w", err)
		}
		if !exists {
			return progress.ErrJobNotFound
		}
		return fmt.Errorf("job %s at version %d: %w", job.JobID(), expectedVersion, progress.ErrConflict)
	})
}

// ListPendingSettlements returns jobs whose payment was still processing.
func (s *jobProgressStore) ListPendingSettlements(ctx context.Context) ([]*progress.JobProgress, error) {
	var jobs []*progress.JobProgress

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_pending_settlements", dbAttributes(), func(ctx context.Context) error {
		rows, err := s.q.ListProcessingJobProgress(ctx)
		if err != nil {
			return fmt.Errorf("ListProcessingJobProgress query error: %w", err)
		}

		jobs = make([]*progress.JobProgress, 0, len(rows))
		for _, row := range rows {
			job, err := jobFromRow(row)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	return jobs, err
}

// WorkerRating aggregates the ratings of a worker's reviewed jobs.
func (s *jobProgressStore) WorkerRating(ctx context.Context, workerID uuid.UUID) (progress.RatingSummary, error) {
	summary := progress.RatingSummary{WorkerID: workerID}
	dbAttrs := dbAttributes(attribute.String("worker_id", workerID.String()))

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.worker_rating", dbAttrs, func(ctx context.Context) error {
		row, err := s.q.GetWorkerRating(ctx, pgUUID(workerID))
		if err != nil {
			return fmt.Errorf("GetWorkerRating query error: %w", err)
		}
		summary.Count = int(row.Count)
		summary.Average = row.Average
		return nil
	})
	return summary, err
}
