package progress

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for job progress.
type Repository interface {
	// Create inserts a new job progress record.
	Create(ctx context.Context, job *JobProgress) error

	// Get loads the canonical progress for a job. Returns ErrJobNotFound.
	Get(ctx context.Context, jobID uuid.UUID) (*JobProgress, error)

	// Update persists job only if the stored version still equals
	// expectedVersion. Returns ErrConflict otherwise.
	Update(ctx context.Context, job *JobProgress, expectedVersion int64) error

	// ListPendingSettlements returns jobs waiting on a payment processor,
	// used to re-dispatch settlements after a restart.
	ListPendingSettlements(ctx context.Context) ([]*JobProgress, error)

	// WorkerRating summarizes the ratings a worker received across all
	// reviewed jobs.
	WorkerRating(ctx context.Context, workerID uuid.UUID) (RatingSummary, error)
}

// RatingSummary aggregates a worker's received ratings.
type RatingSummary struct {
	WorkerID uuid.UUID `json:"worker_id"`
	Count    int       `json:"count"`
	Average  float64   `json:"average"`
}
