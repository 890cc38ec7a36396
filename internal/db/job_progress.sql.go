package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const jobProgressColumns = `job_id, posting_id, application_id, client_id, worker_id, amount,
current_stage, review, rating, payment_processing, payment_attempt, last_payment_error,
stage_six_closed_by, version, history, created_at, last_update, closed_at`

func scanJobProgress(row interface{ Scan(...any) error }) (JobProgress, error) {
	var i JobProgress
	err := row.Scan(
		&i.JobID,
		&i.PostingID,
		&i.ApplicationID,
		&i.ClientID,
		&i.WorkerID,
		&i.Amount,
		&i.CurrentStage,
		&i.Review,
		&i.Rating,
		&i.PaymentProcessing,
		&i.PaymentAttempt,
		&i.LastPaymentError,
		&i.StageSixClosedBy,
		&i.Version,
		&i.History,
		&i.CreatedAt,
		&i.LastUpdate,
		&i.ClosedAt,
	)
	return i, err
}

const createJobProgress = `-- name: CreateJobProgress :exec
INSERT INTO job_progress (` + jobProgressColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

type CreateJobProgressParams = JobProgress

func (q *Queries) CreateJobProgress(ctx context.Context, arg CreateJobProgressParams) error {
	_, err := q.db.Exec(ctx, createJobProgress,
		arg.JobID,
		arg.PostingID,
		arg.ApplicationID,
		arg.ClientID,
		arg.WorkerID,
		arg.Amount,
		arg.CurrentStage,
		arg.Review,
		arg.Rating,
		arg.PaymentProcessing,
		arg.PaymentAttempt,
		arg.LastPaymentError,
		arg.StageSixClosedBy,
		arg.Version,
		arg.History,
		arg.CreatedAt,
		arg.LastUpdate,
		arg.ClosedAt,
	)
	return err
}

const getJobProgress = `-- name: GetJobProgress :one
SELECT ` + jobProgressColumns + ` FROM job_progress WHERE job_id = $1
`

func (q *Queries) GetJobProgress(ctx context.Context, jobID pgtype.UUID) (JobProgress, error) {
	return scanJobProgress(q.db.QueryRow(ctx, getJobProgress, jobID))
}

const updateJobProgress = `-- name: UpdateJobProgress :execrows
UPDATE job_progress SET
    current_stage = $3,
    review = $4,
    rating = $5,
    payment_processing = $6,
    payment_attempt = $7,
    last_payment_error = $8,
    stage_six_closed_by = $9,
    version = $10,
    history = $11,
    last_update = $12,
    closed_at = $13
WHERE job_id = $1 AND version = $2
`

type UpdateJobProgressParams struct {
	JobID             pgtype.UUID
	ExpectedVersion   int64
	CurrentStage      int16
	Review            string
	Rating            int16
	PaymentProcessing bool
	PaymentAttempt    int32
	LastPaymentError  string
	StageSixClosedBy  string
	Version           int64
	History           []byte
	LastUpdate        pgtype.Timestamptz
	ClosedAt          pgtype.Timestamptz
}

func (q *Queries) UpdateJobProgress(ctx context.Context, arg UpdateJobProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateJobProgress,
		arg.JobID,
		arg.ExpectedVersion,
		arg.CurrentStage,
		arg.Review,
		arg.Rating,
		arg.PaymentProcessing,
		arg.PaymentAttempt,
		arg.LastPaymentError,
		arg.StageSixClosedBy,
		arg.Version,
		arg.History,
		arg.LastUpdate,
		arg.ClosedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const jobProgressExists = `-- name: JobProgressExists :one
SELECT EXISTS (SELECT 1 FROM job_progress WHERE job_id = $1)
`

func (q *Queries) JobProgressExists(ctx context.Context, jobID pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, jobProgressExists, jobID).Scan(&exists)
	return exists, err
}

const listProcessingJobProgress = `-- name: ListProcessingJobProgress :many
SELECT ` + jobProgressColumns + ` FROM job_progress
WHERE payment_processing AND current_stage = 5
ORDER BY last_update ASC
`

func (q *Queries) ListProcessingJobProgress(ctx context.Context) ([]JobProgress, error) {
	rows, err := q.db.Query(ctx, listProcessingJobProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []JobProgress{}
	for rows.Next() {
		i, err := scanJobProgress(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getWorkerRating = `-- name: GetWorkerRating :one
SELECT COUNT(*)::int AS count, COALESCE(AVG(rating), 0)::float8 AS average
FROM job_progress
WHERE worker_id = $1 AND rating > 0
`

type GetWorkerRatingRow struct {
	Count   int32
	Average float64
}

func (q *Queries) GetWorkerRating(ctx context.Context, workerID pgtype.UUID) (GetWorkerRatingRow, error) {
	var i GetWorkerRatingRow
	err := q.db.QueryRow(ctx, getWorkerRating, workerID).Scan(&i.Count, &i.Average)
	return i, err
}
