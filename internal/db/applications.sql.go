package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createApplication = `-- name: CreateApplication :exec
INSERT INTO applications (id, posting_id, worker_id, client_id, cover_note, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateApplicationParams = Application

func (q *Queries) CreateApplication(ctx context.Context, arg CreateApplicationParams) error {
	_, err := q.db.Exec(ctx, createApplication,
		arg.ID,
		arg.PostingID,
		arg.WorkerID,
		arg.ClientID,
		arg.CoverNote,
		arg.CreatedAt,
	)
	return err
}

const listApplicationsByPosting = `-- name: ListApplicationsByPosting :many
SELECT id, posting_id, worker_id, client_id, cover_note, created_at
FROM applications
WHERE posting_id = $1
ORDER BY created_at ASC
`

func (q *Queries) ListApplicationsByPosting(ctx context.Context, postingID pgtype.UUID) ([]Application, error) {
	rows, err := q.db.Query(ctx, listApplicationsByPosting, postingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Application{}
	for rows.Next() {
		var i Application
		if err := rows.Scan(
			&i.ID,
			&i.PostingID,
			&i.WorkerID,
			&i.ClientID,
			&i.CoverNote,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
