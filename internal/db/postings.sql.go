package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const postingColumns = `id, client_id, title, description, skills, location, salary, job_type, status, created_at, closed_at`

func scanPosting(row interface{ Scan(...any) error }) (Posting, error) {
	var i Posting
	err := row.Scan(
		&i.ID,
		&i.ClientID,
		&i.Title,
		&i.Description,
		&i.Skills,
		&i.Location,
		&i.Salary,
		&i.JobType,
		&i.Status,
		&i.CreatedAt,
		&i.ClosedAt,
	)
	return i, err
}

const createPosting = `-- name: CreatePosting :exec
INSERT INTO postings (` + postingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

type CreatePostingParams = Posting

func (q *Queries) CreatePosting(ctx context.Context, arg CreatePostingParams) error {
	_, err := q.db.Exec(ctx, createPosting,
		arg.ID,
		arg.ClientID,
		arg.Title,
		arg.Description,
		arg.Skills,
		arg.Location,
		arg.Salary,
		arg.JobType,
		arg.Status,
		arg.CreatedAt,
		arg.ClosedAt,
	)
	return err
}

const getPosting = `-- name: GetPosting :one
SELECT ` + postingColumns + ` FROM postings WHERE id = $1
`

func (q *Queries) GetPosting(ctx context.Context, id pgtype.UUID) (Posting, error) {
	return scanPosting(q.db.QueryRow(ctx, getPosting, id))
}

const updatePostingStatus = `-- name: UpdatePostingStatus :execrows
UPDATE postings SET status = $2, closed_at = $3 WHERE id = $1
`

type UpdatePostingStatusParams struct {
	ID       pgtype.UUID
	Status   string
	ClosedAt pgtype.Timestamptz
}

func (q *Queries) UpdatePostingStatus(ctx context.Context, arg UpdatePostingStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updatePostingStatus, arg.ID, arg.Status, arg.ClosedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listPostings = `-- name: ListPostings :many
SELECT ` + postingColumns + ` FROM postings
WHERE ($1::text = '' OR status = $1)
  AND ($2::text = '' OR EXISTS (SELECT 1 FROM unnest(skills) s WHERE lower(s) = lower($2)))
  AND ($3::uuid IS NULL OR client_id = $3)
ORDER BY created_at DESC, id ASC
LIMIT $4 OFFSET $5
`

type ListPostingsParams struct {
	Status   string
	Skill    string
	ClientID pgtype.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListPostings(ctx context.Context, arg ListPostingsParams) ([]Posting, error) {
	rows, err := q.db.Query(ctx, listPostings, arg.Status, arg.Skill, arg.ClientID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Posting{}
	for rows.Next() {
		i, err := scanPosting(rows)
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
