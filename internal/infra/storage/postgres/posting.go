package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/db"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/internal/infra/storage"
)

var (
	_ marketplace.PostingRepository     = (*marketplaceStore)(nil)
	_ marketplace.ApplicationRepository = (*marketplaceStore)(nil)
)

// marketplaceStore persists postings and applications. An application is
// written in the same transaction as the job progress it seeds.
type marketplaceStore struct {
	q      *db.Queries
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewMarketplaceStore creates a PostgreSQL-backed posting and application
// repository.
func NewMarketplaceStore(pool *pgxpool.Pool, tracer trace.Tracer) *marketplaceStore {
	return &marketplaceStore{
		q:      db.New(pool),
		db:     pool,
		tracer: tracer,
	}
}

func postingToRow(p *marketplace.Posting) db.Posting {
	d := p.Details()
	skills := d.Skills
	if skills == nil {
		skills = []string{}
	}
	return db.Posting{
		ID:          pgUUID(p.ID()),
		ClientID:    pgUUID(p.ClientID()),
		Title:       d.Title,
		Description: d.Description,
		Skills:      skills,
		Location:    d.Location,
		Salary:      d.Salary,
		JobType:     string(d.Type),
		Status:      string(p.Status()),
		CreatedAt:   timestamptz(p.CreatedAt()),
		ClosedAt:    timestamptz(p.ClosedAt()),
	}
}

func postingFromRow(row db.Posting) *marketplace.Posting {
	return marketplace.ReconstructPosting(
		row.ID.Bytes,
		row.ClientID.Bytes,
		marketplace.PostingDetails{
			Title:       row.Title,
			Description: row.Description,
			Skills:      row.Skills,
			Location:    row.Location,
			Salary:      row.Salary,
			Type:        marketplace.JobType(row.JobType),
		},
		marketplace.PostingStatus(row.Status),
		fromTimestamptz(row.CreatedAt),
		fromTimestamptz(row.ClosedAt),
	)
}

// CreatePosting inserts a new posting.
func (s *marketplaceStore) CreatePosting(ctx context.Context, p *marketplace.Posting) error {
	dbAttrs := dbAttributes(
		attribute.String("posting_id", p.ID().String()),
		attribute.String("client_id", p.ClientID().String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_posting", dbAttrs, func(ctx context.Context) error {
		if err := s.q.CreatePosting(ctx, postingToRow(p)); err != nil {
			return fmt.Errorf("CreatePosting insert error: %w", err)
		}
		return nil
	})
}

// GetPosting loads a posting by id.
func (s *marketplaceStore) GetPosting(ctx context.Context, id uuid.UUID) (*marketplace.Posting, error) {
	var posting *marketplace.Posting
	dbAttrs := dbAttributes(attribute.String("posting_id", id.String()))

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_posting", dbAttrs, func(ctx context.Context) error {
		row, err := s.q.GetPosting(ctx, pgUUID(id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return marketplace.ErrPostingNotFound
			}
			return fmt.Errorf("GetPosting query error: %w", err)
		}
		posting = postingFromRow(row)
		return nil
	})
	return posting, err
}

// UpdatePosting writes a posting's status change.
func (s *marketplaceStore) UpdatePosting(ctx context.Context, p *marketplace.Posting) error {
	dbAttrs := dbAttributes(
		attribute.String("posting_id", p.ID().String()),
		attribute.String("status", string(p.Status())),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_posting", dbAttrs, func(ctx context.Context) error {
		rows, err := s.q.UpdatePostingStatus(ctx, db.UpdatePostingStatusParams{
			ID:       pgUUID(p.ID()),
			Status:   string(p.Status()),
			ClosedAt: timestamptz(p.ClosedAt()),
		})
		if err != nil {
			return fmt.Errorf("UpdatePostingStatus query error: %w", err)
		}
		if rows == 0 {
			return marketplace.ErrPostingNotFound
		}
		return nil
	})
}

// ListPostings returns postings matching filter, newest first.
func (s *marketplaceStore) ListPostings(ctx context.Context, filter marketplace.PostingFilter) ([]*marketplace.Posting, error) {
	var postings []*marketplace.Posting
	dbAttrs := dbAttributes(
		attribute.String("status", string(filter.Status)),
		attribute.String("skill", filter.Skill),
		attribute.Int("limit", filter.PageLimit()),
		attribute.Int("offset", filter.Offset),
	)

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_postings", dbAttrs, func(ctx context.Context) error {
		rows, err := s.q.ListPostings(ctx, db.ListPostingsParams{
			Status:   string(filter.Status),
			Skill:    filter.Skill,
			ClientID: pgUUID(filter.ClientID),
			Limit:    int32(filter.PageLimit()),
			Offset:   int32(max(filter.Offset, 0)),
		})
		if err != nil {
			return fmt.Errorf("ListPostings query error: %w", err)
		}

		postings = make([]*marketplace.Posting, 0, len(rows))
		for _, row := range rows {
			postings = append(postings, postingFromRow(row))
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("count", len(postings)))
		return nil
	})
	return postings, err
}

// CreateApplication stores the application and its job progress atomically.
func (s *marketplaceStore) CreateApplication(ctx context.Context, app *marketplace.Application, job *progress.JobProgress) error {
	dbAttrs := dbAttributes(
		attribute.String("application_id", app.ID().String()),
		attribute.String("posting_id", app.PostingID().String()),
		attribute.String("worker_id", app.WorkerID().String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_application", dbAttrs, func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		qtx := s.q.WithTx(tx)

		err = qtx.CreateApplication(ctx, db.CreateApplicationParams{
			ID:        pgUUID(app.ID()),
			PostingID: pgUUID(app.PostingID()),
			WorkerID:  pgUUID(app.WorkerID()),
			ClientID:  pgUUID(app.ClientID()),
			CoverNote: app.CoverNote(),
			CreatedAt: timestamptz(app.CreatedAt()),
		})
		if err != nil {
			if isUniqueViolation(err) {
				return marketplace.ErrAlreadyApplied
			}
			return fmt.Errorf("CreateApplication insert error: %w", err)
		}

		row, err := jobToRow(job)
		if err != nil {
			return err
		}
		if err := qtx.CreateJobProgress(ctx, row); err != nil {
			return fmt.Errorf("CreateJobProgress insert error: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// ListApplications returns a posting's applications, oldest first.
func (s *marketplaceStore) ListApplications(ctx context.Context, postingID uuid.UUID) ([]*marketplace.Application, error) {
	var apps []*marketplace.Application
	dbAttrs := dbAttributes(attribute.String("posting_id", postingID.String()))

	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_applications", dbAttrs, func(ctx context.Context) error {
		rows, err := s.q.ListApplicationsByPosting(ctx, pgUUID(postingID))
		if err != nil {
			return fmt.Errorf("ListApplicationsByPosting query error: %w", err)
		}

		apps = make([]*marketplace.Application, 0, len(rows))
		for _, row := range rows {
			apps = append(apps, marketplace.ReconstructApplication(
				row.ID.Bytes,
				row.PostingID.Bytes,
				row.WorkerID.Bytes,
				row.ClientID.Bytes,
				row.CoverNote,
				fromTimestamptz(row.CreatedAt),
			))
		}
		return nil
	})
	return apps, err
}
