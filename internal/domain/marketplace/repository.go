package marketplace

import (
	"context"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/domain/progress"
)

// PostingFilter narrows ListPostings. Zero values match everything.
type PostingFilter struct {
	Status   PostingStatus
	Skill    string
	ClientID uuid.UUID
	Limit    int
	Offset   int
}

// DefaultListLimit caps list results when no limit is given.
const DefaultListLimit = 50

// MaxListLimit is the largest page a caller may request.
const MaxListLimit = 200

// PageLimit clamps a requested limit to [1, MaxListLimit].
func (f PostingFilter) PageLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// PostingRepository defines the persistence operations for postings.
type PostingRepository interface {
	CreatePosting(ctx context.Context, p *Posting) error
	GetPosting(ctx context.Context, id uuid.UUID) (*Posting, error)
	UpdatePosting(ctx context.Context, p *Posting) error
	ListPostings(ctx context.Context, filter PostingFilter) ([]*Posting, error)
}

// ApplicationRepository defines the persistence operations for applications.
type ApplicationRepository interface {
	// CreateApplication stores the application together with the job
	// progress it seeds. Returns ErrAlreadyApplied for a duplicate
	// (posting, worker) pair.
	CreateApplication(ctx context.Context, app *Application, job *progress.JobProgress) error
	ListApplications(ctx context.Context, postingID uuid.UUID) ([]*Application, error)
}
