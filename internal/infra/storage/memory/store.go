// Package memory provides in-memory implementations of the repositories for
// tests and local development. Stored aggregates are copied on the way in and
// out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
)

var (
	_ progress.Repository               = (*Store)(nil)
	_ marketplace.PostingRepository     = (*Store)(nil)
	_ marketplace.ApplicationRepository = (*Store)(nil)
)

type applicationKey struct {
	postingID uuid.UUID
	workerID  uuid.UUID
}

// Store keeps postings, applications and job progress in maps.
type Store struct {
	mu sync.RWMutex

	postings     map[uuid.UUID]*marketplace.Posting
	applications map[uuid.UUID]*marketplace.Application
	appByWorker  map[applicationKey]uuid.UUID
	jobs         map[uuid.UUID]*progress.JobProgress
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		postings:     make(map[uuid.UUID]*marketplace.Posting),
		applications: make(map[uuid.UUID]*marketplace.Application),
		appByWorker:  make(map[applicationKey]uuid.UUID),
		jobs:         make(map[uuid.UUID]*progress.JobProgress),
	}
}

func copyJob(j *progress.JobProgress) *progress.JobProgress {
	tl := j.Timeline()
	return progress.ReconstructJobProgress(
		j.JobID(),
		j.PostingID(),
		j.ApplicationID(),
		j.Participants(),
		j.Amount(),
		j.State(),
		progress.ReconstructTimeline(tl.CreatedAt(), tl.LastUpdate(), tl.ClosedAt(), tl.History()),
	)
}

func copyPosting(p *marketplace.Posting) *marketplace.Posting {
	d := p.Details()
	d.Skills = append([]string(nil), d.Skills...)
	return marketplace.ReconstructPosting(p.ID(), p.ClientID(), d, p.Status(), p.CreatedAt(), p.ClosedAt())
}

func copyApplication(a *marketplace.Application) *marketplace.Application {
	return marketplace.ReconstructApplication(a.ID(), a.PostingID(), a.WorkerID(), a.ClientID(), a.CoverNote(), a.CreatedAt())
}

// Create implements progress.Repository.
func (s *Store) Create(_ context.Context, job *progress.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID()]; exists {
		return fmt.Errorf("job progress %s already exists", job.JobID())
	}
	s.jobs[job.JobID()] = copyJob(job)
	return nil
}

// Get implements progress.Repository.
func (s *Store) Get(_ context.Context, jobID uuid.UUID) (*progress.JobProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, progress.ErrJobNotFound
	}
	return copyJob(job), nil
}

// Update implements progress.Repository.
func (s *Store) Update(_ context.Context, job *progress.JobProgress, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[job.JobID()]
	if !ok {
		return progress.ErrJobNotFound
	}
	if cur.Version() != expectedVersion {
		return progress.ErrConflict
	}
	s.jobs[job.JobID()] = copyJob(job)
	return nil
}

// ListPendingSettlements implements progress.Repository.
func (s *Store) ListPendingSettlements(_ context.Context) ([]*progress.JobProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*progress.JobProgress
	for _, job := range s.jobs {
		if job.State().PaymentProcessing {
			out = append(out, copyJob(job))
		}
	}
	return out, nil
}

// WorkerRating implements progress.Repository.
func (s *Store) WorkerRating(_ context.Context, workerID uuid.UUID) (progress.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := progress.RatingSummary{WorkerID: workerID}
	total := 0
	for _, job := range s.jobs {
		if job.Participants().WorkerID != workerID || !job.State().Reviewed() {
			continue
		}
		summary.Count++
		total += job.State().Rating
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

// CreatePosting implements marketplace.PostingRepository.
func (s *Store) CreatePosting(_ context.Context, p *marketplace.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.postings[p.ID()] = copyPosting(p)
	return nil
}

// GetPosting implements marketplace.PostingRepository.
func (s *Store) GetPosting(_ context.Context, id uuid.UUID) (*marketplace.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.postings[id]
	if !ok {
		return nil, marketplace.ErrPostingNotFound
	}
	return copyPosting(p), nil
}

// UpdatePosting implements marketplace.PostingRepository.
func (s *Store) UpdatePosting(_ context.Context, p *marketplace.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postings[p.ID()]; !ok {
		return marketplace.ErrPostingNotFound
	}
	s.postings[p.ID()] = copyPosting(p)
	return nil
}

// ListPostings implements marketplace.PostingRepository. Results are newest
// first.
func (s *Store) ListPostings(_ context.Context, filter marketplace.PostingFilter) ([]*marketplace.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*marketplace.Posting, 0, len(s.postings))
	for _, p := range s.postings {
		if filter.Status != "" && p.Status() != filter.Status {
			continue
		}
		if filter.ClientID != uuid.Nil && p.ClientID() != filter.ClientID {
			continue
		}
		if filter.Skill != "" && !p.HasSkill(filter.Skill) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].ID().String() < matched[j].ID().String()
		}
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})

	if filter.Offset >= len(matched) {
		return []*marketplace.Posting{}, nil
	}
	matched = matched[max(filter.Offset, 0):]
	if limit := filter.PageLimit(); len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*marketplace.Posting, 0, len(matched))
	for _, p := range matched {
		out = append(out, copyPosting(p))
	}
	return out, nil
}

// CreateApplication implements marketplace.ApplicationRepository.
func (s *Store) CreateApplication(_ context.Context, app *marketplace.Application, job *progress.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := applicationKey{postingID: app.PostingID(), workerID: app.WorkerID()}
	if _, dup := s.appByWorker[key]; dup {
		return marketplace.ErrAlreadyApplied
	}

	s.applications[app.ID()] = copyApplication(app)
	s.appByWorker[key] = app.ID()
	s.jobs[job.JobID()] = copyJob(job)
	return nil
}

// ListApplications implements marketplace.ApplicationRepository. Results are
// oldest first.
func (s *Store) ListApplications(_ context.Context, postingID uuid.UUID) ([]*marketplace.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*marketplace.Application
	for _, a := range s.applications {
		if a.PostingID() == postingID {
			out = append(out, copyApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}
