// Package marketplace contains job postings and the applications workers make
// to them. An accepted application becomes a tracked job.
package marketplace

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPostingNotFound is returned when no posting exists for an id.
	ErrPostingNotFound = errors.New("posting not found")
	// ErrPostingClosed is returned when applying to a closed posting.
	ErrPostingClosed = errors.New("posting is closed")
	// ErrAlreadyApplied is returned when a worker applies twice to a posting.
	ErrAlreadyApplied = errors.New("worker already applied to this posting")
	// ErrSelfApplication is returned when a client applies to their own posting.
	ErrSelfApplication = errors.New("clients cannot apply to their own postings")
	// ErrNotOwner is returned when someone other than the posting's client
	// tries to change it.
	ErrNotOwner = errors.New("only the posting's client may change it")
)

// JobType is the engagement model of a posting.
type JobType string

const (
	JobTypeFullTime JobType = "full-time"
	JobTypePartTime JobType = "part-time"
	JobTypeContract JobType = "contract"
	JobTypeOneOff   JobType = "one-off"
)

// ParseJobType converts a string to a JobType.
func ParseJobType(s string) (JobType, error) {
	switch t := JobType(strings.ToLower(strings.TrimSpace(s))); t {
	case JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeOneOff:
		return t, nil
	default:
		return "", fmt.Errorf("unknown job type %q", s)
	}
}

// PostingStatus is whether a posting still accepts applications.
type PostingStatus string

const (
	PostingOpen   PostingStatus = "open"
	PostingClosed PostingStatus = "closed"
)

// ParsePostingStatus converts a string to a PostingStatus.
func ParsePostingStatus(s string) (PostingStatus, error) {
	switch st := PostingStatus(s); st {
	case PostingOpen, PostingClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown posting status %q", s)
	}
}

// PostingDetails are the client supplied fields of a posting.
type PostingDetails struct {
	Title       string
	Description string
	Skills      []string
	Location    string
	Salary      int64
	Type        JobType
}

// Posting is a job advertised by a client.
type Posting struct {
	id        uuid.UUID
	clientID  uuid.UUID
	details   PostingDetails
	status    PostingStatus
	createdAt time.Time
	closedAt  time.Time
}

// NewPosting creates an open posting owned by clientID.
func NewPosting(clientID uuid.UUID, details PostingDetails) *Posting {
	return &Posting{
		id:        uuid.New(),
		clientID:  clientID,
		details:   normalizeDetails(details),
		status:    PostingOpen,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructPosting creates a Posting from stored fields.
func ReconstructPosting(
	id, clientID uuid.UUID,
	details PostingDetails,
	status PostingStatus,
	createdAt, closedAt time.Time,
) *Posting {
	return &Posting{
		id:        id,
		clientID:  clientID,
		details:   details,
		status:    status,
		createdAt: createdAt,
		closedAt:  closedAt,
	}
}

func (p *Posting) ID() uuid.UUID           { return p.id }
func (p *Posting) ClientID() uuid.UUID     { return p.clientID }
func (p *Posting) Details() PostingDetails { return p.details }
func (p *Posting) Status() PostingStatus   { return p.status }
func (p *Posting) CreatedAt() time.Time    { return p.createdAt }
func (p *Posting) ClosedAt() time.Time     { return p.closedAt }
func (p *Posting) IsOpen() bool            { return p.status == PostingOpen }

// Close stops the posting from taking new applications. Closing twice is a
// no-op.
func (p *Posting) Close(actorID uuid.UUID) error {
	if actorID != p.clientID {
		return ErrNotOwner
	}
	if p.status == PostingClosed {
		return nil
	}
	p.status = PostingClosed
	p.closedAt = time.Now().UTC()
	return nil
}

// HasSkill reports whether the posting lists skill, ignoring case.
func (p *Posting) HasSkill(skill string) bool {
	for _, s := range p.details.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

func normalizeDetails(d PostingDetails) PostingDetails {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)

	seen := make(map[string]struct{}, len(d.Skills))
	skills := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, s)
	}
	d.Skills = skills

	return d
}
