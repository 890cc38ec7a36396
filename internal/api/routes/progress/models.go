package progress

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	domain "github.com/workielk/workie/internal/domain/progress"
)

// JobView is the canonical job progress returned to participants. Clients
// render it as is and never derive stage changes locally.
type JobView struct {
	JobID         uuid.UUID            `json:"job_id"`
	PostingID     uuid.UUID            `json:"posting_id"`
	ApplicationID uuid.UUID            `json:"application_id"`
	ClientID      uuid.UUID            `json:"client_id"`
	WorkerID      uuid.UUID            `json:"worker_id"`
	Amount        int64                `json:"amount"`
	Stage         int                  `json:"stage"`
	StageName     string               `json:"stage_name"`
	State         domain.State         `json:"state"`
	History       []domain.StageChange `json:"history"`
	CreatedAt     time.Time            `json:"created_at"`
	LastUpdate    time.Time            `json:"last_update"`
	ClosedAt      *time.Time           `json:"closed_at,omitempty"`
}

// NewJobView converts a domain job into its API representation.
func NewJobView(job *domain.JobProgress) JobView {
	p := job.Participants()
	tl := job.Timeline()

	v := JobView{
		JobID:         job.JobID(),
		PostingID:     job.PostingID(),
		ApplicationID: job.ApplicationID(),
		ClientID:      p.ClientID,
		WorkerID:      p.WorkerID,
		Amount:        job.Amount(),
		Stage:         int(job.Stage()),
		StageName:     job.Stage().String(),
		State:         job.State(),
		History:       tl.History(),
		CreatedAt:     tl.CreatedAt(),
		LastUpdate:    tl.LastUpdate(),
	}
	if tl.IsClosed() {
		closed := tl.ClosedAt()
		v.ClosedAt = &closed
	}
	if v.History == nil {
		v.History = []domain.StageChange{}
	}
	return v
}

// Encode implements the web.Encoder interface.
func (v JobView) Encode() ([]byte, string, error) {
	data, err := json.Marshal(v)
	return data, "application/json", err
}

type availabilityResponse domain.ActionAvailability

// Encode implements the web.Encoder interface.
func (a availabilityResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(domain.ActionAvailability(a))
	return data, "application/json", err
}

// actionRequest asks the server to apply one action on behalf of a
// participant.
type actionRequest struct {
	ActorID         string `json:"actor_id" validate:"required,uuid"`
	Role            string `json:"role" validate:"required,oneof=worker client"`
	Action          string `json:"action" validate:"required"`
	Review          string `json:"review"`
	Rating          int    `json:"rating"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type settlementRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

type gateEntry struct {
	Role   domain.Role   `json:"role"`
	Action domain.Action `json:"action"`
	Label  string        `json:"label"`
}

type stageView struct {
	ID      int         `json:"id"`
	Name    string      `json:"name"`
	Actions []gateEntry `json:"actions"`
}

type stagesResponse struct {
	Stages []stageView `json:"stages"`
}

// Encode implements the web.Encoder interface.
func (s stagesResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(s)
	return data, "application/json", err
}

func newStagesResponse() stagesResponse {
	descs := domain.Stages()
	resp := stagesResponse{Stages: make([]stageView, 0, len(descs))}
	for _, d := range descs {
		sv := stageView{ID: int(d.ID), Name: d.Name, Actions: []gateEntry{}}
		for _, role := range []domain.Role{domain.RoleWorker, domain.RoleClient} {
			if a, ok := domain.ActionFor(role, d.ID); ok {
				sv.Actions = append(sv.Actions, gateEntry{Role: role, Action: a, Label: a.Label()})
			}
		}
		resp.Stages = append(resp.Stages, sv)
	}
	return resp
}

type ratingResponse domain.RatingSummary

// Encode implements the web.Encoder interface.
func (r ratingResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(domain.RatingSummary(r))
	return data, "application/json", err
}
