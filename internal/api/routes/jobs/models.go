package jobs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	progressroutes "github.com/workielk/workie/internal/api/routes/progress"
	"github.com/workielk/workie/internal/domain/marketplace"
)

type postingRequest struct {
	ClientID    string   `json:"client_id" validate:"required,uuid"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Skills      []string `json:"skills" validate:"max=30,dive,required,max=50"`
	Location    string   `json:"location" validate:"required"`
	Salary      int64    `json:"salary" validate:"min=0"`
	Type        string   `json:"type" validate:"required,oneof=full-time part-time contract one-off"`
}

type closeRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

type applyRequest struct {
	WorkerID  string `json:"worker_id" validate:"required,uuid"`
	CoverNote string `json:"cover_note" validate:"max=2000"`
}

// postingView is the public shape of a posting.
type postingView struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"client_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Skills      []string   `json:"skills"`
	Location    string     `json:"location"`
	Salary      int64      `json:"salary"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

func newPostingView(p *marketplace.Posting) postingView {
	d := p.Details()
	v := postingView{
		ID:          p.ID(),
		ClientID:    p.ClientID(),
		Title:       d.Title,
		Description: d.Description,
		Skills:      d.Skills,
		Location:    d.Location,
		Salary:      d.Salary,
		Type:        string(d.Type),
		Status:      string(p.Status()),
		CreatedAt:   p.CreatedAt(),
	}
	if v.Skills == nil {
		v.Skills = []string{}
	}
	if !p.ClosedAt().IsZero() {
		closed := p.ClosedAt()
		v.ClosedAt = &closed
	}
	return v
}

// Encode implements the web.Encoder interface.
func (v postingView) Encode() ([]byte, string, error) {
	data, err := json.Marshal(v)
	return data, "application/json", err
}

type createdPosting struct{ postingView }

// HTTPStatus implements the web.HTTPStatusSetter interface.
func (createdPosting) HTTPStatus() int { return http.StatusCreated }

type postingList struct {
	Items  []postingView `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Encode implements the web.Encoder interface.
func (l postingList) Encode() ([]byte, string, error) {
	data, err := json.Marshal(l)
	return data, "application/json", err
}

type applicationView struct {
	ID        uuid.UUID `json:"id"`
	PostingID uuid.UUID `json:"posting_id"`
	WorkerID  uuid.UUID `json:"worker_id"`
	ClientID  uuid.UUID `json:"client_id"`
	CoverNote string    `json:"cover_note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newApplicationView(a *marketplace.Application) applicationView {
	return applicationView{
		ID:        a.ID(),
		PostingID: a.PostingID(),
		WorkerID:  a.WorkerID(),
		ClientID:  a.ClientID(),
		CoverNote: a.CoverNote(),
		CreatedAt: a.CreatedAt(),
	}
}

// applyResponse returns the application together with the job progress it
// seeded.
type applyResponse struct {
	Application applicationView        `json:"application"`
	Progress    progressroutes.JobView `json:"progress"`
}

// Encode implements the web.Encoder interface.
func (r applyResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(r)
	return data, "application/json", err
}

// HTTPStatus implements the web.HTTPStatusSetter interface.
func (applyResponse) HTTPStatus() int { return http.StatusCreated }

type applicationList struct {
	Items []applicationView `json:"items"`
}

// Encode implements the web.Encoder interface.
func (l applicationList) Encode() ([]byte, string, error) {
	data, err := json.Marshal(l)
	return data, "application/json", err
}
