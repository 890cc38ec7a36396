package marketplace

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Application is a worker's request to take a posting. Its id is also the id
// of the job progress record created with it.
type Application struct {
	id        uuid.UUID
	postingID uuid.UUID
	workerID  uuid.UUID
	clientID  uuid.UUID
	coverNote string
	createdAt time.Time
}

// NewApplication validates and creates an application of workerID to posting.
func NewApplication(posting *Posting, workerID uuid.UUID, coverNote string) (*Application, error) {
	if !posting.IsOpen() {
		return nil, ErrPostingClosed
	}
	if workerID == posting.ClientID() {
		return nil, ErrSelfApplication
	}

	return &Application{
		id:        uuid.New(),
		postingID: posting.ID(),
		workerID:  workerID,
		clientID:  posting.ClientID(),
		coverNote: strings.TrimSpace(coverNote),
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructApplication creates an Application from stored fields.
func ReconstructApplication(id, postingID, workerID, clientID uuid.UUID, coverNote string, createdAt time.Time) *Application {
	return &Application{
		id:        id,
		postingID: postingID,
		workerID:  workerID,
		clientID:  clientID,
		coverNote: coverNote,
		createdAt: createdAt,
	}
}

func (a *Application) ID() uuid.UUID        { return a.id }
func (a *Application) PostingID() uuid.UUID { return a.postingID }
func (a *Application) WorkerID() uuid.UUID  { return a.workerID }
func (a *Application) ClientID() uuid.UUID  { return a.clientID }
func (a *Application) CoverNote() string    { return a.coverNote }
func (a *Application) CreatedAt() time.Time { return a.createdAt }
