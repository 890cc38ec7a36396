package progress

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/domain/events"
)

// Participants names the two sides of a job.
type Participants struct {
	ClientID uuid.UUID `json:"client_id"`
	WorkerID uuid.UUID `json:"worker_id"`
}

// For returns the participant holding role.
func (p Participants) For(role Role) (uuid.UUID, bool) {
	switch role {
	case RoleClient:
		return p.ClientID, true
	case RoleWorker:
		return p.WorkerID, true
	default:
		return uuid.Nil, false
	}
}

// JobProgress is the server side authority for one hired job. Every change goes
// through its methods, which run the pure reducers and return the domain
// events the change raised.
type JobProgress struct {
	jobID         uuid.UUID
	postingID     uuid.UUID
	applicationID uuid.UUID
	participants  Participants
	amount        int64
	state         State
	timeline      *Timeline
}

// NewJobProgress creates the progress record seeded when a worker applies to a
// posting. It starts at stage 1.
func NewJobProgress(jobID, postingID, applicationID uuid.UUID, participants Participants, amount int64) *JobProgress {
	return newJobProgress(jobID, postingID, applicationID, participants, amount, realTimeProvider{})
}

func newJobProgress(
	jobID, postingID, applicationID uuid.UUID,
	participants Participants,
	amount int64,
	tp TimeProvider,
) *JobProgress {
	return &JobProgress{
		jobID:         jobID,
		postingID:     postingID,
		applicationID: applicationID,
		participants:  participants,
		amount:        amount,
		state:         NewState(),
		timeline:      NewTimeline(tp),
	}
}

// ReconstructJobProgress creates a JobProgress from stored fields, bypassing
// creation invariants. This should only be used by repositories.
func ReconstructJobProgress(
	jobID, postingID, applicationID uuid.UUID,
	participants Participants,
	amount int64,
	state State,
	timeline *Timeline,
) *JobProgress {
	return &JobProgress{
		jobID:         jobID,
		postingID:     postingID,
		applicationID: applicationID,
		participants:  participants,
		amount:        amount,
		state:         state,
		timeline:      timeline,
	}
}

func (j *JobProgress) JobID() uuid.UUID           { return j.jobID }
func (j *JobProgress) PostingID() uuid.UUID       { return j.postingID }
func (j *JobProgress) ApplicationID() uuid.UUID   { return j.applicationID }
func (j *JobProgress) Participants() Participants { return j.participants }
func (j *JobProgress) Amount() int64              { return j.amount }
func (j *JobProgress) State() State               { return j.state }
func (j *JobProgress) Stage() Stage               { return j.state.CurrentStage }
func (j *JobProgress) Version() int64             { return j.state.Version }
func (j *JobProgress) Timeline() *Timeline        { return j.timeline }

// Authorize checks that actorID is the job's participant for role.
func (j *JobProgress) Authorize(actorID uuid.UUID, role Role) error {
	id, ok := j.participants.For(role)
	if !ok || id != actorID {
		return fmt.Errorf("%w: actor %s role %s job %s", ErrNotParticipant, actorID, role, j.jobID)
	}
	return nil
}

// ChargeRequest builds the charge for the settlement attempt in flight.
func (j *JobProgress) ChargeRequest() ChargeRequest {
	return ChargeRequest{
		JobID:    j.jobID,
		Attempt:  j.state.PaymentAttempt,
		ClientID: j.participants.ClientID,
		WorkerID: j.participants.WorkerID,
		Amount:   j.amount,
		Currency: DefaultCurrency,
	}
}

// Perform applies a participant's action. The caller is expected to have
// authorized the actor already.
func (j *JobProgress) Perform(role Role, action Action, p Payload) ([]events.DomainEvent, error) {
	next, err := Transition(j.state, role, action, p)
	if err != nil {
		return nil, err
	}

	from := j.state.CurrentStage
	j.state = next
	at := j.timeline.record(from, next.CurrentStage, action, role)

	evts := []events.DomainEvent{
		NewStageAdvancedEvent(j.jobID, StageChange{From: from, To: next.CurrentStage, Action: action, Role: role, At: at}, next.Version),
	}

	switch action {
	case ActionReleasePayment:
		evts = append(evts, NewPaymentRequestedEvent(at, j.ChargeRequest()))
	case ActionSubmitReview:
		evts = append(evts, NewReviewSubmittedEvent(at, j.jobID, j.participants.WorkerID, next.Review, next.Rating))
	case ActionCloseJob:
		evts = append(evts, NewJobClosedEvent(at, j.jobID, j.postingID))
	}

	return evts, nil
}

// SettlePayment applies a successful charge for attempt.
func (j *JobProgress) SettlePayment(attempt int, receipt Receipt) ([]events.DomainEvent, error) {
	next, err := SettlePayment(j.state, attempt)
	if err != nil {
		return nil, fmt.Errorf("job %s attempt %d: %w", j.jobID, attempt, err)
	}

	from := j.state.CurrentStage
	j.state = next
	at := j.timeline.record(from, next.CurrentStage, ActionReleasePayment, "")

	return []events.DomainEvent{
		NewPaymentSettledEvent(at, j.jobID, attempt, receipt),
		NewStageAdvancedEvent(j.jobID, StageChange{From: from, To: next.CurrentStage, Action: ActionReleasePayment, At: at}, next.Version),
	}, nil
}

// FailPayment applies a failed charge for attempt.
func (j *JobProgress) FailPayment(attempt int, reason string) ([]events.DomainEvent, error) {
	next, err := FailPayment(j.state, attempt, reason)
	if err != nil {
		return nil, fmt.Errorf("job %s attempt %d: %w", j.jobID, attempt, err)
	}

	j.state = next
	at := j.timeline.touch()

	return []events.DomainEvent{NewPaymentFailedEvent(at, j.jobID, attempt, next.LastPaymentError)}, nil
}

// RetryPayment starts a new settlement attempt after a failure.
func (j *JobProgress) RetryPayment() ([]events.DomainEvent, error) {
	next, err := RetryPayment(j.state)
	if err != nil {
		return nil, err
	}

	j.state = next
	at := j.timeline.touch()

	return []events.DomainEvent{NewPaymentRequestedEvent(at, j.ChargeRequest())}, nil
}

// CancelPayment abandons the settlement attempt in flight. It is recorded as
// a failed attempt.
func (j *JobProgress) CancelPayment() ([]events.DomainEvent, error) {
	attempt := j.state.PaymentAttempt
	next, err := CancelPayment(j.state)
	if err != nil {
		return nil, err
	}

	j.state = next
	at := j.timeline.touch()

	return []events.DomainEvent{NewPaymentFailedEvent(at, j.jobID, attempt, next.LastPaymentError)}, nil
}

// Availability derives the action view for role. The draft payload is used to
// pre-evaluate SubmitReview.
func (j *JobProgress) Availability(role Role, draft Payload) ActionAvailability {
	return Availability(j.state, role, draft)
}

// LastUpdate returns when the job was last modified.
func (j *JobProgress) LastUpdate() time.Time { return j.timeline.LastUpdate() }
