package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workielk/workie/internal/domain/events"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestJob(t *testing.T) *JobProgress {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return newJobProgress(uuid.New(), uuid.New(), uuid.New(),
		Participants{ClientID: uuid.New(), WorkerID: uuid.New()}, 50000, clock)
}

func eventTypes(evts []events.DomainEvent) []events.EventType {
	out := make([]events.EventType, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.EventType())
	}
	return out
}

func TestJobProgressAuthorize(t *testing.T) {
	job := newTestJob(t)
	p := job.Participants()

	assert.NoError(t, job.Authorize(p.ClientID, RoleClient))
	assert.NoError(t, job.Authorize(p.WorkerID, RoleWorker))
	assert.ErrorIs(t, job.Authorize(p.WorkerID, RoleClient), ErrNotParticipant)
	assert.ErrorIs(t, job.Authorize(uuid.New(), RoleWorker), ErrNotParticipant)
	assert.ErrorIs(t, job.Authorize(p.ClientID, Role("admin")), ErrNotParticipant)
}

func TestJobProgressFullLifecycle(t *testing.T) {
	job := newTestJob(t)

	perform := func(role Role, action Action, p Payload) []events.DomainEvent {
		t.Helper()
		evts, err := job.Perform(role, action, p)
		require.NoError(t, err)
		return evts
	}

	perform(RoleClient, ActionAcceptApplication, Payload{})
	assert.Equal(t, StageApplicationAccepted, job.Stage())
	perform(RoleWorker, ActionStartWork, Payload{})
	assert.Equal(t, StageInProgress, job.Stage())
	perform(RoleWorker, ActionMarkCompleted, Payload{})
	assert.Equal(t, StageWorkCompleted, job.Stage())

	evts := perform(RoleClient, ActionReleasePayment, Payload{})
	assert.Equal(t, []events.EventType{EventTypeStageAdvanced, EventTypePaymentRequested}, eventTypes(evts))
	assert.Equal(t, StagePaymentPending, job.Stage())
	assert.True(t, job.State().PaymentProcessing)

	req := job.ChargeRequest()
	assert.Equal(t, 1, req.Attempt)
	assert.Equal(t, int64(50000), req.Amount)
	assert.Equal(t, DefaultCurrency, req.Currency)

	evts, err := job.SettlePayment(req.Attempt, Receipt{Reference: "r-1", Amount: req.Amount})
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{EventTypePaymentSettled, EventTypeStageAdvanced}, eventTypes(evts))
	assert.Equal(t, StagePaymentSuccessful, job.Stage())
	assert.False(t, job.State().PaymentProcessing)

	evts = perform(RoleClient, ActionSubmitReview, Payload{Review: "Great work!", Rating: 4})
	assert.Equal(t, []events.EventType{EventTypeStageAdvanced, EventTypeReviewSubmitted}, eventTypes(evts))
	review := evts[1].(ReviewSubmittedEvent)
	assert.Equal(t, job.Participants().WorkerID, review.WorkerID)
	assert.Equal(t, 4, review.Rating)

	evts = perform(RoleWorker, ActionCloseJob, Payload{})
	assert.Equal(t, []events.EventType{EventTypeStageAdvanced, EventTypeJobClosed}, eventTypes(evts))

	assert.Equal(t, StageJobClosed, job.Stage())
	assert.True(t, job.Timeline().IsClosed())

	history := job.Timeline().History()
	require.Len(t, history, 7)
	for i, change := range history {
		assert.Equal(t, Stage(i+1), change.From)
		assert.Equal(t, Stage(i+2), change.To)
	}
	assert.Equal(t, "Great work!", job.State().Review)
	assert.Equal(t, 4, job.State().Rating)
}

func TestJobProgressFailedPaymentAndRetry(t *testing.T) {
	job := newTestJob(t)
	job.state = State{CurrentStage: StageWorkCompleted}

	_, err := job.Perform(RoleClient, ActionReleasePayment, Payload{})
	require.NoError(t, err)

	evts, err := job.FailPayment(1, "card declined")
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{EventTypePaymentFailed}, eventTypes(evts))
	assert.Equal(t, StagePaymentPending, job.Stage())

	evts, err = job.RetryPayment()
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{EventTypePaymentRequested}, eventTypes(evts))
	assert.Equal(t, 2, job.ChargeRequest().Attempt)

	_, err = job.SettlePayment(1, Receipt{})
	assert.ErrorIs(t, err, ErrStaleSettlement)

	_, err = job.SettlePayment(2, Receipt{})
	require.NoError(t, err)
	assert.Equal(t, StagePaymentSuccessful, job.Stage())
}
