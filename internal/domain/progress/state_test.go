package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allActions = []Action{
	ActionAcceptApplication,
	ActionStartWork,
	ActionMarkCompleted,
	ActionReleasePayment,
	ActionAcceptPayment,
	ActionSubmitReview,
	ActionCloseJob,
	ActionRetryPayment,
	ActionCancelPayment,
}

func TestActionForMatchesGateTable(t *testing.T) {
	type want struct {
		worker Action
		client Action
	}
	table := map[Stage]want{
		StageApplicationPending:  {client: ActionAcceptApplication},
		StageApplicationAccepted: {worker: ActionStartWork},
		StageInProgress:          {worker: ActionMarkCompleted},
		StageWorkCompleted:       {client: ActionReleasePayment},
		StagePaymentPending:      {},
		StagePaymentSuccessful:   {worker: ActionAcceptPayment, client: ActionSubmitReview},
		StageReviewFeedback:      {worker: ActionCloseJob},
		StageJobClosed:           {},
	}

	for stage, w := range table {
		t.Run(stage.String(), func(t *testing.T) {
			for role, expected := range map[Role]Action{RoleWorker: w.worker, RoleClient: w.client} {
				got, ok := ActionFor(role, stage)
				assert.Equal(t, expected != "", ok, "role %s", role)
				assert.Equal(t, expected, got, "role %s", role)
			}
		})
	}

	_, ok := ActionFor(Role("admin"), StageApplicationPending)
	assert.False(t, ok)
}

func validPayload(action Action) Payload {
	if action == ActionSubmitReview {
		return Payload{Review: "Solid work", Rating: 5}
	}
	return Payload{}
}

func TestLegalActionAdvancesExactlyOneStage(t *testing.T) {
	for stage := FirstStage; stage <= LastStage; stage++ {
		for _, role := range []Role{RoleWorker, RoleClient} {
			action, ok := ActionFor(role, stage)
			if !ok {
				continue
			}
			t.Run(string(role)+"/"+stage.String(), func(t *testing.T) {
				s := State{CurrentStage: stage}
				next, err := Transition(s, role, action, validPayload(action))
				require.NoError(t, err)
				assert.Equal(t, stage+1, next.CurrentStage)
				assert.Equal(t, s.Version+1, next.Version)
			})
		}
	}
}

func TestIllegalActionLeavesStateUnchanged(t *testing.T) {
	for stage := FirstStage; stage <= LastStage; stage++ {
		for _, role := range []Role{RoleWorker, RoleClient} {
			legal, _ := ActionFor(role, stage)
			for _, action := range allActions {
				if action == legal {
					continue
				}
				s := State{CurrentStage: stage, Version: 3}
				next, err := Transition(s, role, action, validPayload(action))

				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				assert.Equal(t, s, next, "stage %d role %s action %s", stage, role, action)

				var ite *InvalidTransitionError
				require.ErrorAs(t, err, &ite)
				assert.Equal(t, ReasonNotAvailable, ite.Reason)
			}
		}
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	s := NewState()
	next, err := Transition(s, Role("admin"), ActionAcceptApplication, Payload{})

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, ReasonUnknownRole, ite.Reason)
	assert.Equal(t, s, next)
}

func TestSubmitReviewRequiresReviewAndRating(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		reason  string
	}{
		{name: "empty review", payload: Payload{Review: "", Rating: 4}, reason: ReasonReviewRequired},
		{name: "whitespace review", payload: Payload{Review: "   \t", Rating: 4}, reason: ReasonReviewRequired},
		{name: "zero rating", payload: Payload{Review: "Great work!", Rating: 0}, reason: ReasonRatingOutOfRange},
		{name: "rating above five", payload: Payload{Review: "Great work!", Rating: 6}, reason: ReasonRatingOutOfRange},
		{name: "negative rating", payload: Payload{Review: "Great work!", Rating: -1}, reason: ReasonRatingOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{CurrentStage: StagePaymentSuccessful}
			next, err := Transition(s, RoleClient, ActionSubmitReview, tt.payload)

			var ite *InvalidTransitionError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, tt.reason, ite.Reason)
			assert.Equal(t, StagePaymentSuccessful, next.CurrentStage)
			assert.Empty(t, next.Review)
			assert.Zero(t, next.Rating)
		})
	}
}

func TestSubmitReviewFreezesReview(t *testing.T) {
	s := State{CurrentStage: StagePaymentSuccessful}
	next, err := Transition(s, RoleClient, ActionSubmitReview, Payload{Review: "  Great work!  ", Rating: 4})
	require.NoError(t, err)

	assert.Equal(t, StageReviewFeedback, next.CurrentStage)
	assert.Equal(t, "Great work!", next.Review)
	assert.Equal(t, 4, next.Rating)
	assert.Equal(t, RoleClient, next.StageSixClosedBy)

	// No action from stage 7 onwards can touch the review again.
	for _, role := range []Role{RoleWorker, RoleClient} {
		for _, action := range allActions {
			after, _ := Transition(next, role, action, Payload{Review: "changed", Rating: 1})
			assert.Equal(t, "Great work!", after.Review)
			assert.Equal(t, 4, after.Rating)
		}
	}
}

func TestStageSixEitherAcknowledgementWins(t *testing.T) {
	s := State{CurrentStage: StagePaymentSuccessful}

	byWorker, err := Transition(s, RoleWorker, ActionAcceptPayment, Payload{})
	require.NoError(t, err)
	assert.Equal(t, StageReviewFeedback, byWorker.CurrentStage)
	assert.Equal(t, RoleWorker, byWorker.StageSixClosedBy)
	assert.False(t, byWorker.Reviewed())

	// The client's review arrives late and is rejected.
	_, err = Transition(byWorker, RoleClient, ActionSubmitReview, Payload{Review: "ok", Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReleasePaymentStartsProcessing(t *testing.T) {
	s := State{CurrentStage: StageWorkCompleted}
	next, err := Transition(s, RoleClient, ActionReleasePayment, Payload{})
	require.NoError(t, err)

	assert.Equal(t, StagePaymentPending, next.CurrentStage)
	assert.True(t, next.PaymentProcessing)
	assert.Equal(t, 1, next.PaymentAttempt)
}

func TestSettlementRequiresMatchingAttempt(t *testing.T) {
	pending := State{CurrentStage: StagePaymentPending, PaymentProcessing: true, PaymentAttempt: 2, Version: 7}

	t.Run("stale attempt", func(t *testing.T) {
		next, err := SettlePayment(pending, 1)
		assert.ErrorIs(t, err, ErrStaleSettlement)
		assert.Equal(t, pending, next)
	})

	t.Run("success", func(t *testing.T) {
		next, err := SettlePayment(pending, 2)
		require.NoError(t, err)
		assert.Equal(t, StagePaymentSuccessful, next.CurrentStage)
		assert.False(t, next.PaymentProcessing)
		assert.Equal(t, int64(8), next.Version)

		// A duplicate completion is stale.
		_, err = SettlePayment(next, 2)
		assert.ErrorIs(t, err, ErrStaleSettlement)
	})

	t.Run("failure keeps stage five", func(t *testing.T) {
		next, err := FailPayment(pending, 2, "card declined")
		require.NoError(t, err)
		assert.Equal(t, StagePaymentPending, next.CurrentStage)
		assert.False(t, next.PaymentProcessing)
		assert.Equal(t, "card declined", next.LastPaymentError)
		assert.True(t, next.CanRetryPayment())

		_, err = FailPayment(next, 2, "again")
		assert.ErrorIs(t, err, ErrStaleSettlement)
	})
}

func TestRetryPayment(t *testing.T) {
	_, err := RetryPayment(State{CurrentStage: StagePaymentPending, PaymentProcessing: true, PaymentAttempt: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	failed := State{CurrentStage: StagePaymentPending, PaymentAttempt: 1, LastPaymentError: "declined"}
	next, err := RetryPayment(failed)
	require.NoError(t, err)
	assert.True(t, next.PaymentProcessing)
	assert.Equal(t, 2, next.PaymentAttempt)
	assert.Empty(t, next.LastPaymentError)

	// The first attempt can no longer settle the job.
	_, err = SettlePayment(next, 1)
	assert.ErrorIs(t, err, ErrStaleSettlement)
}

func TestCancelPayment(t *testing.T) {
	for _, s := range []State{
		{CurrentStage: StageWorkCompleted},
		{CurrentStage: StagePaymentPending, PaymentAttempt: 1, LastPaymentError: "declined"},
		{CurrentStage: StagePaymentSuccessful, PaymentAttempt: 1},
	} {
		next, err := CancelPayment(s)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, s, next)
	}

	inFlight := State{CurrentStage: StagePaymentPending, PaymentProcessing: true, PaymentAttempt: 1, Version: 4}
	assert.True(t, inFlight.CanCancelPayment())

	next, err := CancelPayment(inFlight)
	require.NoError(t, err)
	assert.Equal(t, StagePaymentPending, next.CurrentStage)
	assert.False(t, next.PaymentProcessing)
	assert.Equal(t, ReasonSettlementCanceled, next.LastPaymentError)
	assert.Equal(t, int64(5), next.Version)
	assert.True(t, next.CanRetryPayment())
	assert.False(t, next.CanCancelPayment())

	// The abandoned attempt can neither settle nor fail the job.
	_, err = SettlePayment(next, 1)
	assert.ErrorIs(t, err, ErrStaleSettlement)
	_, err = FailPayment(next, 1, "late")
	assert.ErrorIs(t, err, ErrStaleSettlement)

	retried, err := RetryPayment(next)
	require.NoError(t, err)
	assert.Equal(t, 2, retried.PaymentAttempt)
}

func TestAvailabilityDerivesFromTransition(t *testing.T) {
	t.Run("no action for role", func(t *testing.T) {
		av := Availability(NewState(), RoleWorker, Payload{})
		assert.Empty(t, av.Action)
		assert.False(t, av.Enabled)
	})

	t.Run("enabled action", func(t *testing.T) {
		av := Availability(NewState(), RoleClient, Payload{})
		assert.Equal(t, ActionAcceptApplication, av.Action)
		assert.Equal(t, "Accept Application", av.Label)
		assert.True(t, av.Enabled)
	})

	t.Run("review draft incomplete", func(t *testing.T) {
		s := State{CurrentStage: StagePaymentSuccessful}
		av := Availability(s, RoleClient, Payload{Review: "nice", Rating: 0})
		assert.Equal(t, ActionSubmitReview, av.Action)
		assert.False(t, av.Enabled)
		assert.Equal(t, ReasonRatingOutOfRange, av.Reason)
	})

	t.Run("payment processing", func(t *testing.T) {
		s := State{CurrentStage: StagePaymentPending, PaymentProcessing: true, PaymentAttempt: 1}
		av := Availability(s, RoleClient, Payload{})
		assert.False(t, av.Enabled)
		assert.True(t, av.PaymentProcessing)
		assert.Equal(t, ReasonPaymentProcessing, av.Reason)
	})

	t.Run("failed payment offers retry to client only", func(t *testing.T) {
		s := State{CurrentStage: StagePaymentPending, PaymentAttempt: 1, LastPaymentError: "declined"}
		assert.True(t, Availability(s, RoleClient, Payload{}).CanRetryPayment)
		assert.False(t, Availability(s, RoleWorker, Payload{}).CanRetryPayment)
	})
}
