package progress

import "strings"

// Rating bounds for a submitted review. Zero means not yet rated.
const (
	MinRating = 1
	MaxRating = 5
)

// State is the canonical lifecycle state of one job.
//
// CurrentStage only increases, by exactly one per accepted action. Review and
// Rating are written once, by SubmitReview at stage 6, and never again. The
// review is stored with surrounding whitespace trimmed; the trimmed text is
// what stays frozen. PaymentProcessing is only true at stage 5 and is cleared
// once per attempt, by a settlement, a failure or a cancellation.
type State struct {
	CurrentStage      Stage  `json:"current_stage"`
	Review            string `json:"review"`
	Rating            int    `json:"rating"`
	PaymentProcessing bool   `json:"payment_processing"`

	// PaymentAttempt identifies the settlement currently in flight so a late
	// completion from an earlier attempt cannot move the job.
	PaymentAttempt   int    `json:"payment_attempt"`
	LastPaymentError string `json:"last_payment_error,omitempty"`

	// StageSixClosedBy records which role's acknowledgement moved the job out
	// of stage 6. Either the worker accepting payment or the client reviewing
	// is enough; the first one wins.
	StageSixClosedBy Role `json:"stage_six_closed_by,omitempty"`

	// Version increases with every accepted change.
	Version int64 `json:"version"`
}

// NewState returns the state of a freshly created job.
func NewState() State { return State{CurrentStage: FirstStage} }

// Payload carries the optional inputs of an action. Only SubmitReview reads it.
type Payload struct {
	Review string
	Rating int
}

// Transition applies action on behalf of role and returns the resulting state.
// When the action is not legal for (role, stage) or its payload is rejected,
// the original state is returned together with an *InvalidTransitionError.
func Transition(s State, role Role, action Action, p Payload) (State, error) {
	if !role.Valid() {
		return s, invalid(s, role, action, ReasonUnknownRole)
	}

	want, ok := ActionFor(role, s.CurrentStage)
	if !ok || want != action {
		return s, invalid(s, role, action, ReasonNotAvailable)
	}

	next := s
	switch action {
	case ActionReleasePayment:
		next.PaymentProcessing = true
		next.PaymentAttempt++
		next.LastPaymentError = ""

	case ActionSubmitReview:
		review := strings.TrimSpace(p.Review)
		if review == "" {
			return s, invalid(s, role, action, ReasonReviewRequired)
		}
		if p.Rating < MinRating || p.Rating > MaxRating {
			return s, invalid(s, role, action, ReasonRatingOutOfRange)
		}
		next.Review = review
		next.Rating = p.Rating
	}

	if s.CurrentStage == StagePaymentSuccessful {
		next.StageSixClosedBy = role
	}

	next.CurrentStage, _ = s.CurrentStage.Next()
	next.Version++

	return next, nil
}

// SettlePayment records a successful charge for attempt and moves the job
// from stage 5 to stage 6.
func SettlePayment(s State, attempt int) (State, error) {
	if !s.settlementPending(attempt) {
		return s, ErrStaleSettlement
	}

	next := s
	next.PaymentProcessing = false
	next.LastPaymentError = ""
	next.CurrentStage = StagePaymentSuccessful
	next.Version++

	return next, nil
}

// FailPayment records a failed charge for attempt. The job stays at stage 5
// with processing cleared so the client can retry.
func FailPayment(s State, attempt int, reason string) (State, error) {
	if !s.settlementPending(attempt) {
		return s, ErrStaleSettlement
	}

	if reason == "" {
		reason = "payment failed"
	}

	next := s
	next.PaymentProcessing = false
	next.LastPaymentError = reason
	next.Version++

	return next, nil
}

// RetryPayment starts a new settlement attempt after a failed one.
func RetryPayment(s State) (State, error) {
	if !s.CanRetryPayment() {
		return s, invalid(s, RoleClient, ActionRetryPayment, ReasonNotRetryable)
	}

	next := s
	next.PaymentProcessing = true
	next.PaymentAttempt++
	next.LastPaymentError = ""
	next.Version++

	return next, nil
}

// CancelPayment abandons the settlement attempt in flight. The job stays at
// stage 5 with processing cleared, so a late completion of that attempt is
// stale and the client can retry.
func CancelPayment(s State) (State, error) {
	if !s.CanCancelPayment() {
		return s, invalid(s, RoleClient, ActionCancelPayment, ReasonNotProcessing)
	}

	next := s
	next.PaymentProcessing = false
	next.LastPaymentError = ReasonSettlementCanceled
	next.Version++

	return next, nil
}

// CanRetryPayment reports whether a failed settlement is waiting for a retry.
func (s State) CanRetryPayment() bool {
	return s.CurrentStage == StagePaymentPending && !s.PaymentProcessing && s.LastPaymentError != ""
}

// CanCancelPayment reports whether a settlement is in flight.
func (s State) CanCancelPayment() bool {
	return s.CurrentStage == StagePaymentPending && s.PaymentProcessing
}

func (s State) settlementPending(attempt int) bool {
	return s.CurrentStage == StagePaymentPending && s.PaymentProcessing && attempt == s.PaymentAttempt
}

// Reviewed reports whether a review has been captured.
func (s State) Reviewed() bool { return s.Rating > 0 }
