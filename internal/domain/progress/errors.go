package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is matched by every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrJobNotFound is returned when no job progress exists for an id.
	ErrJobNotFound = errors.New("job progress not found")

	// ErrConflict is returned when a write races with another write to the
	// same job and the expected version no longer matches.
	ErrConflict = errors.New("job progress was modified concurrently")

	// ErrStaleSettlement is returned when a payment completion arrives for an
	// attempt that is no longer pending. Nothing is changed.
	ErrStaleSettlement = errors.New("stale payment settlement")

	// ErrNotParticipant is returned when the actor is not the job's
	// participant for the role they claim.
	ErrNotParticipant = errors.New("actor is not a participant of this job in the given role")
)

// Reasons an action is rejected.
const (
	ReasonUnknownRole       = "unknown role"
	ReasonNotAvailable      = "action is not available to this role at the current stage"
	ReasonReviewRequired    = "review text is required"
	ReasonRatingOutOfRange  = "rating must be between 1 and 5"
	ReasonNotRetryable      = "no failed payment to retry"
	ReasonPaymentProcessing = "payment is being processed"
	ReasonNotProcessing     = "no payment is being processed"

	// ReasonSettlementCanceled is recorded as the last payment error of a
	// settlement the client abandoned.
	ReasonSettlementCanceled = "payment canceled by client"
)

// InvalidTransitionError describes why an action could not be applied. The
// state it was evaluated against is left unchanged.
type InvalidTransitionError struct {
	Stage  Stage
	Role   Role
	Action Action
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s cannot %s at stage %d (%s): %s",
		e.Role, e.Action, int(e.Stage), e.Stage, e.Reason)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func invalid(s State, role Role, action Action, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{Stage: s.CurrentStage, Role: role, Action: action, Reason: reason}
}
