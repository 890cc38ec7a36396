package errs

import (
	"context"
	"errors"

	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
)

// FromDomain translates an error returned by an application service into an
// Error with the matching code. Unknown errors become Internal.
func FromDomain(err error) *Error {
	if e := GetError(err); e != nil {
		return e
	}

	var ite *progress.InvalidTransitionError
	switch {
	case errors.As(err, &ite):
		e := &Error{Code: InvalidTransition, Message: ite.Error()}
		e.Fields = map[string]string{
			"stage":  ite.Stage.String(),
			"role":   ite.Role.String(),
			"action": ite.Action.String(),
			"reason": ite.Reason,
		}
		return e

	case errors.Is(err, progress.ErrJobNotFound),
		errors.Is(err, marketplace.ErrPostingNotFound):
		return wrap(NotFound, err)

	case errors.Is(err, progress.ErrConflict):
		return wrap(Aborted, err)

	case errors.Is(err, progress.ErrNotParticipant),
		errors.Is(err, marketplace.ErrNotOwner):
		return wrap(PermissionDenied, err)

	case errors.Is(err, marketplace.ErrAlreadyApplied):
		return wrap(AlreadyExists, err)

	case errors.Is(err, marketplace.ErrPostingClosed),
		errors.Is(err, marketplace.ErrSelfApplication),
		errors.Is(err, progress.ErrStaleSettlement):
		return wrap(FailedPrecondition, err)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(Canceled, err)

	default:
		return wrap(Internal, err)
	}
}

func wrap(code ErrCode, err error) *Error {
	return &Error{Code: code, Message: err.Error()}
}
