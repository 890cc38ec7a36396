package payment

import (
	"errors"

	"github.com/workielk/workie/internal/domain/progress"
)

func asPaymentError(err error) (*progress.PaymentError, bool) {
	var perr *progress.PaymentError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// IsTemporary reports whether err is a payment failure worth retrying.
func IsTemporary(err error) bool {
	perr, ok := asPaymentError(err)
	return ok && perr.Temporary
}
