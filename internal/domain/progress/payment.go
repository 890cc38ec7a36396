package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is used when a charge does not name one.
const DefaultCurrency = "LKR"

// ChargeRequest asks a processor to move the agreed amount for a job from the
// client to the worker.
type ChargeRequest struct {
	JobID    uuid.UUID
	Attempt  int
	ClientID uuid.UUID
	WorkerID uuid.UUID
	Amount   int64
	Currency string
}

// Receipt is returned by a processor for a completed charge.
type Receipt struct {
	Reference   string    `json:"reference"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Payment error codes.
const (
	PaymentDeclined    = "declined"
	PaymentUnavailable = "gateway_unavailable"
	PaymentCanceled    = "canceled"
)

// PaymentError is the failure branch of a charge. Temporary errors may be
// retried by the caller; declines may not.
type PaymentError struct {
	Code      string
	Message   string
	Temporary bool
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s: %s", e.Code, e.Message)
}

// PaymentProcessor settles the charge raised when a client releases payment.
type PaymentProcessor interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}
