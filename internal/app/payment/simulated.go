// Package payment provides the payment processors that settle a job once the
// client releases payment.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/progress"
)

// DefaultSimulatedDelay is how long the simulated processor takes to settle.
const DefaultSimulatedDelay = 2000 * time.Millisecond

var _ progress.PaymentProcessor = (*SimulatedProcessor)(nil)

// SimulatedProcessor settles every charge successfully after a fixed delay.
// It stands in for a real settlement call.
type SimulatedProcessor struct {
	delay  time.Duration
	tracer trace.Tracer
}

// NewSimulatedProcessor returns a processor that succeeds after delay. A
// non-positive delay uses DefaultSimulatedDelay.
func NewSimulatedProcessor(delay time.Duration, tracer trace.Tracer) *SimulatedProcessor {
	if delay <= 0 {
		delay = DefaultSimulatedDelay
	}
	return &SimulatedProcessor{delay: delay, tracer: tracer}
}

// Charge waits for the configured delay and returns a receipt. A canceled
// context abandons the charge.
func (p *SimulatedProcessor) Charge(ctx context.Context, req progress.ChargeRequest) (progress.Receipt, error) {
	ctx, span := p.tracer.Start(ctx, "payment.simulated.charge",
		trace.WithAttributes(
			attribute.String("job_id", req.JobID.String()),
			attribute.Int("attempt", req.Attempt),
			attribute.Int64("delay_ms", p.delay.Milliseconds()),
		))
	defer span.End()

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		span.AddEvent("charge_canceled")
		return progress.Receipt{}, &progress.PaymentError{Code: progress.PaymentCanceled, Message: ctx.Err().Error()}
	case <-timer.C:
	}

	return newReceipt(req), nil
}

func newReceipt(req progress.ChargeRequest) progress.Receipt {
	currency := req.Currency
	if currency == "" {
		currency = progress.DefaultCurrency
	}
	return progress.Receipt{
		Reference:   "pay_" + uuid.NewString(),
		Amount:      req.Amount,
		Currency:    currency,
		ProcessedAt: time.Now().UTC(),
	}
}
