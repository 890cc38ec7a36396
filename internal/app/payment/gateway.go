package payment

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common"
	"github.com/workielk/workie/pkg/common/logger"
)

// GatewayConfig tunes the mock gateway.
type GatewayConfig struct {
	// SuccessRate is the probability in [0,1] that a charge succeeds.
	SuccessRate float64
	// Latency is how long each charge takes.
	Latency time.Duration
	// RPS and Burst throttle calls into the gateway.
	RPS   float64
	Burst int
}

// DefaultGatewayConfig mirrors the checkout page's behavior.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{SuccessRate: 0.8, Latency: 1500 * time.Millisecond, RPS: 20, Burst: 5}
}

var _ progress.PaymentProcessor = (*GatewayProcessor)(nil)

// GatewayProcessor is a mock card gateway that randomly declines a share of
// charges. It is not a real settlement path.
type GatewayProcessor struct {
	cfg     GatewayConfig
	limiter *common.RateLimiter
	roll    func() float64

	logger *logger.Logger
	tracer trace.Tracer
}

// NewGatewayProcessor builds a gateway from cfg.
func NewGatewayProcessor(cfg GatewayConfig, logger *logger.Logger, tracer trace.Tracer) *GatewayProcessor {
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultGatewayConfig().RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultGatewayConfig().Burst
	}
	return &GatewayProcessor{
		cfg:     cfg,
		limiter: common.NewRateLimiter(cfg.RPS, cfg.Burst),
		roll:    rand.Float64,
		logger:  logger.With("component", "payment_gateway"),
		tracer:  tracer,
	}
}

// Charge runs one gateway authorization. Throttled or canceled calls fail with
// a temporary error; unlucky rolls are permanent declines.
func (g *GatewayProcessor) Charge(ctx context.Context, req progress.ChargeRequest) (progress.Receipt, error) {
	ctx, span := g.tracer.Start(ctx, "payment.gateway.charge",
		trace.WithAttributes(
			attribute.String("job_id", req.JobID.String()),
			attribute.Int("attempt", req.Attempt),
			attribute.Int64("amount", req.Amount),
		))
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		return progress.Receipt{}, &progress.PaymentError{Code: progress.PaymentUnavailable, Message: err.Error(), Temporary: true}
	}

	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return progress.Receipt{}, &progress.PaymentError{Code: progress.PaymentCanceled, Message: ctx.Err().Error()}
		case <-timer.C:
		}
	}

	if g.roll() >= g.cfg.SuccessRate {
		span.SetStatus(codes.Error, "declined")
		g.logger.Info(ctx, "gateway declined charge", "job_id", req.JobID, "attempt", req.Attempt)
		return progress.Receipt{}, &progress.PaymentError{Code: progress.PaymentDeclined, Message: "card was declined by the issuer"}
	}

	span.SetStatus(codes.Ok, "approved")
	return newReceipt(req), nil
}

// CheckoutRequest is a card payment made from the standalone payment page.
type CheckoutRequest struct {
	Amount     int64
	Currency   string
	CardHolder string
	CardLast4  string
}

// CheckoutResult is the gateway's verdict for a checkout.
type CheckoutResult struct {
	TransactionID string
	Approved      bool
	Message       string
	Receipt       progress.Receipt
}

// Checkout runs a charge that is not tied to any job.
func (g *GatewayProcessor) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	receipt, err := g.Charge(ctx, progress.ChargeRequest{Amount: req.Amount, Currency: req.Currency})
	res := CheckoutResult{TransactionID: uuid.NewString()}

	switch perr, ok := asPaymentError(err); {
	case err == nil:
		res.Approved = true
		res.Message = "payment successful"
		res.Receipt = receipt
	case ok && perr.Code == progress.PaymentDeclined:
		res.Message = "payment failed, please try again"
	default:
		return CheckoutResult{}, err
	}

	return res, nil
}
