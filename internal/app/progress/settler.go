package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

// Outcome is the completion signal of one settlement attempt. Err is nil on
// success.
type Outcome struct {
	Request domain.ChargeRequest
	Receipt domain.Receipt
	Err     error
}

// CompletionFunc receives the outcome of a dispatched settlement.
type CompletionFunc func(ctx context.Context, out Outcome)

// Dispatcher runs settlements in the background.
type Dispatcher interface {
	// Dispatch starts charging req and calls done with the outcome. A newer
	// dispatch for the same job supersedes the older one.
	Dispatch(req domain.ChargeRequest, done CompletionFunc)
	// Cancel abandons the in-flight settlement for a job, if any. done is
	// never called for a canceled settlement.
	Cancel(jobID uuid.UUID)
}

// SettlerConfig tunes retries of temporary processor failures.
type SettlerConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Timeout bounds one settlement including retries.
	Timeout time.Duration
}

// DefaultSettlerConfig returns the settler defaults.
func DefaultSettlerConfig() SettlerConfig {
	return SettlerConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Timeout:         time.Minute,
	}
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

var _ Dispatcher = (*Settler)(nil)

// Settler charges jobs through a PaymentProcessor, one in-flight settlement
// per job. Canceling a job's settlement, or closing the settler, guarantees
// its completion is never delivered.
type Settler struct {
	processor domain.PaymentProcessor
	cfg       SettlerConfig
	metrics   SettlementMetrics

	baseCtx context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	inflight map[uuid.UUID]inflight
	wg       sync.WaitGroup

	logger *logger.Logger
	tracer trace.Tracer
}

// NewSettler creates a Settler backed by processor.
func NewSettler(
	processor domain.PaymentProcessor,
	cfg SettlerConfig,
	metrics SettlementMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Settler {
	ctx, stop := context.WithCancel(context.Background())
	if metrics == nil {
		metrics = noopSettlementMetrics{}
	}
	return &Settler{
		processor: processor,
		cfg:       cfg,
		metrics:   metrics,
		baseCtx:   ctx,
		stop:      stop,
		inflight:  make(map[uuid.UUID]inflight),
		logger:    logger.With("component", "payment_settler"),
		tracer:    tracer,
	}
}

// Dispatch implements Dispatcher.
func (s *Settler) Dispatch(req domain.ChargeRequest, done CompletionFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.baseCtx, s.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(s.baseCtx)
	}

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		cancel()
		s.logger.Warn(ctx, "settler closed, dropping settlement", "job_id", req.JobID, "attempt", req.Attempt)
		return
	}
	if prev, ok := s.inflight[req.JobID]; ok {
		prev.cancel()
	}
	s.seq++
	seq := s.seq
	s.inflight[req.JobID] = inflight{seq: seq, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.IncSettlementsStarted(ctx)

	go func() {
		defer s.wg.Done()
		defer cancel()

		out := s.settle(ctx, req)

		// A canceled or superseded settlement no longer owns its job.
		if !s.release(req.JobID, seq) {
			s.logger.Debug(ctx, "settlement abandoned", "job_id", req.JobID, "attempt", req.Attempt)
			s.metrics.IncSettlementsAbandoned(context.WithoutCancel(ctx))
			return
		}

		// Deliver on a context that survives the settlement deadline so a
		// timed out charge is still recorded as a failure.
		done(context.WithoutCancel(ctx), out)
	}()
}

// release removes the job's entry if dispatch seq still owns it.
func (s *Settler) release(jobID uuid.UUID, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.inflight[jobID]
	if !ok || cur.seq != seq {
		return false
	}
	delete(s.inflight, jobID)
	return true
}

// Cancel implements Dispatcher.
func (s *Settler) Cancel(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.inflight[jobID]; ok {
		cur.cancel()
		delete(s.inflight, jobID)
	}
}

// Pending reports how many settlements are in flight.
func (s *Settler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Close cancels every in-flight settlement and waits for their goroutines.
func (s *Settler) Close() {
	s.mu.Lock()
	for id, cur := range s.inflight {
		cur.cancel()
		delete(s.inflight, id)
	}
	s.stop()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Settler) settle(ctx context.Context, req domain.ChargeRequest) Outcome {
	ctx, span := s.tracer.Start(ctx, "payment_settler.settle",
		trace.WithAttributes(
			attribute.String("job_id", req.JobID.String()),
			attribute.Int("attempt", req.Attempt),
		))
	defer span.End()

	start := time.Now()

	var receipt domain.Receipt
	operation := func() error {
		r, err := s.processor.Charge(ctx, req)
		if err == nil {
			receipt = r
			return nil
		}
		var perr *domain.PaymentError
		if errors.As(err, &perr) && perr.Temporary && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.cfg.InitialInterval
	expBackoff.MaxInterval = s.cfg.MaxInterval
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.cfg.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		span.AddEvent("charge_retry", trace.WithAttributes(attribute.String("error", err.Error())))
		s.logger.Warn(ctx, "temporary payment failure, retrying",
			"job_id", req.JobID, "attempt", req.Attempt, "error", err, "wait", wait)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	s.metrics.ObserveSettlementDuration(ctx, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		return Outcome{Request: req, Err: err}
	}

	span.SetStatus(codes.Ok, "settled")
	return Outcome{Request: req, Receipt: receipt}
}
