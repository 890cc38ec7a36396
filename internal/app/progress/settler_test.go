package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

func fastSettlerConfig() SettlerConfig {
	return SettlerConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Timeout:         5 * time.Second,
	}
}

type outcomeSink struct {
	mu       sync.Mutex
	outcomes []Outcome
	ch       chan Outcome
}

func newOutcomeSink() *outcomeSink { return &outcomeSink{ch: make(chan Outcome, 8)} }

func (s *outcomeSink) done(_ context.Context, out Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, out)
	s.mu.Unlock()
	s.ch <- out
}

func (s *outcomeSink) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case out := <-s.ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settlement outcome")
		return Outcome{}
	}
}

func (s *outcomeSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

func TestSettlerDeliversSuccess(t *testing.T) {
	proc := new(mockProcessor)
	req := domain.ChargeRequest{JobID: uuid.New(), Attempt: 1, Amount: 100}
	proc.On("Charge", mock.Anything, req).Return(domain.Receipt{Reference: "r-1", Amount: 100}, nil).Once()

	settler := NewSettler(proc, fastSettlerConfig(), nil, logger.Noop(), testTracer)
	defer settler.Close()

	sink := newOutcomeSink()
	settler.Dispatch(req, sink.done)

	out := sink.wait(t)
	require.NoError(t, out.Err)
	assert.Equal(t, "r-1", out.Receipt.Reference)
	assert.Equal(t, req, out.Request)
	assert.Zero(t, settler.Pending())
	proc.AssertExpectations(t)
}

func TestSettlerRetriesTemporaryFailures(t *testing.T) {
	proc := new(mockProcessor)
	req := domain.ChargeRequest{JobID: uuid.New(), Attempt: 1}
	temp := &domain.PaymentError{Code: domain.PaymentUnavailable, Message: "busy", Temporary: true}
	proc.On("Charge", mock.Anything, req).Return(domain.Receipt{}, temp).Twice()
	proc.On("Charge", mock.Anything, req).Return(domain.Receipt{Reference: "ok"}, nil).Once()

	settler := NewSettler(proc, fastSettlerConfig(), nil, logger.Noop(), testTracer)
	defer settler.Close()

	sink := newOutcomeSink()
	settler.Dispatch(req, sink.done)

	out := sink.wait(t)
	require.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Receipt.Reference)
	proc.AssertNumberOfCalls(t, "Charge", 3)
}

func TestSettlerDoesNotRetryDeclines(t *testing.T) {
	proc := new(mockProcessor)
	req := domain.ChargeRequest{JobID: uuid.New(), Attempt: 1}
	decline := &domain.PaymentError{Code: domain.PaymentDeclined, Message: "no funds"}
	proc.On("Charge", mock.Anything, req).Return(domain.Receipt{}, decline).Once()

	settler := NewSettler(proc, fastSettlerConfig(), nil, logger.Noop(), testTracer)
	defer settler.Close()

	sink := newOutcomeSink()
	settler.Dispatch(req, sink.done)

	out := sink.wait(t)
	var perr *domain.PaymentError
	require.ErrorAs(t, out.Err, &perr)
	assert.Equal(t, domain.PaymentDeclined, perr.Code)
	proc.AssertNumberOfCalls(t, "Charge", 1)
}

func TestSettlerCancelSuppressesCompletion(t *testing.T) {
	proc := newBlockingProcessor()
	settler := NewSettler(proc, fastSettlerConfig(), nil, logger.Noop(), testTracer)

	sink := newOutcomeSink()
	req := domain.ChargeRequest{JobID: uuid.New(), Attempt: 1}
	settler.Dispatch(req, sink.done)
	<-proc.started

	settler.Cancel(req.JobID)
	settler.Close()

	assert.Zero(t, sink.len())
	assert.Zero(t, settler.Pending())
}

func TestSettlerNewerDispatchSupersedesOlder(t *testing.T) {
	proc := newBlockingProcessor()
	settler := NewSettler(proc, fastSettlerConfig(), nil, logger.Noop(), testTracer)
	defer settler.Close()

	sink := newOutcomeSink()
	jobID := uuid.New()

	settler.Dispatch(domain.ChargeRequest{JobID: jobID, Attempt: 1}, sink.done)
	<-proc.started
	settler.Dispatch(domain.ChargeRequest{JobID: jobID, Attempt: 2}, sink.done)
	<-proc.started

	close(proc.release)

	out := sink.wait(t)
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Request.Attempt)

	// The superseded attempt never reports.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.len())
}

func TestSettlerCloseDropsLaterDispatches(t *testing.T) {
	settler := NewSettler(new(mockProcessor), fastSettlerConfig(), nil, logger.Noop(), testTracer)
	settler.Close()

	sink := newOutcomeSink()
	settler.Dispatch(domain.ChargeRequest{JobID: uuid.New(), Attempt: 1}, sink.done)

	assert.Zero(t, settler.Pending())
	assert.Zero(t, sink.len())
}
