package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/domain/events"
	domain "github.com/workielk/workie/internal/domain/progress"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

// mockDomainEventPublisher implements events.DomainEventPublisher for testing.
type mockDomainEventPublisher struct{ mock.Mock }

func (m *mockDomainEventPublisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	args := m.Called(ctx, event, opts)
	return args.Error(0)
}

func newAcceptingPublisher() *mockDomainEventPublisher {
	pub := new(mockDomainEventPublisher)
	pub.On("PublishDomainEvent", mock.Anything, mock.Anything, mock.AnythingOfType("[]events.PublishOption")).Return(nil)
	return pub
}

func eventOfType(t events.EventType) any {
	return mock.MatchedBy(func(evt events.DomainEvent) bool { return evt.EventType() == t })
}

// mockProcessor implements domain.PaymentProcessor for testing.
type mockProcessor struct{ mock.Mock }

func (m *mockProcessor) Charge(ctx context.Context, req domain.ChargeRequest) (domain.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Receipt), args.Error(1)
}

// blockingProcessor holds every charge until released or canceled.
type blockingProcessor struct {
	started chan domain.ChargeRequest
	release chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{started: make(chan domain.ChargeRequest, 8), release: make(chan struct{})}
}

func (p *blockingProcessor) Charge(ctx context.Context, req domain.ChargeRequest) (domain.Receipt, error) {
	p.started <- req
	select {
	case <-ctx.Done():
		return domain.Receipt{}, &domain.PaymentError{Code: domain.PaymentCanceled, Message: ctx.Err().Error()}
	case <-p.release:
		return domain.Receipt{Reference: "blocked-" + req.JobID.String(), Amount: req.Amount}, nil
	}
}

// recordingDispatcher captures dispatched settlements so tests can complete
// them by hand.
type recordingDispatcher struct {
	mu       sync.Mutex
	requests []domain.ChargeRequest
	dones    []CompletionFunc
	canceled []uuid.UUID
}

func (d *recordingDispatcher) Dispatch(req domain.ChargeRequest, done CompletionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	d.dones = append(d.dones, done)
}

func (d *recordingDispatcher) Cancel(jobID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled = append(d.canceled, jobID)
}

func (d *recordingDispatcher) last() (domain.ChargeRequest, CompletionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.requests)
	return d.requests[n-1], d.dones[n-1]
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}
