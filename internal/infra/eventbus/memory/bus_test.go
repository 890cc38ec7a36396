package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/pkg/common/logger"
)

const (
	typeA events.EventType = "A"
	typeB events.EventType = "B"
)

func newTestBus() *EventBus {
	return NewEventBus(logger.Noop(), noop.NewTracerProvider().Tracer("test"))
}

type recorder struct {
	mu  sync.Mutex
	got []events.EventEnvelope
}

func (r *recorder) handle(_ context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, evt)
	ack(nil)
	return nil
}

func (r *recorder) received() []events.EventEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventEnvelope(nil), r.got...)
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := newTestBus()
	ctx := context.Background()

	var onlyA, both recorder
	require.NoError(t, bus.Subscribe(ctx, []events.EventType{typeA}, onlyA.handle))
	require.NoError(t, bus.Subscribe(ctx, []events.EventType{typeA, typeB}, both.handle))

	require.NoError(t, bus.Publish(ctx, events.EventEnvelope{Type: typeA, Payload: 1}, events.WithKey("job-1")))
	require.NoError(t, bus.Publish(ctx, events.EventEnvelope{Type: typeB, Payload: 2}))

	require.Len(t, onlyA.received(), 1)
	assert.Equal(t, "job-1", onlyA.received()[0].Key)
	assert.Len(t, both.received(), 2)
}

func TestPublishReturnsHandlerError(t *testing.T) {
	bus := newTestBus()
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, bus.Subscribe(ctx, []events.EventType{typeA},
		func(context.Context, events.EventEnvelope, events.AckFunc) error { return boom }))

	assert.ErrorIs(t, bus.Publish(ctx, events.EventEnvelope{Type: typeA}), boom)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())

	var rec recorder
	require.NoError(t, bus.Subscribe(ctx, []events.EventType{typeA}, rec.handle))
	cancel()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.EventEnvelope{Type: typeA}))
	assert.Empty(t, rec.received())
}

func TestClosedBusRejectsUse(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Close())

	var rec recorder
	assert.ErrorIs(t, bus.Subscribe(context.Background(), []events.EventType{typeA}, rec.handle), ErrBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), events.EventEnvelope{Type: typeA}), ErrBusClosed)
}
