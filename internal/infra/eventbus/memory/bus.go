// Package memory provides an in-memory implementation of the event bus.
// It offers a lightweight, non-persistent broker suitable for tests and
// single-process deployments where durability is not required.
package memory

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/pkg/common/logger"
)

// ErrBusClosed is returned when publishing or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

type subscription struct {
	types   map[events.EventType]struct{}
	handler events.HandlerFunc
}

func (s subscription) matches(t events.EventType) bool {
	_, ok := s.types[t]
	return ok
}

var _ events.EventBus = (*EventBus)(nil)

// EventBus delivers published events synchronously to every matching
// subscriber. Subscribers for one event run concurrently and Publish returns
// the first handler error.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
	closed bool

	logger *logger.Logger
	tracer trace.Tracer
}

// NewEventBus creates an empty in-memory event bus.
func NewEventBus(logger *logger.Logger, tracer trace.Tracer) *EventBus {
	return &EventBus{
		subs:   make(map[uint64]subscription),
		logger: logger.With("component", "memory_event_bus"),
		tracer: tracer,
	}
}

// Publish hands event to every subscriber of its type.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if params.Headers != nil {
		event.Headers = params.Headers
	}

	ctx, span := b.tracer.Start(ctx, "memory_event_bus.publish",
		trace.WithAttributes(
			attribute.String("event_type", string(event.Type)),
			attribute.String("event.key", event.Key),
		))
	defer span.End()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	// Copy the handlers to avoid holding the lock while executing them.
	handlers := make([]events.HandlerFunc, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(event.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	span.SetAttributes(attribute.Int("subscribers", len(handlers)))

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		g.Go(func() error { return h(gctx, event, events.NoopAck) })
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscriber failed")
		b.logger.Warn(ctx, "event handler failed", "event_type", event.Type, "error", err)
		return err
	}

	return nil
}

// Subscribe registers handler for eventTypes until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	types := make(map[events.EventType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{types: types, handler: handler}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	b.logger.Debug(ctx, "subscribed to events", "event_types", eventTypes)
	return nil
}

// Close drops every subscription. Later calls fail with ErrBusClosed.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.subs)
	return nil
}
