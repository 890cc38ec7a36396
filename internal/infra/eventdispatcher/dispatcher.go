// Package eventdispatcher routes events delivered by an EventBus to the single
// handler registered for their type.
package eventdispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/pkg/common/logger"
)

// Dispatcher manages event handlers and dispatches events to their registered handler.
// Each event type has exactly one handler responsible for processing it.
//
// Typical usage:
//
//	d := eventdispatcher.New(tracer, log)
//	if err := d.RegisterHandler(ctx, activity); err != nil { ... }
//	err := bus.Subscribe(ctx, d.EventTypes(), d.Dispatch)
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[events.EventType]events.EventHandler
	tracer   trace.Tracer
	logger   *logger.Logger
}

// New constructs a Dispatcher with an empty registry.
func New(tracer trace.Tracer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[events.EventType]events.EventHandler),
		tracer:   tracer,
		logger:   log.With("component", "event_dispatcher"),
	}
}

// DuplicateHandlerError is returned when two handlers claim the same event type.
type DuplicateHandlerError struct{ EventType events.EventType }

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("handler already registered for event type: %s", e.EventType)
}

// RegisterHandler registers h for every event type it supports. Nothing is
// registered if any of those types already has a handler.
func (d *Dispatcher) RegisterHandler(ctx context.Context, h events.EventHandler) error {
	_, span := d.tracer.Start(ctx, "event_dispatcher.register_handler",
		trace.WithAttributes(attribute.String("handler_type", fmt.Sprintf("%T", h))))
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, et := range h.SupportedEvents() {
		if _, exists := d.handlers[et]; exists {
			err := &DuplicateHandlerError{EventType: et}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	for _, et := range h.SupportedEvents() {
		d.handlers[et] = h
		d.logger.Debug(ctx, "handler registered", "event_type", et)
	}
	span.SetStatus(codes.Ok, "handler registered")
	return nil
}

// EventTypes lists every event type with a registered handler, sorted.
func (d *Dispatcher) EventTypes() []events.EventType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]events.EventType, 0, len(d.handlers))
	for et := range d.handlers {
		types = append(types, et)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// HandlerNotFoundError indicates no handler is registered for an event type.
type HandlerNotFoundError struct {
	EventType events.EventType
	Key       string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for event type: %s (key: %s)", e.EventType, e.Key)
}

// Dispatch hands evt to its registered handler. It satisfies events.HandlerFunc
// so it can be passed straight to EventBus.Subscribe.
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	log := logger.NewLoggerContext(d.logger.With("operation", "dispatch",
		"event_type", evt.Type,
		"key", evt.Key,
	))
	ctx, span := d.tracer.Start(ctx, "event_dispatcher.handle_event",
		trace.WithAttributes(
			attribute.String("event_type", string(evt.Type)),
			attribute.String("key", evt.Key),
		))
	defer span.End()

	d.mu.RLock()
	handler, exists := d.handlers[evt.Type]
	d.mu.RUnlock()
	if !exists {
		err := &HandlerNotFoundError{EventType: evt.Type, Key: evt.Key}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	log.Add("handler_type", fmt.Sprintf("%T", handler))

	if err := handler.HandleEvent(ctx, evt, ack); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to dispatch event for handler %T with event type %s: %w",
			handler, evt.Type, err,
		)
	}

	span.SetStatus(codes.Ok, "event dispatched successfully")
	log.Debug(ctx, "event dispatched successfully")
	return nil
}
