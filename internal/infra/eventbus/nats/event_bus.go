// Package nats provides a NATS-based implementation of the event bus for
// deployments that want lightweight fan-out without a Kafka cluster.
package nats

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/infra/eventbus/serialization"
	"github.com/workielk/workie/pkg/common/logger"
)

// Config contains settings for connecting to a NATS server.
type Config struct {
	URL string
	// SubjectPrefix namespaces every subject, e.g. "workie.events".
	SubjectPrefix string
	// QueueGroup, when set, load-balances each event across the members of
	// the group instead of fanning it out to all of them.
	QueueGroup string
	ClientName string
}

// Subject returns the subject events of type t are published on.
func (c *Config) Subject(t events.EventType) string {
	prefix := strings.TrimSuffix(c.SubjectPrefix, ".")
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

const keyHeader = "Workie-Event-Key"

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements events.EventBus over core NATS subjects, one subject
// per event type.
type EventBus struct {
	conn *nats.Conn
	cfg  Config

	mu   sync.Mutex
	subs []*nats.Subscription

	logger *logger.Logger
	tracer trace.Tracer
}

// Connect dials the NATS server and returns an event bus on the connection.
func Connect(cfg Config, logger *logger.Logger, tracer trace.Tracer) (*EventBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}
	return NewEventBus(conn, cfg, logger, tracer), nil
}

// NewEventBus creates an event bus on an established connection.
func NewEventBus(conn *nats.Conn, cfg Config, logger *logger.Logger, tracer trace.Tracer) *EventBus {
	return &EventBus{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("component", "nats_event_bus"),
		tracer: tracer,
	}
}

// Publish sends event on the subject of its type.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	subject := b.cfg.Subject(event.Type)
	ctx, span := b.tracer.Start(ctx, "nats.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
		))
	defer span.End()

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if params.Headers != nil {
		event.Headers = params.Headers
	}

	data, err := serialization.SerializeEventEnvelope(event)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if event.Key != "" {
		msg.Header.Set(keyHeader, event.Key)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := b.conn.PublishMsg(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish")
		return fmt.Errorf("failed to publish to nats subject %s: %w", subject, err)
	}

	b.logger.Debug(ctx, "Published message to NATS", "subject", subject, "key", event.Key)
	return nil
}

// Subscribe registers handler on the subjects of eventTypes until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	var subs []*nats.Subscription
	for _, et := range eventTypes {
		subject := b.cfg.Subject(et)
		cb := func(msg *nats.Msg) { b.handle(ctx, msg, handler) }

		var (
			sub *nats.Subscription
			err error
		)
		if b.cfg.QueueGroup != "" {
			sub, err = b.conn.QueueSubscribe(subject, b.cfg.QueueGroup, cb)
		} else {
			sub, err = b.conn.Subscribe(subject, cb)
		}
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	b.mu.Lock()
	b.subs = append(b.subs, subs...)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}()

	b.logger.Info(ctx, "Subscribed to events", "event_types", eventTypes)
	return nil
}

func (b *EventBus) handle(ctx context.Context, msg *nats.Msg, handler events.HandlerFunc) {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
	msgCtx, span := b.tracer.Start(msgCtx, "nats.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject),
		))
	defer span.End()

	evt, err := serialization.DeserializeEventEnvelope(msg.Data)
	if err != nil {
		span.RecordError(err)
		b.logger.Error(msgCtx, "Failed to decode message", "subject", msg.Subject, "error", err)
		return
	}
	if evt.Key == "" && msg.Header != nil {
		evt.Key = msg.Header.Get(keyHeader)
	}

	if err := handler(msgCtx, evt, events.NoopAck); err != nil {
		span.RecordError(err)
		b.logger.Error(msgCtx, "Failed to handle message", "event_type", evt.Type, "error", err)
	}
}

// Close drains the subscriptions and closes the connection.
func (b *EventBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
