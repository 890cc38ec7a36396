// Package kafka provides a Kafka-based implementation of the event bus for asynchronous messaging.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/internal/infra/eventbus/kafka/tracing"
	"github.com/workielk/workie/internal/infra/eventbus/serialization"
	"github.com/workielk/workie/pkg/common/logger"
)

// Config contains settings for connecting to and interacting with Kafka brokers.
// It defines the topics, consumer group, and client identifiers needed for message routing.
type Config struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string

	// JobEventsTopic carries job progress and payment events, keyed by job id.
	JobEventsTopic string
	// MarketplaceEventsTopic carries posting and application events.
	MarketplaceEventsTopic string

	// GroupID identifies the consumer group for this broker instance.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
}

// topicMap routes domain event types to their Kafka topics.
func (c *Config) topicMap() map[events.EventType]string {
	return map[events.EventType]string{
		progress.EventTypeStageAdvanced:    c.JobEventsTopic,
		progress.EventTypePaymentRequested: c.JobEventsTopic,
		progress.EventTypePaymentSettled:   c.JobEventsTopic,
		progress.EventTypePaymentFailed:    c.JobEventsTopic,
		progress.EventTypeReviewSubmitted:  c.JobEventsTopic,
		progress.EventTypeJobClosed:        c.JobEventsTopic,

		marketplace.EventTypePostingCreated:       c.MarketplaceEventsTopic,
		marketplace.EventTypePostingClosed:        c.MarketplaceEventsTopic,
		marketplace.EventTypeApplicationSubmitted: c.MarketplaceEventsTopic,
	}
}

// commitInterval bounds how often a consumer session commits marked offsets.
const commitInterval = time.Second

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements the EventBus interface using Kafka as the underlying message broker.
// It handles publishing and subscribing to domain events across distributed services.
type EventBus struct {
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup

	// Maps domain event types to their Kafka topics
	topicMap map[events.EventType]string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

// NewEventBus creates an EventBus from an established producer and consumer
// group. consumerGroup may be nil for publish-only use; metrics may be nil.
func NewEventBus(
	producer sarama.SyncProducer,
	consumerGroup sarama.ConsumerGroup,
	cfg *Config,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) *EventBus {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &EventBus{
		producer:      producer,
		consumerGroup: consumerGroup,
		topicMap:      cfg.topicMap(),
		logger: logger.With(
			"component", "kafka_event_bus",
			"client_id", cfg.ClientID,
			"group_id", cfg.GroupID,
		),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Publish sends a domain event to the Kafka topic mapped for its type.
// It handles serialization, routing based on event type, and includes
// observability instrumentation for tracing and metrics.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	topic, ok := b.topicMap[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type '%s', no topic mapped", event.Type)
	}

	ctx, span := tracing.StartProducerSpan(ctx, topic, b.tracer)
	defer span.End()

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
		span.SetAttributes(attribute.String("event.key", event.Key))
	}
	if params.Headers != nil {
		event.Headers = params.Headers
	}

	msgBytes, err := serialization.SerializeEventEnvelope(event)
	if err != nil {
		span.RecordError(err)
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(msgBytes),
	}
	for k, v := range event.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	tracing.InjectTraceContext(ctx, kafkaMsg)

	partition, offset, err := b.producer.SendMessage(kafkaMsg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, err)
	}
	b.metrics.IncMessagePublished(ctx, topic)

	b.logger.Debug(ctx, "Published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"event_type", event.Type,
		"key", event.Key,
	)

	return nil
}

// Subscribe registers a handler function to process domain events from specified event types.
// It manages consumer group membership and message processing in a separate goroutine.
func (b *EventBus) Subscribe(
	ctx context.Context,
	eventTypes []events.EventType,
	handler events.HandlerFunc,
) error {
	if b.consumerGroup == nil {
		return fmt.Errorf("subscribe: event bus has no consumer group")
	}

	ctx, span := b.tracer.Start(ctx, "kafka_event_bus.subscribe",
		trace.WithAttributes(attribute.String("component", "kafka_event_bus")))
	defer span.End()

	topics, err := b.topicsFor(eventTypes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown event type")
		return err
	}
	span.AddEvent("topics_collected", trace.WithAttributes(attribute.StringSlice("topics", topics)))

	wanted := make(map[events.EventType]struct{}, len(eventTypes))
	for _, et := range eventTypes {
		wanted[et] = struct{}{}
	}

	go b.consumeLoop(ctx, topics, &domainEventHandler{
		wanted:      wanted,
		userHandler: handler,
		logger:      b.logger,
		tracer:      b.tracer,
		metrics:     b.metrics,
	})
	b.logger.Info(ctx, "Subscribed to events", "event_types", eventTypes)

	return nil
}

// topicsFor returns the distinct topics carrying eventTypes.
func (b *EventBus) topicsFor(eventTypes []events.EventType) ([]string, error) {
	var topics []string
	seen := make(map[string]struct{})
	for _, et := range eventTypes {
		topic, ok := b.topicMap[et]
		if !ok {
			return nil, fmt.Errorf("subscribe: unknown event type %s", et)
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics, nil
}

// consumeLoop maintains a continuous consumer group session for processing messages.
func (b *EventBus) consumeLoop(ctx context.Context, topics []string, handler *domainEventHandler) {
	for {
		if err := b.consumerGroup.Consume(ctx, topics, handler); err != nil {
			b.logger.Error(ctx, "Error from consumer group", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// domainEventHandler implements sarama.ConsumerGroupHandler to process Kafka messages
// and convert them into domain events for the application.
type domainEventHandler struct {
	// wanted filters the shared topics down to the subscribed event types.
	wanted      map[events.EventType]struct{}
	userHandler events.HandlerFunc

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

func (h *domainEventHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(),
		"Consumer group session setup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

func (h *domainEventHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(),
		"Consumer group session cleanup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

// ConsumeClaim processes messages from an assigned partition, deserializing them into
// domain events and invoking the user-provided handler.
func (h *domainEventHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	consumeLogger := h.logger.With("operation", "consume_claim", "partition", claim.Partition())
	consumeLogger.Info(sess.Context(), "Starting to consume from partition", "member_id", sess.MemberID())

	lastCommit := time.Now()

	for msg := range claim.Messages() {
		h.handleMessage(sess, msg, consumeLogger)

		if time.Since(lastCommit) > commitInterval {
			sess.Commit()
			lastCommit = time.Now()
		}
	}

	// Final commit before exiting
	sess.Commit()

	return nil
}

func (h *domainEventHandler) handleMessage(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, log *logger.Logger) {
	msgCtx := tracing.ExtractTraceContext(sess.Context(), msg)
	msgCtx, span := tracing.StartConsumerSpan(msgCtx, msg, h.tracer)
	defer span.End()

	evt, err := serialization.DeserializeEventEnvelope(msg.Value)
	if err != nil {
		// Poison messages are skipped so they do not block the partition.
		sess.MarkMessage(msg, "")
		span.RecordError(err)
		h.metrics.IncConsumeError(msgCtx, msg.Topic)
		log.Error(msgCtx, "Failed to decode message", "offset", msg.Offset, "error", err)
		return
	}

	if _, ok := h.wanted[evt.Type]; !ok {
		sess.MarkMessage(msg, "")
		return
	}
	if evt.Key == "" {
		evt.Key = string(msg.Key)
	}

	ack := func(err error) {
		if err != nil {
			log.Error(msgCtx, "Failed to acknowledge message", "error", err)
			h.metrics.IncConsumeError(msgCtx, msg.Topic)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to acknowledge message")
			return
		}
		h.metrics.IncMessageConsumed(msgCtx, msg.Topic)
		sess.MarkMessage(msg, "")
	}

	if err := h.userHandler(msgCtx, evt, ack); err != nil {
		log.Error(msgCtx, "Failed to handle message", "event_type", evt.Type, "error", err)
		span.RecordError(err)
		return
	}

	log.Debug(msgCtx, "Successfully processed message", "topic", msg.Topic, "offset", msg.Offset)
}

// Close gracefully shuts down the event bus by closing both producer and consumer connections.
func (b *EventBus) Close() error {
	logger := b.logger.With("operation", "close")
	ctx, span := b.tracer.Start(context.Background(), "kafka_event_bus.close")
	defer span.End()

	if err := b.producer.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close producer")
		logger.Error(ctx, "Failed to close producer", "error", err)
		return err
	}
	if b.consumerGroup != nil {
		if err := b.consumerGroup.Close(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to close consumer group")
			logger.Error(ctx, "Failed to close consumer group", "error", err)
			return err
		}
	}

	span.SetStatus(codes.Ok, "closed event bus")
	logger.Info(ctx, "Closed event bus")

	return nil
}
