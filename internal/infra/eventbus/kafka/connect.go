package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/pkg/common/logger"
)

// ConnectEventBus creates an EventBus with exponential backoff. It will retry
// for up to 5 minutes, which covers brokers that start after the service.
func ConnectEventBus(
	cfg *Config,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (events.EventBus, error) {
	var eventBus events.EventBus

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 5 * time.Minute
	expBackoff.InitialInterval = 5 * time.Second

	operation := func() error {
		client, err := NewClient(&ClientConfig{Brokers: cfg.Brokers, GroupID: cfg.GroupID, ClientID: cfg.ClientID})
		if err != nil {
			return fmt.Errorf("creating client: %w", err)
		}

		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			client.Close()
			return fmt.Errorf("creating producer: %w", err)
		}

		consumerGroup, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
		if err != nil {
			producer.Close() // Clean up on failure
			client.Close()
			return fmt.Errorf("creating consumer group: %w", err)
		}

		eventBus = NewEventBus(producer, consumerGroup, cfg, logger, metrics, tracer)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn(context.Background(), "kafka not ready, retrying", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(operation, expBackoff, notify); err != nil {
		return nil, fmt.Errorf("failed to connect event bus after retries: %w", err)
	}

	return eventBus, nil
}
