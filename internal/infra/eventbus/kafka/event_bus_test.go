package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/internal/infra/eventbus/serialization"
	"github.com/workielk/workie/pkg/common/logger"
)

var testConfig = &Config{
	JobEventsTopic:         "workie.jobs",
	MarketplaceEventsTopic: "workie.marketplace",
	GroupID:                "test-group",
	ClientID:               "test-client",
}

func newTestBus(producer sarama.SyncProducer) *EventBus {
	return NewEventBus(producer, nil, testConfig, logger.Noop(), nil, noop.NewTracerProvider().Tracer("test"))
}

func jobClosedEnvelope(jobID uuid.UUID) events.EventEnvelope {
	return events.Envelope(progress.NewJobClosedEvent(time.Now(), jobID, uuid.New()))
}

func TestPublishRoutesByEventTypeAndKey(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	jobID := uuid.New()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "workie.jobs" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != jobID.String() {
			return errors.New("wrong key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		env, err := serialization.DeserializeEventEnvelope(value)
		if err != nil {
			return err
		}
		if env.Type != progress.EventTypeJobClosed {
			return errors.New("wrong type " + string(env.Type))
		}
		return nil
	})

	bus := newTestBus(producer)
	require.NoError(t, bus.Publish(context.Background(), jobClosedEnvelope(jobID), events.WithKey(jobID.String())))
	require.NoError(t, producer.Close())
}

func TestPublishMarketplaceTopic(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "workie.marketplace" {
			return errors.New("wrong topic " + msg.Topic)
		}
		return nil
	})

	posting := marketplace.NewPosting(uuid.New(), marketplace.PostingDetails{Title: "t", Type: marketplace.JobTypeOneOff})
	bus := newTestBus(producer)
	require.NoError(t, bus.Publish(context.Background(), events.Envelope(marketplace.NewPostingCreatedEvent(posting))))
	require.NoError(t, producer.Close())
}

func TestPublishUnknownEventType(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	bus := newTestBus(producer)

	err := bus.Publish(context.Background(), events.EventEnvelope{Type: "Nope"})
	assert.ErrorContains(t, err, "no topic mapped")
	require.NoError(t, producer.Close())
}

func TestPublishSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)
	bus := newTestBus(producer)

	err := bus.Publish(context.Background(), jobClosedEnvelope(uuid.New()))
	assert.ErrorIs(t, err, sarama.ErrLeaderNotAvailable)
	require.NoError(t, producer.Close())
}

func TestSubscribeWithoutConsumerGroup(t *testing.T) {
	bus := newTestBus(mocks.NewSyncProducer(t, nil))
	err := bus.Subscribe(context.Background(), []events.EventType{progress.EventTypeJobClosed},
		func(context.Context, events.EventEnvelope, events.AckFunc) error { return nil })
	assert.Error(t, err)
}

type fakeSession struct {
	mu     sync.Mutex
	marked []int64
	ctx    context.Context
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct{ msgs chan *sarama.ConsumerMessage }

func (c fakeClaim) Topic() string                            { return "workie.jobs" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumeClaimDeliversWantedEvents(t *testing.T) {
	jobID := uuid.New()
	closed, err := serialization.SerializeEventEnvelope(jobClosedEnvelope(jobID))
	require.NoError(t, err)
	failed, err := serialization.SerializeEventEnvelope(events.Envelope(
		progress.NewPaymentFailedEvent(time.Now(), jobID, 1, "declined")))
	require.NoError(t, err)

	claim := fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "workie.jobs", Offset: 1, Key: []byte(jobID.String()), Value: closed}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "workie.jobs", Offset: 2, Value: []byte{0xff, 0x01}}
	claim.msgs <- &sarama.ConsumerMessage{Topic: "workie.jobs", Offset: 3, Value: failed}
	close(claim.msgs)

	var got []events.EventEnvelope
	h := &domainEventHandler{
		wanted: map[events.EventType]struct{}{progress.EventTypeJobClosed: {}},
		userHandler: func(_ context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			got = append(got, evt)
			ack(nil)
			return nil
		},
		logger:  logger.Noop(),
		tracer:  noop.NewTracerProvider().Tracer("test"),
		metrics: noopMetrics{},
	}

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	require.Len(t, got, 1)
	assert.Equal(t, progress.EventTypeJobClosed, got[0].Type)
	payload, ok := got[0].Payload.(progress.JobClosedEvent)
	require.True(t, ok)
	assert.Equal(t, jobID, payload.JobID)

	// Delivered, poison and filtered messages are all marked.
	assert.Equal(t, []int64{1, 2, 3}, sess.marked)
}
