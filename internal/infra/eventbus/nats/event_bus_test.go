package nats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
)

func TestSubjectNaming(t *testing.T) {
	cfg := Config{SubjectPrefix: "workie.events."}
	assert.Equal(t, "workie.events.JobClosed", cfg.Subject(progress.EventTypeJobClosed))

	cfg.SubjectPrefix = ""
	assert.Equal(t, "JobClosed", cfg.Subject(progress.EventTypeJobClosed))
}

func setupNATS(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	url := setupNATS(t)

	bus, err := Connect(Config{URL: url, SubjectPrefix: "workie.test", ClientName: "test"},
		logger.Noop(), noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.EventEnvelope, 1)
	require.NoError(t, bus.Subscribe(ctx, []events.EventType{progress.EventTypeJobClosed},
		func(_ context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			received <- evt
			ack(nil)
			return nil
		}))
	require.NoError(t, bus.conn.Flush())

	jobID := uuid.New()
	env := events.Envelope(progress.NewJobClosedEvent(time.Now(), jobID, uuid.New()))
	require.NoError(t, bus.Publish(ctx, env, events.WithKey(jobID.String())))

	select {
	case evt := <-received:
		assert.Equal(t, progress.EventTypeJobClosed, evt.Type)
		assert.Equal(t, jobID.String(), evt.Key)
		payload, ok := evt.Payload.(progress.JobClosedEvent)
		require.True(t, ok)
		assert.Equal(t, jobID, payload.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
