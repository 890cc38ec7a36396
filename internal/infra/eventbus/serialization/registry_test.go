package serialization

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/progress"
)

func TestEnvelopeRoundTripRestoresDomainEvent(t *testing.T) {
	jobID := uuid.New()
	at := time.Date(2024, 3, 1, 10, 0, 0, 123000, time.UTC)
	evt := progress.NewStageAdvancedEvent(jobID, progress.StageChange{
		From:   progress.StagePaymentSuccessful,
		To:     progress.StageReviewFeedback,
		Action: progress.ActionSubmitReview,
		Role:   progress.RoleClient,
		At:     at,
	}, 7)

	env := events.Envelope(evt,
		events.WithKey(jobID.String()),
		events.WithHeaders(map[string]string{"source": "test"}))

	data, err := SerializeEventEnvelope(env)
	require.NoError(t, err)

	got, err := DeserializeEventEnvelope(data)
	require.NoError(t, err)

	assert.Equal(t, progress.EventTypeStageAdvanced, got.Type)
	assert.Equal(t, jobID.String(), got.Key)
	assert.Equal(t, map[string]string{"source": "test"}, got.Headers)
	assert.True(t, at.Equal(got.Timestamp))

	payload, ok := got.Payload.(progress.StageAdvancedEvent)
	require.True(t, ok, "payload type %T", got.Payload)
	assert.Equal(t, jobID, payload.JobID)
	assert.Equal(t, progress.StageReviewFeedback, payload.To)
	assert.Equal(t, progress.ActionSubmitReview, payload.Action)
	assert.Equal(t, int64(7), payload.Version)
}

func TestUnregisteredPayloadDecodesAsMap(t *testing.T) {
	env := events.EventEnvelope{
		Type:      events.EventType("SomethingElse"),
		Timestamp: time.Now(),
		Payload:   map[string]any{"count": 3, "name": "x"},
	}

	data, err := SerializeEventEnvelope(env)
	require.NoError(t, err)

	got, err := DeserializeEventEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": float64(3), "name": "x"}, got.Payload)
	assert.Nil(t, got.Headers)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := DeserializeEventEnvelope([]byte{0xff, 0x01, 0x02})
	assert.Error(t, err)
}
