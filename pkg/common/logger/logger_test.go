package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesServiceMetadataAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	traceID := func(context.Context) string { return "trace-123" }

	log := NewWithMetadata(&buf, LevelInfo, "workie-api", traceID, Events{}, map[string]string{
		"hostname": "node-1",
		"pod":      "",
	})
	log.With("component", "progress").Info(context.Background(), "stage advanced", "job_id", "j-1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "stage advanced", lines[0]["msg"])
	assert.Equal(t, "workie-api", lines[0]["service"])
	assert.Equal(t, "node-1", lines[0]["hostname"])
	assert.Equal(t, "progress", lines[0]["component"])
	assert.Equal(t, "j-1", lines[0]["job_id"])
	assert.Equal(t, "trace-123", lines[0]["trace_id"])
	assert.NotContains(t, lines[0], "pod")
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "debug")
	log.Info(context.Background(), "info")
	log.Warn(context.Background(), "warn")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["msg"])
}

func TestLoggerErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	var got Record
	log := NewWithEvents(&buf, LevelInfo, "svc", nil, Events{
		Error: func(_ context.Context, r Record) { got = r },
	})

	log.Error(context.Background(), "settlement failed", "attempt", 2)

	assert.Equal(t, "settlement failed", got.Message)
	assert.Equal(t, int64(2), got.Attributes["attempt"])
}

func TestLoggerContextAccumulatesAttributes(t *testing.T) {
	var buf bytes.Buffer
	lc := NewLoggerContext(New(&buf, LevelInfo, "svc", nil))

	lc.Add("job_id", "j-9")
	lc.Info(context.Background(), "first")
	lc.Add("role", "client")
	lc.Info(context.Background(), "second")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "j-9", lines[0]["job_id"])
	assert.NotContains(t, lines[0], "role")
	assert.Equal(t, "client", lines[1]["role"])
}

func TestFanoutHandlerDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	h := NewFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))

	NewWithHandler(h).Info(context.Background(), "hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
}

func TestTeeKeepsTraceID(t *testing.T) {
	var primary, secondary bytes.Buffer
	log := New(&primary, LevelInfo, "svc", func(context.Context) string { return "trace-1" })

	log.Tee(slog.NewJSONHandler(&secondary, nil)).Info(context.Background(), "hello")

	assert.Contains(t, primary.String(), "trace-1")
	assert.Contains(t, secondary.String(), "hello")
}

func TestNoopDiscards(t *testing.T) {
	log := Noop()
	assert.NotPanics(t, func() {
		log.With("k", "v").Error(context.Background(), "ignored")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
