package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(WithDotEnv()).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, BusMemory, cfg.EventBus.Driver)
	assert.Equal(t, ProcessorSimulated, cfg.Payment.Processor)
	assert.Equal(t, 2*time.Second, cfg.Payment.SimulatedDelay)
	assert.InDelta(t, 0.8, cfg.Payment.Gateway.SuccessRate, 1e-9)
	assert.Equal(t, "workie.job-events", cfg.EventBus.Kafka.JobEventsTopic)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeFile(t, "workie.yaml", `
http:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://workie:secret@db:5432/workie
event_bus:
  driver: kafka
  kafka:
    brokers: ["k1:9092"]
payment:
  processor: gateway
  gateway:
    success_rate: 0.5
`)
	t.Setenv("WORKIE_HTTP_ADDR", ":9100")
	t.Setenv("WORKIE_PAYMENT_SIMULATED_DELAY", "250ms")

	cfg, err := NewLoader(WithFile(path), WithDotEnv()).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTP.Addr, "environment overrides the file")
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"k1:9092"}, cfg.EventBus.Kafka.Brokers)
	assert.Equal(t, ProcessorGateway, cfg.Payment.Processor)
	assert.InDelta(t, 0.5, cfg.Payment.Gateway.SuccessRate, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.Payment.SimulatedDelay)
}

func TestLoadReadsDotEnv(t *testing.T) {
	env := writeFile(t, ".env", "WORKIE_STORAGE_MAX_CONNS=42\n")
	t.Cleanup(func() { os.Unsetenv("WORKIE_STORAGE_MAX_CONNS") })

	cfg, err := NewLoader(WithDotEnv(env)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(42), cfg.Storage.MaxConns)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without dsn", env: map[string]string{"WORKIE_STORAGE_DRIVER": "postgres"}},
		{name: "unknown bus", env: map[string]string{"WORKIE_EVENT_BUS_DRIVER": "carrier-pigeon"}},
		{name: "nats without url", env: map[string]string{"WORKIE_EVENT_BUS_DRIVER": "nats"}},
		{name: "unknown processor", env: map[string]string{"WORKIE_PAYMENT_PROCESSOR": "cash"}},
		{name: "success rate out of range", env: map[string]string{"WORKIE_PAYMENT_GATEWAY_SUCCESS_RATE": "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewLoader(WithDotEnv()).Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestRedactedMasksCredentials(t *testing.T) {
	cfg := Config{
		Storage:  Storage{Driver: StoragePostgres, DSN: "postgres://workie:secret@db:5432/workie"},
		EventBus: EventBus{NATS: NATS{URL: "nats://user:pw@nats:4222"}},
	}

	out := cfg.Redacted()
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, ":pw@")
	assert.Contains(t, out, "workie:xxxxx@db:5432")
	assert.Equal(t, "postgres://workie:secret@db:5432/workie", cfg.Storage.DSN, "receiver is not modified")
}
