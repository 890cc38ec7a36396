// Package config holds the runtime configuration of the Workie services.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageDriver selects the persistence backend.
type StorageDriver string

const (
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

// BusDriver selects the event bus transport.
type BusDriver string

const (
	BusMemory BusDriver = "memory"
	BusKafka  BusDriver = "kafka"
	BusNATS   BusDriver = "nats"
)

// ProcessorKind selects how released payments are settled.
type ProcessorKind string

const (
	// ProcessorSimulated always succeeds after a fixed delay.
	ProcessorSimulated ProcessorKind = "simulated"
	// ProcessorGateway is the randomized mock gateway.
	ProcessorGateway ProcessorKind = "gateway"
)

// Config represents the top-level configuration.
type Config struct {
	ServiceName string    `mapstructure:"service_name" yaml:"service_name"`
	Environment string    `mapstructure:"environment" yaml:"environment"`
	Log         Log       `mapstructure:"log" yaml:"log"`
	HTTP        HTTP      `mapstructure:"http" yaml:"http"`
	Storage     Storage   `mapstructure:"storage" yaml:"storage"`
	EventBus    EventBus  `mapstructure:"event_bus" yaml:"event_bus"`
	Payment     Payment   `mapstructure:"payment" yaml:"payment"`
	Telemetry   Telemetry `mapstructure:"telemetry" yaml:"telemetry"`
}

// Log configures the structured logger.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// HTTP configures the public API and debug listeners.
type HTTP struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	DebugAddr       string        `mapstructure:"debug_addr" yaml:"debug_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Storage configures persistence.
type Storage struct {
	Driver StorageDriver `mapstructure:"driver" yaml:"driver"`
	// DSN is a postgres connection URL.
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
	// Migrate applies the embedded schema migrations on startup.
	Migrate bool `mapstructure:"migrate" yaml:"migrate"`
}

// EventBus configures where domain events are published.
type EventBus struct {
	Driver BusDriver `mapstructure:"driver" yaml:"driver"`
	Kafka  Kafka     `mapstructure:"kafka" yaml:"kafka"`
	NATS   NATS      `mapstructure:"nats" yaml:"nats"`
}

// Kafka configures the durable event bus.
type Kafka struct {
	Brokers                []string `mapstructure:"brokers" yaml:"brokers"`
	JobEventsTopic         string   `mapstructure:"job_events_topic" yaml:"job_events_topic"`
	MarketplaceEventsTopic string   `mapstructure:"marketplace_events_topic" yaml:"marketplace_events_topic"`
	GroupID                string   `mapstructure:"group_id" yaml:"group_id"`
	ClientID               string   `mapstructure:"client_id" yaml:"client_id"`
}

// NATS configures the lightweight event bus.
type NATS struct {
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	QueueGroup    string `mapstructure:"queue_group" yaml:"queue_group"`
}

// Payment configures settlement of released payments.
type Payment struct {
	Processor ProcessorKind `mapstructure:"processor" yaml:"processor"`
	// SimulatedDelay is how long the simulated processor waits before
	// confirming a charge.
	SimulatedDelay time.Duration `mapstructure:"simulated_delay" yaml:"simulated_delay"`
	Gateway        Gateway       `mapstructure:"gateway" yaml:"gateway"`
	Retry          Retry         `mapstructure:"retry" yaml:"retry"`
}

// Gateway tunes the mock card gateway.
type Gateway struct {
	SuccessRate float64       `mapstructure:"success_rate" yaml:"success_rate"`
	Latency     time.Duration `mapstructure:"latency" yaml:"latency"`
	RPS         float64       `mapstructure:"rps" yaml:"rps"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
}

// Retry bounds retries of temporary processor failures.
type Retry struct {
	MaxRetries      uint64        `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	// OTLPEndpoint is the collector address; empty disables export.
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// Validate reports configuration that cannot be started.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.EventBus.Driver {
	case BusMemory:
	case BusKafka:
		if len(c.EventBus.Kafka.Brokers) == 0 {
			return fmt.Errorf("event_bus.kafka.brokers is required for the kafka driver")
		}
	case BusNATS:
		if c.EventBus.NATS.URL == "" {
			return fmt.Errorf("event_bus.nats.url is required for the nats driver")
		}
	default:
		return fmt.Errorf("unknown event bus driver %q", c.EventBus.Driver)
	}

	switch c.Payment.Processor {
	case ProcessorSimulated, ProcessorGateway:
	default:
		return fmt.Errorf("unknown payment processor %q", c.Payment.Processor)
	}
	if r := c.Payment.Gateway.SuccessRate; r < 0 || r > 1 {
		return fmt.Errorf("payment.gateway.success_rate must be within [0,1], got %v", r)
	}

	return nil
}

// Redacted renders the configuration as YAML with credentials masked, for
// logging at startup.
func (c Config) Redacted() string {
	c.Storage.DSN = redactURL(c.Storage.DSN)
	c.EventBus.NATS.URL = redactURL(c.EventBus.NATS.URL)

	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return strings.TrimSpace(string(out))
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
