package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities. It abstracts the source
// of configuration to allow for different implementations like files, environment
// variables, or remote configuration services.
type Loader interface {
	// Load retrieves and parses the configuration from the underlying source.
	// It returns the parsed configuration or an error if loading fails.
	Load(ctx context.Context) (*Config, error)
}

// EnvPrefix prefixes every environment override, e.g. WORKIE_HTTP_ADDR.
const EnvPrefix = "WORKIE"

var _ Loader = (*ViperLoader)(nil)

// ViperLoader layers defaults, an optional YAML file, a .env file and
// WORKIE_* environment variables, later sources winning.
type ViperLoader struct {
	path   string
	dotenv []string
}

// Option customizes a ViperLoader.
type Option func(*ViperLoader)

// WithFile reads path as a YAML config file. A missing file is an error.
func WithFile(path string) Option { return func(l *ViperLoader) { l.path = path } }

// WithDotEnv loads the given .env files before reading the environment.
// Missing files are ignored.
func WithDotEnv(files ...string) Option { return func(l *ViperLoader) { l.dotenv = files } }

// NewLoader creates a ViperLoader.
func NewLoader(opts ...Option) *ViperLoader {
	l := &ViperLoader{dotenv: []string{".env"}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the configuration and validates it.
func (l *ViperLoader) Load(_ context.Context) (*Config, error) {
	for _, f := range l.dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.path != "" {
		v.SetConfigFile(l.path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "workie-api")
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.debug_addr", ":6060")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 2*time.Minute)
	v.SetDefault("http.shutdown_timeout", 20*time.Second)
	v.SetDefault("http.cors_origins", []string{"*"})

	v.SetDefault("storage.driver", string(StorageMemory))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.migrate", true)

	v.SetDefault("event_bus.driver", string(BusMemory))
	v.SetDefault("event_bus.kafka.brokers", []string{})
	v.SetDefault("event_bus.kafka.job_events_topic", "workie.job-events")
	v.SetDefault("event_bus.kafka.marketplace_events_topic", "workie.marketplace-events")
	v.SetDefault("event_bus.kafka.group_id", "workie-api")
	v.SetDefault("event_bus.kafka.client_id", "workie-api")
	v.SetDefault("event_bus.nats.url", "")
	v.SetDefault("event_bus.nats.subject_prefix", "workie.events")
	v.SetDefault("event_bus.nats.queue_group", "")

	v.SetDefault("payment.processor", string(ProcessorSimulated))
	v.SetDefault("payment.simulated_delay", 2*time.Second)
	v.SetDefault("payment.gateway.success_rate", 0.8)
	v.SetDefault("payment.gateway.latency", 1500*time.Millisecond)
	v.SetDefault("payment.gateway.rps", 20.0)
	v.SetDefault("payment.gateway.burst", 5)
	v.SetDefault("payment.retry.max_retries", 3)
	v.SetDefault("payment.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("payment.retry.max_interval", 5*time.Second)
	v.SetDefault("payment.retry.timeout", time.Minute)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 0.1)
}
