package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/workielk/workie/internal/api"
	"github.com/workielk/workie/internal/api/debug"
	"github.com/workielk/workie/internal/api/mux"
	"github.com/workielk/workie/internal/api/routes"
	"github.com/workielk/workie/internal/app/activity"
	marketplaceapp "github.com/workielk/workie/internal/app/marketplace"
	"github.com/workielk/workie/internal/app/payment"
	progressapp "github.com/workielk/workie/internal/app/progress"
	"github.com/workielk/workie/internal/config"
	"github.com/workielk/workie/internal/domain/events"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/internal/infra/eventbus"
	"github.com/workielk/workie/internal/infra/eventbus/kafka"
	"github.com/workielk/workie/internal/infra/eventbus/memory"
	natsbus "github.com/workielk/workie/internal/infra/eventbus/nats"
	"github.com/workielk/workie/internal/infra/eventdispatcher"
	"github.com/workielk/workie/internal/infra/storage"
	memstore "github.com/workielk/workie/internal/infra/storage/memory"
	"github.com/workielk/workie/internal/infra/storage/postgres"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/common/otel"
)

var build = "develop"

const serviceType = "workie-api"

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	configPath := flag.String("config", os.Getenv("WORKIE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	ctx := context.Background()

	cfg, err := config.NewLoader(config.WithFile(*configPath)).Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	metadata := map[string]string{
		"hostname":    hostname,
		"environment": cfg.Environment,
		"app":         serviceType,
	}

	base := logger.NewWithMetadata(os.Stdout, logger.ParseLevel(cfg.Log.Level), cfg.ServiceName, traceIDFn, logEvents, metadata)

	// Records are also handed to the OpenTelemetry log bridge so they can be
	// correlated with traces when a log pipeline is configured.
	log := base.Tee(otelslog.NewHandler(cfg.ServiceName))

	if err := run(ctx, log, cfg, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, cfg *config.Config, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)
	log.Info(ctx, "startup", "config", cfg.Redacted())

	// -------------------------------------------------------------------------
	// Start Tracing Support
	log.Info(ctx, "startup", "status", "initializing tracing support")

	telemetry, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.ServiceName,
		ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
			"/debug":        {},
		},
		Probability: cfg.Telemetry.SampleRatio,
		ResourceAttributes: map[string]string{
			"library.language":       "go",
			"host.name":              hostname,
			"deployment.environment": cfg.Environment,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(context.Background())

	tracer := telemetry.TracerProvider.Tracer(cfg.ServiceName)

	apiMetrics, err := api.NewAPIMetrics(telemetry.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating api metrics: %w", err)
	}
	progressMetrics, err := progressapp.NewMetrics(telemetry.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating progress metrics: %w", err)
	}

	// -------------------------------------------------------------------------
	// Storage
	log.Info(ctx, "startup", "status", "initializing storage", "driver", cfg.Storage.Driver)

	readiness := map[string]func(context.Context) error{}

	var (
		marketplaceRepo marketplaceapp.Repository
		progressRepo    progress.Repository
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if cfg.Storage.Migrate {
			if err := storage.Migrate(cfg.Storage.DSN); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("parsing db config: %w", err)
		}
		poolCfg.MaxConns = cfg.Storage.MaxConns
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("creating db pool: %w", err)
		}
		defer pool.Close()

		readiness["database"] = pool.Ping
		marketplaceRepo = postgres.NewMarketplaceStore(pool, tracer)
		progressRepo = postgres.NewJobProgressStore(pool, tracer)

	default:
		store := memstore.NewStore()
		marketplaceRepo = store
		progressRepo = store
	}

	// -------------------------------------------------------------------------
	// Initialize Event Bus
	log.Info(ctx, "startup", "status", "initializing event bus", "driver", cfg.EventBus.Driver)

	bus, err := connectEventBus(cfg.EventBus, log, telemetry.MeterProvider, tracer)
	if err != nil {
		return fmt.Errorf("connecting event bus: %w", err)
	}
	defer bus.Close()

	publisher := eventbus.NewDomainEventPublisher(bus)

	recorder, err := activity.NewRecorder(log, telemetry.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating activity recorder: %w", err)
	}

	dispatcher := eventdispatcher.New(tracer, log)
	if err := dispatcher.RegisterHandler(ctx, recorder); err != nil {
		return fmt.Errorf("registering activity recorder: %w", err)
	}
	if err := bus.Subscribe(ctx, dispatcher.EventTypes(), dispatcher.Dispatch); err != nil {
		return fmt.Errorf("subscribing to lifecycle events: %w", err)
	}

	// -------------------------------------------------------------------------
	// Payments
	gateway := payment.NewGatewayProcessor(payment.GatewayConfig{
		SuccessRate: cfg.Payment.Gateway.SuccessRate,
		Latency:     cfg.Payment.Gateway.Latency,
		RPS:         cfg.Payment.Gateway.RPS,
		Burst:       cfg.Payment.Gateway.Burst,
	}, log, tracer)

	var processor progress.PaymentProcessor = payment.NewSimulatedProcessor(cfg.Payment.SimulatedDelay, tracer)
	if cfg.Payment.Processor == config.ProcessorGateway {
		processor = gateway
	}

	settler := progressapp.NewSettler(processor, progressapp.SettlerConfig{
		MaxRetries:      cfg.Payment.Retry.MaxRetries,
		InitialInterval: cfg.Payment.Retry.InitialInterval,
		MaxInterval:     cfg.Payment.Retry.MaxInterval,
		Timeout:         cfg.Payment.Retry.Timeout,
	}, progressMetrics, log, tracer)
	defer settler.Close()

	// -------------------------------------------------------------------------
	// Application services
	marketplaceSvc := marketplaceapp.NewService(marketplaceRepo, publisher, log, tracer)
	progressSvc := progressapp.NewService(progressRepo, publisher, settler, progressMetrics, log, tracer)

	resumed, err := progressSvc.ResumeSettlements(ctx)
	if err != nil {
		return fmt.Errorf("resuming settlements: %w", err)
	}
	log.Info(ctx, "startup", "status", "settlements resumed", "count", resumed)

	// -------------------------------------------------------------------------
	// Start Debug Service
	debugMux, err := debug.Mux()
	if err != nil {
		return fmt.Errorf("creating debug mux: %w", err)
	}

	go func() {
		log.Info(ctx, "startup", "status", "debug router started", "host", cfg.HTTP.DebugAddr)

		if err := http.ListenAndServe(cfg.HTTP.DebugAddr, debugMux); err != nil {
			log.Error(ctx, "shutdown", "status", "debug router closed", "host", cfg.HTTP.DebugAddr, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start API Service
	log.Info(ctx, "startup", "status", "initializing API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	webAPI := mux.WebAPI(mux.Config{
		Build:           build,
		Log:             log,
		Tracer:          tracer,
		Metrics:         apiMetrics,
		Marketplace:     marketplaceSvc,
		Progress:        progressSvc,
		Checkout:        gateway,
		ReadinessChecks: readiness,
	}, routes.Routes(), mux.WithCORS(cfg.HTTP.CORSOrigins))

	srv := http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      webAPI,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "startup", "status", "api router started", "host", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func connectEventBus(
	cfg config.EventBus,
	log *logger.Logger,
	mp metric.MeterProvider,
	tracer trace.Tracer,
) (events.EventBus, error) {
	switch cfg.Driver {
	case config.BusKafka:
		metrics, err := kafka.NewMetrics(mp)
		if err != nil {
			return nil, fmt.Errorf("creating kafka metrics: %w", err)
		}
		return kafka.ConnectEventBus(&kafka.Config{
			Brokers:                cfg.Kafka.Brokers,
			JobEventsTopic:         cfg.Kafka.JobEventsTopic,
			MarketplaceEventsTopic: cfg.Kafka.MarketplaceEventsTopic,
			GroupID:                cfg.Kafka.GroupID,
			ClientID:               cfg.Kafka.ClientID,
		}, log, metrics, tracer)

	case config.BusNATS:
		return natsbus.Connect(natsbus.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			QueueGroup:    cfg.NATS.QueueGroup,
			ClientName:    serviceType,
		}, log, tracer)

	default:
		return memory.NewEventBus(log, tracer), nil
	}
}
