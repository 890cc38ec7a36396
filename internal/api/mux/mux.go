package mux

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/workielk/workie/internal/api/mid"
	marketplaceapp "github.com/workielk/workie/internal/app/marketplace"
	"github.com/workielk/workie/internal/app/payment"
	progressapp "github.com/workielk/workie/internal/app/progress"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Options represent optional parameters.
type Options struct {
	corsOrigin []string
}

// WithCORS provides configuration options for CORS.
func WithCORS(origins []string) func(opts *Options) {
	return func(opts *Options) {
		opts.corsOrigin = origins
	}
}

// Checkouter runs the standalone checkout charge.
type Checkouter interface {
	Checkout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutResult, error)
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build   string
	Log     *logger.Logger
	Tracer  trace.Tracer
	Metrics mid.RequestMetrics

	Marketplace marketplaceapp.Service
	Progress    progressapp.JobProgressService
	// Checkout is optional; without it the checkout route is not bound.
	Checkout Checkouter

	// ReadinessChecks are probed by /v1/readiness.
	ReadinessChecks map[string]func(ctx context.Context) error
}

// RouteAdder defines behavior that sets the routes to bind for an instance
// of the service.
type RouteAdder interface {
	Add(app *web.App, cfg Config)
}

// WebAPI constructs a http.Handler with all application routes bound.
func WebAPI(cfg Config, routeAdder RouteAdder, options ...func(opts *Options)) http.Handler {
	logger := func(ctx context.Context, msg string, args ...any) {
		cfg.Log.Info(ctx, msg, args...)
	}

	mw := []web.MidFunc{
		mid.Otel(cfg.Tracer),
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
	}
	if cfg.Metrics != nil {
		mw = append(mw, mid.Metrics(cfg.Metrics))
	}
	mw = append(mw, mid.Panics())

	app := web.NewApp(logger, cfg.Tracer, mw...)

	var opts Options
	for _, option := range options {
		option(&opts)
	}

	if len(opts.corsOrigin) > 0 {
		app.EnableCORS(opts.corsOrigin)
	}

	routeAdder.Add(app, cfg)

	// otelhttp extracts the caller's trace context so handler spans join the
	// client's trace.
	return otelhttp.NewHandler(app, "workie-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/v1/health") && !strings.HasPrefix(r.URL.Path, "/v1/readiness")
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
