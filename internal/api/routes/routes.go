package routes

import (
	"github.com/workielk/workie/internal/api/mux"
	"github.com/workielk/workie/internal/api/routes/health"
	"github.com/workielk/workie/internal/api/routes/jobs"
	"github.com/workielk/workie/internal/api/routes/payments"
	"github.com/workielk/workie/internal/api/routes/progress"
	"github.com/workielk/workie/pkg/web"
)

// Routes constructs an add value which provides the implementation of
// RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouteAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	checks := make(map[string]health.Checker, len(cfg.ReadinessChecks))
	for name, chk := range cfg.ReadinessChecks {
		checks[name] = chk
	}

	health.Routes(app, health.Config{
		Build:  cfg.Build,
		Log:    cfg.Log,
		Checks: checks,
	})

	jobs.Routes(app, jobs.Config{
		Log:     cfg.Log,
		Service: cfg.Marketplace,
	})

	progress.Routes(app, progress.Config{
		Log:     cfg.Log,
		Service: cfg.Progress,
	})

	if cfg.Checkout != nil {
		payments.Routes(app, payments.Config{
			Log:     cfg.Log,
			Gateway: cfg.Checkout,
		})
	}
}
