package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/workielk/workie/internal/api/errs"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build string
	Log   *logger.Logger
	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]Checker
}

// Routes binds all the health check endpoints.
func Routes(app *web.App, cfg Config) {
	app.HandlerFuncNoMid(http.MethodGet, "", "/v1/health", check(cfg))
	app.HandlerFuncNoMid(http.MethodGet, "", "/v1/readiness", readiness(cfg))
}

// healthResponse represents the response for health check.
type healthResponse struct {
	Status string `json:"status"`
	Build  string `json:"build"`
}

// Encode implements the web.Encoder interface.
func (hr healthResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(hr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// readyResponse represents the response for readiness check.
type readyResponse struct {
	Status string `json:"status"`
}

// Encode implements the web.Encoder interface.
func (rr readyResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(rr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func check(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		return healthResponse{
			Status: "ok",
			Build:  cfg.Build,
		}
	}
}

const readinessTimeout = 2 * time.Second

func readiness(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()

		for name, chk := range cfg.Checks {
			if err := chk(ctx); err != nil {
				cfg.Log.Warn(ctx, "readiness check failed", "dependency", name, "error", err)
				return errs.Newf(errs.Unavailable, "%s not ready", name)
			}
		}

		return readyResponse{
			Status: "ready",
		}
	}
}
