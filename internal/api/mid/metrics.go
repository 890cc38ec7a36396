package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/workielk/workie/internal/api/errs"
	"github.com/workielk/workie/pkg/web"
)

// RequestMetrics is the subset of the API metrics the middleware records.
type RequestMetrics interface {
	IncRequestsTotal(ctx context.Context, method, path string, status int)
	ObserveRequestDuration(ctx context.Context, method, path string, duration time.Duration)
	IncErrorResponses(ctx context.Context, method, path, code string)
}

// Metrics records request counts and latency keyed by route pattern.
func Metrics(metrics RequestMetrics) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			start := time.Now()

			resp := next(ctx, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			metrics.IncRequestsTotal(ctx, r.Method, route, web.StatusCode(resp))
			metrics.ObserveRequestDuration(ctx, r.Method, route, time.Since(start))
			if appErr, ok := resp.(*errs.Error); ok {
				metrics.IncErrorResponses(ctx, r.Method, route, appErr.Code.String())
			}

			return resp
		}

		return h
	}

	return m
}
