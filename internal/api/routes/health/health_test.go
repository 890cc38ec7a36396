package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

func newApp(checks map[string]Checker) *web.App {
	app := web.NewApp(func(context.Context, string, ...any) {}, noop.NewTracerProvider().Tracer("test"))
	Routes(app, Config{Build: "test", Log: logger.Noop(), Checks: checks})
	return app
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newApp(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","build":"test"}`, rec.Body.String())
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	app := newApp(map[string]Checker{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database not ready")
}

func TestReadinessReady(t *testing.T) {
	app := newApp(map[string]Checker{"database": func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
