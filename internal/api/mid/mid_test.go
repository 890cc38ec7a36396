package mid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/api/errs"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

type recordingMetrics struct {
	mu         sync.Mutex
	statuses   []int
	routes     []string
	errorCodes []string
}

func (m *recordingMetrics) IncRequestsTotal(_ context.Context, _, path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	m.routes = append(m.routes, path)
}

func (m *recordingMetrics) ObserveRequestDuration(context.Context, string, string, time.Duration) {}

func (m *recordingMetrics) IncErrorResponses(_ context.Context, _, _, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCodes = append(m.errorCodes, code)
}

func newApp(metrics RequestMetrics) *web.App {
	log := logger.Noop()
	tracer := noop.NewTracerProvider().Tracer("test")
	return web.NewApp(
		func(context.Context, string, ...any) {},
		tracer,
		Otel(tracer),
		Logger(log),
		Errors(log),
		Metrics(metrics),
		Panics(),
	)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.Error {
	t.Helper()
	var e errs.Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestErrorsPassesAppErrorsThrough(t *testing.T) {
	metrics := new(recordingMetrics)
	app := newApp(metrics)
	app.HandlerFunc(http.MethodGet, "", "/things/{id}", func(context.Context, *http.Request) web.Encoder {
		return errs.Newf(errs.NotFound, "thing not found")
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, errs.NotFound, got.Code)
	assert.Equal(t, "thing not found", got.Message)
	assert.Equal(t, []int{http.StatusNotFound}, metrics.statuses)
	assert.Equal(t, []string{"/things/{id}"}, metrics.routes)
	assert.Equal(t, []string{"not_found"}, metrics.errorCodes)
}

func TestMetricsSkipsErrorCountForSuccess(t *testing.T) {
	metrics := new(recordingMetrics)
	app := newApp(metrics)
	app.HandlerFunc(http.MethodGet, "", "/ok", func(context.Context, *http.Request) web.Encoder {
		return nil
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Len(t, metrics.statuses, 1)
	assert.Empty(t, metrics.errorCodes)
}

func TestErrorsHidesUnknownErrors(t *testing.T) {
	app := newApp(new(recordingMetrics))
	app.HandlerFunc(http.MethodGet, "", "/boom", func(context.Context, *http.Request) web.Encoder {
		return errs.New(errs.Internal, errors.New("db password leaked"))
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Message)
}

func TestPanicsRecovers(t *testing.T) {
	metrics := new(recordingMetrics)
	app := newApp(metrics)
	app.HandlerFunc(http.MethodGet, "", "/panic", func(context.Context, *http.Request) web.Encoder {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Message)
	assert.Equal(t, []int{http.StatusInternalServerError}, metrics.statuses)
	assert.Equal(t, []string{"internal"}, metrics.errorCodes)
}
