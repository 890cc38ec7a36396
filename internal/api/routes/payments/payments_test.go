package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/workielk/workie/internal/api/mid"
	"github.com/workielk/workie/internal/app/payment"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

func newApp(successRate float64) http.Handler {
	log := logger.Noop()
	tracer := noop.NewTracerProvider().Tracer("test")
	gw := payment.NewGatewayProcessor(payment.GatewayConfig{SuccessRate: successRate}, log, tracer)

	app := web.NewApp(func(context.Context, string, ...any) {}, tracer, mid.Errors(log))
	Routes(app, Config{Log: log, Gateway: gw})
	return app
}

const validCard = `{"amount":5000,"card_holder":"N. Perera","card_number":"4111111111111111","expiry":"12/29","cvv":"123"}`

func post(app http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payments/checkout", strings.NewReader(body)))
	return rec
}

func TestCheckoutApproved(t *testing.T) {
	rec := post(newApp(1), validCard)
	require.Equal(t, http.StatusOK, rec.Code)

	var got checkoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Approved)
	assert.NotEmpty(t, got.TransactionID)
	require.NotNil(t, got.Receipt)
	assert.Equal(t, int64(5000), got.Receipt.Amount)
	assert.Equal(t, "LKR", got.Receipt.Currency)
}

func TestCheckoutDeclinedIsNotAnError(t *testing.T) {
	rec := post(newApp(0), validCard)
	require.Equal(t, http.StatusOK, rec.Code)

	var got checkoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.False(t, got.Approved)
	assert.Nil(t, got.Receipt)
	assert.Equal(t, "payment failed, please try again", got.Message)
}

func TestCheckoutValidatesCard(t *testing.T) {
	rec := post(newApp(1), `{"amount":5000,"card_holder":"x","card_number":"4111-1111","expiry":"12/29","cvv":"12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "card_number")
	assert.Contains(t, rec.Body.String(), "cvv")
}
