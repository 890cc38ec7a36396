// Package payments binds the standalone checkout page. Checkouts run against
// the mock gateway and never touch a job's lifecycle.
package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/workielk/workie/internal/api/errs"
	"github.com/workielk/workie/internal/app/payment"
	"github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Checkouter runs a one-off card charge.
type Checkouter interface {
	Checkout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutResult, error)
}

// Config contains the dependencies needed by the payment handlers.
type Config struct {
	Log     *logger.Logger
	Gateway Checkouter
}

// Routes binds all the payment endpoints.
func Routes(app *web.App, cfg Config) {
	app.HandlerFunc(http.MethodPost, "v1", "/payments/checkout", checkout(cfg))
}

type checkoutRequest struct {
	Amount     int64  `json:"amount" validate:"required,min=1"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
	CardHolder string `json:"card_holder" validate:"required"`
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	Expiry     string `json:"expiry" validate:"required"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

type checkoutResponse struct {
	TransactionID string            `json:"transaction_id"`
	Approved      bool              `json:"approved"`
	Message       string            `json:"message"`
	Receipt       *progress.Receipt `json:"receipt,omitempty"`
}

// Encode implements the web.Encoder interface.
func (c checkoutResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(c)
	return data, "application/json", err
}

func checkout(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.FromDomain(err)
		}

		currency := strings.ToUpper(req.Currency)
		if currency == "" {
			currency = progress.DefaultCurrency
		}

		res, err := cfg.Gateway.Checkout(ctx, payment.CheckoutRequest{
			Amount:     req.Amount,
			Currency:   currency,
			CardHolder: req.CardHolder,
			CardLast4:  req.CardNumber[len(req.CardNumber)-4:],
		})
		if err != nil {
			if payment.IsTemporary(err) {
				return errs.New(errs.Unavailable, err)
			}
			return errs.FromDomain(err)
		}

		resp := checkoutResponse{
			TransactionID: res.TransactionID,
			Approved:      res.Approved,
			Message:       res.Message,
		}
		if res.Approved {
			resp.Receipt = &res.Receipt
		}
		return resp
	}
}
