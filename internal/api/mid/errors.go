package mid

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/workielk/workie/internal/api/errs"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Errors handles errors coming out of the call chain. Anything that is not
// already an errs.Error is logged and replaced with an opaque internal error.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err, isError := resp.(error)
			if !isError {
				return resp
			}

			var appErr *errs.Error
			if !errors.As(err, &appErr) {
				appErr = errs.Newf(errs.Internal, "internal server error")
			}

			log.Error(ctx, "handled error during request",
				"err", err,
				"source_err_file", path.Base(appErr.FileName),
				"source_err_func", path.Base(appErr.FuncName))

			// Internal details never reach the client.
			if appErr.Code == errs.Internal {
				appErr.Message = "internal server error"
			}

			return appErr
		}

		return h
	}

	return m
}
