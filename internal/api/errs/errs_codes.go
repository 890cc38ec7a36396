package errs

import "net/http"

// The set of error codes handlers can return.
var (
	OK                 = ErrCode{value: 0}
	Canceled           = ErrCode{value: 1}
	InvalidArgument    = ErrCode{value: 3}
	NotFound           = ErrCode{value: 5}
	AlreadyExists      = ErrCode{value: 6}
	PermissionDenied   = ErrCode{value: 7}
	FailedPrecondition = ErrCode{value: 9}
	Aborted            = ErrCode{value: 10}
	Internal           = ErrCode{value: 13}
	Unavailable        = ErrCode{value: 14}
	Unauthenticated    = ErrCode{value: 16}
	InvalidTransition  = ErrCode{value: 17}
)

var codeNames = map[ErrCode]string{
	OK:                 "ok",
	Canceled:           "canceled",
	InvalidArgument:    "invalid_argument",
	NotFound:           "not_found",
	AlreadyExists:      "already_exists",
	PermissionDenied:   "permission_denied",
	FailedPrecondition: "failed_precondition",
	Aborted:            "aborted",
	Internal:           "internal",
	Unavailable:        "unavailable",
	Unauthenticated:    "unauthenticated",
	InvalidTransition:  "invalid_transition",
}

var codeNumbers = func() map[string]ErrCode {
	m := make(map[string]ErrCode, len(codeNames))
	for code, name := range codeNames {
		m[name] = code
	}
	return m
}()

var httpStatus = map[ErrCode]int{
	OK:                 http.StatusOK,
	Canceled:           http.StatusGatewayTimeout,
	InvalidArgument:    http.StatusBadRequest,
	NotFound:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	PermissionDenied:   http.StatusForbidden,
	FailedPrecondition: http.StatusBadRequest,
	Aborted:            http.StatusConflict,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
	Unauthenticated:    http.StatusUnauthorized,
	InvalidTransition:  http.StatusUnprocessableEntity,
}
