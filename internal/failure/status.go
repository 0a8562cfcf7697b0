package failure

import (
	"errors"
	"maps"
	"net/http"

	"apicore/internal/domain"
)

var statusCodes = map[int]domain.ErrorCode{
	http.StatusBadRequest:          domain.CodeValidationFailed,
	http.StatusUnauthorized:        domain.CodeAuthTokenInvalid,
	http.StatusForbidden:           domain.CodeAuthInsufficientPermissions,
	http.StatusNotFound:            domain.CodeResourceNotFound,
	http.StatusRequestTimeout:      domain.CodeRequestTimeout,
	http.StatusConflict:            domain.CodeResourceAlreadyExists,
	http.StatusTooManyRequests:     domain.CodeRateLimitExceeded,
	http.StatusServiceUnavailable:  domain.CodeServiceUnavailable,
	http.StatusInternalServerError: domain.CodeInternal,
}

// CodeForStatus maps an HTTP status to the default error code.
func CodeForStatus(status int) domain.ErrorCode {
	if c, ok := statusCodes[status]; ok {
		return c
	}
	return domain.CodeInternal
}

func isHTTPFailure(err error) bool {
	var h domain.HTTPError
	return errors.As(err, &h)
}

func resolveHTTP(err error) Outcome {
	var h domain.HTTPError
	errors.As(err, &h)

	status := h.Status
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	code := h.Code
	if code == "" {
		code = CodeForStatus(status)
	}
	msg := h.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return Outcome{
		Status:  status,
		Code:    code,
		Message: msg,
		Details: maps.Clone(h.Details),
	}
}
