package failure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"apicore/internal/domain"
)

func resolveUnclassified(err error) Outcome {
	out := Outcome{
		Status:  http.StatusInternalServerError,
		Code:    domain.CodeInternal,
		Message: "An unexpected error occurred",
		Details: map[string]any{},
	}

	var (
		pe      domain.PanicError
		syntax  *json.SyntaxError
		numErr  *strconv.NumError
		typeErr *json.UnmarshalTypeError
		timeErr *time.ParseError
		dnsErr  *net.DNSError
	)
	switch {
	case errors.As(err, &pe) && pe.Unwrap() == nil:
		out.Details["value"] = fmt.Sprint(pe.Value)
	case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationFailed
		out.Message = "Validation failed"
		out.Details["validationErrors"] = err.Error()
	case errors.As(err, &typeErr):
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationInvalidFormat
		out.Message = "Invalid data format"
		out.Details["field"] = typeErr.Field
	case errors.As(err, &numErr):
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationInvalidFormat
		out.Message = "Invalid data format"
		out.Details["field"] = numErr.Num
	case errors.As(err, &timeErr):
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationInvalidFormat
		out.Message = "Invalid data format"
		out.Details["field"] = timeErr.Value
	case errors.Is(err, sql.ErrTxDone):
		out.Code = domain.CodeDatabaseTransactionFailed
		out.Message = "Database error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		out.Status, out.Code = http.StatusRequestTimeout, domain.CodeRequestTimeout
		out.Message = "Request timed out"
	case errors.Is(err, syscall.ECONNREFUSED):
		out.Status, out.Code = http.StatusServiceUnavailable, domain.CodeServiceUnavailable
		out.Message = "External service unavailable"
	case errors.As(err, &dnsErr):
		out.Status, out.Code = http.StatusServiceUnavailable, domain.CodeServiceUnavailable
		out.Message = "Service endpoint not found"
	}
	return out
}

type stackTracer interface {
	StackTrace() string
}

// stackOf prefers the stack the error captured where it was raised and
// falls back to the current goroutine.
func stackOf(err error) string {
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return string(debug.Stack())
}

func originalError(err error) map[string]any {
	orig := map[string]any{
		"name":    fmt.Sprintf("%T", err),
		"message": err.Error(),
	}
	var st stackTracer
	if errors.As(err, &st) {
		orig["stack"] = st.StackTrace()
	}
	return orig
}
