package middleware

import (
	"context"
	"net/http"

	"apicore/internal/http/response"
)

// Shape wraps handler results in the success envelope.
func Shape() Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			out, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			return ShapeResult(out, req.Context.Method, req.Context.Path), nil
		}
	}
}

// ShapeResult passes envelopes and files through untouched, wraps paginated
// results without altering their data/meta structure and wraps anything else
// as data.
func ShapeResult(v any, method, path string) any {
	if isFile(v) || IsEnvelope(v) {
		return v
	}
	return response.OK(v, SuccessMessage(method), path)
}

func isFile(v any) bool {
	_, ok := v.(response.File)
	return ok
}

// IsEnvelope reports whether v already has the success envelope shape.
func IsEnvelope(v any) bool {
	switch t := v.(type) {
	case response.Success, *response.Success:
		return true
	case map[string]any:
		_, s := t["success"]
		_, ts := t["timestamp"]
		_, p := t["path"]
		return s && ts && p
	}
	return false
}

// SuccessMessage is the default envelope message for method.
func SuccessMessage(method string) string {
	switch method {
	case http.MethodGet:
		return "Data retrieved successfully"
	case http.MethodPost:
		return "Resource created successfully"
	case http.MethodPut, http.MethodPatch:
		return "Resource updated successfully"
	case http.MethodDelete:
		return "Resource deleted successfully"
	default:
		return "Operation completed successfully"
	}
}
