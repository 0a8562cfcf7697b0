// Package failure maps any error escaping a handler to a status, a stable
// error code, a message and a details object.
package failure

import (
	"net/http"

	"apicore/internal/domain"
)

// Kind names the filter family that owns an error.
type Kind int

const (
	KindUnclassified Kind = iota
	KindValidation
	KindStore
	KindHTTPStatus
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	case KindHTTPStatus:
		return "http_status"
	default:
		return "unclassified"
	}
}

// Outcome is the resolved, transport-ready description of a failure.
type Outcome struct {
	Kind    Kind
	Status  int
	Code    domain.ErrorCode
	Message string
	Details map[string]any
	// Stack is filled for every failure outside production.
	Stack string
}

type rule struct {
	kind    Kind
	matches func(error) bool
	resolve func(error) Outcome
}

// rules is evaluated top to bottom; the last entry matches everything.
var rules = []rule{
	{KindValidation, isValidationFailure, resolveValidation},
	{KindStore, isStoreFailure, resolveStore},
	{KindHTTPStatus, isHTTPFailure, resolveHTTP},
	{KindUnclassified, func(error) bool { return true }, resolveUnclassified},
}

// Classify returns the family of the first rule matching err.
func Classify(err error) Kind {
	return match(err).kind
}

func match(err error) rule {
	for _, r := range rules {
		if r.matches(err) {
			return r
		}
	}
	return rules[len(rules)-1]
}

// Resolver turns errors into Outcomes.
type Resolver struct {
	Production bool
}

// Resolve classifies err and builds its Outcome. A nil error resolves to a
// generic internal failure.
func (r Resolver) Resolve(err error) Outcome {
	if err == nil {
		return Outcome{
			Kind:    KindUnclassified,
			Status:  http.StatusInternalServerError,
			Code:    domain.CodeInternal,
			Message: "An unexpected error occurred",
			Details: map[string]any{},
		}
	}

	m := match(err)
	out := m.resolve(err)
	out.Kind = m.kind
	if out.Details == nil {
		out.Details = map[string]any{}
	}
	if r.Production {
		return out
	}
	if m.kind == KindUnclassified {
		out.Details["originalError"] = originalError(err)
	}
	out.Stack = stackOf(err)
	return out
}
