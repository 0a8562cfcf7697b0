package failure

import (
	"errors"
	"net/http"
	"strings"

	"apicore/internal/domain"
	"apicore/internal/validation"

	"github.com/go-playground/validator/v10"
)

// FieldViolation is one parsed constraint message.
type FieldViolation struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Constraint string `json:"constraint"`
}

func validationMessages(err error) ([]string, bool) {
	var ve domain.ValidationError
	if errors.As(err, &ve) && len(ve.Messages) > 0 {
		return ve.Messages, true
	}
	var raw validator.ValidationErrors
	if errors.As(err, &raw) && len(raw) > 0 {
		return validation.Messages(raw), true
	}
	return nil, false
}

func isValidationFailure(err error) bool {
	_, ok := validationMessages(err)
	return ok
}

func resolveValidation(err error) Outcome {
	msgs, _ := validationMessages(err)
	violations := ParseViolations(msgs)
	return Outcome{
		Status:  http.StatusBadRequest,
		Code:    domain.CodeValidationFailed,
		Message: "Validation failed for the provided data",
		Details: map[string]any{
			"validationErrors": violations,
			"fields":           fieldNames(violations),
		},
	}
}

// ParseViolations reads "field constraint text" messages. The field is the
// first word of the message.
func ParseViolations(msgs []string) []FieldViolation {
	out := make([]FieldViolation, 0, len(msgs))
	for _, m := range msgs {
		field, _, _ := strings.Cut(m, " ")
		out = append(out, FieldViolation{Field: field, Message: m, Constraint: InferConstraint(m)})
	}
	return out
}

// InferConstraint guesses the constraint name from message wording. The
// leading field name is skipped; type keywords are matched
// case-insensitively.
func InferConstraint(msg string) string {
	if _, rest, ok := strings.Cut(msg, " "); ok {
		msg = rest
	}
	lower := strings.ToLower(msg)
	if strings.HasPrefix(msg, "must be a") {
		switch {
		case strings.Contains(lower, "email"):
			return "isEmail"
		case strings.Contains(lower, "date"):
			return "isDate"
		case strings.Contains(lower, "string"):
			return "isString"
		case strings.Contains(lower, "number"):
			return "isNumber"
		case strings.Contains(lower, "boolean"):
			return "isBoolean"
		case strings.Contains(lower, "uuid"):
			return "isUuid"
		}
	}
	switch {
	case strings.Contains(msg, "should not be empty"):
		return "isNotEmpty"
	case strings.Contains(msg, "must be longer than"):
		return "minLength"
	case strings.Contains(msg, "must be shorter than"):
		return "maxLength"
	case strings.Contains(msg, "must match"):
		return "matches"
	}
	return "validation"
}

func fieldNames(vs []FieldViolation) []string {
	seen := make(map[string]bool, len(vs))
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if seen[v.Field] {
			continue
		}
		seen[v.Field] = true
		out = append(out, v.Field)
	}
	return out
}
