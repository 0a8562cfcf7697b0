// Package validation checks decoded request bodies and reports failures as
// per-field messages of the form "<field> <constraint text>".
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"apicore/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Engine returns the shared validator. Field names come from json tags.
func Engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates s and returns a domain.ValidationError listing every
// failed constraint, or nil.
func Struct(s any) error {
	err := Engine().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return domain.ValidationError{Messages: Messages(ve), Err: err}
	}
	return err
}

// Bind decodes a JSON body into dst and validates it. Decode failures are
// returned as-is.
func Bind(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return err
	}
	return Struct(dst)
}

// Messages renders validator failures as constraint sentences.
func Messages(ve validator.ValidationErrors) []string {
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if", "required_with", "required_without":
		return field + " should not be empty"
	case "email":
		return field + " must be an email"
	case "uuid", "uuid4", "uuid_rfc4122", "uuid4_rfc4122":
		return field + " must be a UUID"
	case "number", "numeric":
		return field + " must be a number conforming to the specified constraints"
	case "boolean":
		return field + " must be a boolean value"
	case "datetime":
		return field + " must be a valid ISO 8601 date string"
	case "alpha", "alphanum", "ascii":
		return field + " must be a string"
	case "oneof":
		return field + " must be one of the following values: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be longer than or equal to %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be shorter than or equal to %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must not be greater than %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be equal to %s characters", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s exactly", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}
