package query

import (
	"fmt"
	"strconv"
	"strings"

	"apicore/internal/domain"

	"github.com/google/uuid"
)

// IntRule bounds an integer parameter. Nil Min/Max mean unbounded.
type IntRule struct {
	Min      *int
	Max      *int
	Optional bool
	Default  int
}

func bound(n int) *int { return &n }

var (
	PositiveInt = IntRule{Min: bound(1)}
	PageParam   = IntRule{Min: bound(1), Optional: true, Default: DefaultPage}
	LimitParam  = IntRule{Min: bound(MinLimit), Max: bound(MaxLimit), Optional: true, Default: DefaultLimit}
)

// ParseInt parses a named integer parameter. Unlike Paginate it rejects
// out-of-range values instead of clamping them.
func ParseInt(name, value string, rule IntRule) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if rule.Optional {
			return rule.Default, nil
		}
		return 0, domain.BadRequest(domain.CodeValidationFailed, name+" is required",
			map[string]any{"parameter": name, "type": "number"})
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.BadRequest(domain.CodeValidationInvalidFormat, name+" must be a valid integer",
			map[string]any{"parameter": name, "value": value, "expectedType": "integer"})
	}
	if rule.Min != nil && n < *rule.Min {
		return 0, domain.BadRequest(domain.CodeValidationFailed, fmt.Sprintf("%s must be at least %d", name, *rule.Min),
			map[string]any{"parameter": name, "value": n, "min": *rule.Min})
	}
	if rule.Max != nil && n > *rule.Max {
		return 0, domain.BadRequest(domain.CodeValidationFailed, fmt.Sprintf("%s must be at most %d", name, *rule.Max),
			map[string]any{"parameter": name, "value": n, "max": *rule.Max})
	}
	return n, nil
}

// ParseUUID validates a uuid parameter. version 0 accepts any version.
func ParseUUID(name, value string, version int, optional bool) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if optional {
			return "", nil
		}
		return "", domain.BadRequest(domain.CodeValidationFailed, name+" is required",
			map[string]any{"parameter": name, "expectedType": "uuid"})
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return "", domain.BadRequest(domain.CodeValidationInvalidFormat, name+" must be a valid UUID",
			map[string]any{"parameter": name, "value": value, "expectedFormat": "UUID"})
	}
	if version > 0 && int(id.Version()) != version {
		return "", domain.BadRequest(domain.CodeValidationInvalidFormat, fmt.Sprintf("%s must be a valid UUID v%d", name, version),
			map[string]any{"parameter": name, "value": value, "expectedVersion": version, "actualVersion": int(id.Version())})
	}
	return id.String(), nil
}

// TrimOptions controls Trim.
type TrimOptions struct {
	Recursive bool
	// EmptyToNil replaces strings that trim to "" with EmptyValue.
	EmptyToNil bool
	EmptyValue any
}

// Trim trims strings, descending into maps and slices when Recursive is set.
func Trim(value any, opts TrimOptions) any {
	switch v := value.(type) {
	case string:
		t := strings.TrimSpace(v)
		if opts.EmptyToNil && t == "" {
			return opts.EmptyValue
		}
		return t
	case map[string]any:
		if !opts.Recursive {
			return v
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Trim(item, opts)
		}
		return out
	case []any:
		if !opts.Recursive {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Trim(item, opts)
		}
		return out
	default:
		return value
	}
}
