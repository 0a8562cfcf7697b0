// Package query turns loosely typed query and body input into bounded,
// canonical descriptions the repositories can consume.
package query

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"apicore/internal/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 100
)

// Paginate normalizes raw page/limit/sortBy/sortOrder. It never fails.
func Paginate(raw map[string]any) domain.PaginationQuery {
	page := DefaultPage
	if n, ok := toNumber(raw["page"]); ok {
		page = int(math.Floor(n))
	}
	if page < 1 {
		page = 1
	}

	limit := DefaultLimit
	if n, ok := toNumber(raw["limit"]); ok {
		limit = int(math.Floor(n))
	}
	limit = min(MaxLimit, max(MinLimit, limit))

	return domain.PaginationQuery{
		Page:      page,
		Limit:     limit,
		Skip:      (page - 1) * limit,
		Take:      limit,
		SortBy:    strings.TrimSpace(toString(raw["sortBy"])),
		SortOrder: normalizeSortOrder(raw["sortOrder"]),
	}
}

// PaginateValues is Paginate over url query values.
func PaginateValues(v url.Values) domain.PaginationQuery {
	return Paginate(Flatten(v))
}

// Flatten keeps the first value of every key.
func Flatten(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

func normalizeSortOrder(v any) domain.SortOrder {
	switch domain.SortOrder(strings.ToLower(strings.TrimSpace(toString(v)))) {
	case domain.SortAsc:
		return domain.SortAsc
	default:
		return domain.SortDesc
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	case []string:
		if len(x) == 0 {
			return 0, false
		}
		return toNumber(x[0])
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// keep the int conversion in range
	return math.Max(math.Min(f, math.MaxInt32), math.MinInt32), true
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		if len(x) == 0 {
			return ""
		}
		return x[0]
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
