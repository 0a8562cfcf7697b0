package query

import (
	"net/url"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"apicore/internal/domain"
)

var (
	searchDenylist = regexp.MustCompile(`[<>"'%;()&+]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	filterKey      = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// SearchNormalizer validates and sanitizes search, sortBy and filters on top
// of the regular pagination fields.
type SearchNormalizer struct {
	MinLength         int
	MaxLength         int
	AllowedSortFields []string
	// KeepRaw disables denylist stripping of the search term.
	KeepRaw bool
}

// DefaultSearch accepts search terms of 1 to 100 characters.
func DefaultSearch() SearchNormalizer {
	return SearchNormalizer{MinLength: 1, MaxLength: 100}
}

// Normalize builds SearchOptions from raw input. Search length and sortBy are
// validated, not clamped.
func (n SearchNormalizer) Normalize(raw map[string]any) (domain.SearchOptions, error) {
	minLen, maxLen := n.MinLength, n.MaxLength
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen <= 0 {
		maxLen = 100
	}

	out := domain.SearchOptions{PaginationQuery: Paginate(raw)}

	if v, ok := raw["search"]; ok && v != nil {
		search := strings.TrimSpace(toString(v))
		length := utf8.RuneCountInString(search)
		if length < minLen {
			return out, domain.BadRequest(domain.CodeValidationFailed,
				"Search term must be at least "+itoa(minLen)+" characters",
				map[string]any{"parameter": "search", "minLength": minLen, "actualLength": length})
		}
		if length > maxLen {
			return out, domain.BadRequest(domain.CodeValidationFailed,
				"Search term must be at most "+itoa(maxLen)+" characters",
				map[string]any{"parameter": "search", "maxLength": maxLen, "actualLength": length})
		}
		if !n.KeepRaw {
			search = SanitizeSearch(search)
		}
		out.Search = search
	}

	if out.SortBy != "" && n.AllowedSortFields != nil && !slices.Contains(n.AllowedSortFields, out.SortBy) {
		return out, domain.BadRequest(domain.CodeValidationFailed,
			"Invalid sort field. Allowed fields: "+strings.Join(n.AllowedSortFields, ", "),
			map[string]any{"parameter": "sortBy", "value": out.SortBy, "allowedFields": n.AllowedSortFields})
	}

	if f, ok := raw["filters"].(map[string]any); ok {
		out.Filters = SanitizeFilters(f)
	}
	return out, nil
}

// NormalizeValues reads url query values, collecting filters[key] and
// filter[key] entries into the filters map.
func (n SearchNormalizer) NormalizeValues(v url.Values) (domain.SearchOptions, error) {
	raw := Flatten(v)
	filters := map[string]any{}
	for k, vals := range v {
		key, ok := bracketKey(k)
		if !ok {
			continue
		}
		delete(raw, k)
		if len(vals) == 1 {
			filters[key] = vals[0]
		} else {
			filters[key] = vals
		}
	}
	if len(filters) > 0 {
		raw["filters"] = filters
	}
	return n.Normalize(raw)
}

// SanitizeSearch strips denylisted characters and collapses whitespace.
func SanitizeSearch(s string) string {
	s = searchDenylist.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeFilters drops unsafe keys and empty values. Keys are never
// rewritten: a key with any character outside [a-zA-Z0-9_] is removed.
func SanitizeFilters(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters))
	for key, value := range filters {
		if !filterKey.MatchString(key) || isEmptyFilterValue(value) {
			continue
		}
		switch v := value.(type) {
		case string:
			out[key] = strings.TrimSpace(v)
		case []string:
			kept := make([]string, 0, len(v))
			for _, s := range v {
				if s != "" {
					kept = append(kept, s)
				}
			}
			out[key] = kept
		case []any:
			kept := make([]any, 0, len(v))
			for _, item := range v {
				if !isEmptyFilterValue(item) {
					kept = append(kept, item)
				}
			}
			out[key] = kept
		default:
			out[key] = value
		}
	}
	return out
}

func isEmptyFilterValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func bracketKey(k string) (string, bool) {
	for _, prefix := range []string{"filters[", "filter["} {
		if strings.HasPrefix(k, prefix) && strings.HasSuffix(k, "]") {
			return k[len(prefix) : len(k)-1], true
		}
	}
	return "", false
}

func itoa(n int) string { return toString(n) }
