package query

import (
	"errors"
	"net/url"
	"testing"

	"apicore/internal/domain"
)

func TestPaginateClampsOutOfRangeValues(t *testing.T) {
	q := Paginate(map[string]any{"page": "0", "limit": "500"})
	if q.Page != 1 || q.Limit != 100 {
		t.Fatalf("expected page 1 limit 100, got page %d limit %d", q.Page, q.Limit)
	}
	if q.Skip != 0 || q.Take != 100 {
		t.Fatalf("expected skip 0 take 100, got skip %d take %d", q.Skip, q.Take)
	}
}

func TestPaginateDefaults(t *testing.T) {
	q := Paginate(nil)
	if q.Page != DefaultPage || q.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults %+v", q)
	}
	if q.SortOrder != domain.SortDesc {
		t.Fatalf("expected desc sort order, got %q", q.SortOrder)
	}
}

func TestPaginateSkipInvariant(t *testing.T) {
	cases := []map[string]any{
		{"page": 3, "limit": 10},
		{"page": "7.9", "limit": "0"},
		{"page": -4, "limit": -1},
		{"page": "abc", "limit": "abc"},
		{"page": 2.5, "limit": 250.0},
		{"page": "1e12", "limit": "15"},
	}
	for _, raw := range cases {
		q := Paginate(raw)
		if q.Page < 1 {
			t.Fatalf("%v: page below 1: %d", raw, q.Page)
		}
		if q.Limit < MinLimit || q.Limit > MaxLimit {
			t.Fatalf("%v: limit out of range: %d", raw, q.Limit)
		}
		if q.Skip != (q.Page-1)*q.Limit || q.Take != q.Limit {
			t.Fatalf("%v: skip/take mismatch %+v", raw, q)
		}
	}
}

func TestPaginateFloorsFractions(t *testing.T) {
	q := Paginate(map[string]any{"page": "2.9", "limit": "10.7"})
	if q.Page != 2 || q.Limit != 10 || q.Skip != 10 {
		t.Fatalf("unexpected %+v", q)
	}
}

func TestPaginateSortOrder(t *testing.T) {
	q := PaginateValues(url.Values{"sortOrder": {" ASC "}, "sortBy": {" name "}})
	if q.SortOrder != domain.SortAsc {
		t.Fatalf("expected asc, got %q", q.SortOrder)
	}
	if q.SortBy != "name" {
		t.Fatalf("expected trimmed sortBy, got %q", q.SortBy)
	}
	q = PaginateValues(url.Values{"sortOrder": {"sideways"}})
	if q.SortOrder != domain.SortDesc {
		t.Fatalf("expected desc fallback, got %q", q.SortOrder)
	}
}

func TestSearchLengthIsValidated(t *testing.T) {
	n := SearchNormalizer{MinLength: 3, MaxLength: 5}

	_, err := n.Normalize(map[string]any{"search": "ab"})
	var h domain.HTTPError
	if !errors.As(err, &h) || h.Status != 400 {
		t.Fatalf("expected 400 for short search, got %v", err)
	}
	if h.Details["minLength"] != 3 || h.Details["actualLength"] != 2 {
		t.Fatalf("unexpected details %v", h.Details)
	}

	_, err = n.Normalize(map[string]any{"search": "abcdef"})
	if !errors.As(err, &h) || h.Details["maxLength"] != 5 {
		t.Fatalf("expected maxLength failure, got %v", err)
	}
}

func TestSearchSanitizesTerm(t *testing.T) {
	out, err := DefaultSearch().Normalize(map[string]any{"search": "  <b>john   'doe'; "})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if out.Search != "bjohn doe" {
		t.Fatalf("unexpected sanitized term %q", out.Search)
	}
}

func TestSearchRejectsUnknownSortField(t *testing.T) {
	n := SearchNormalizer{AllowedSortFields: []string{"name", "createdAt"}}
	if _, err := n.Normalize(map[string]any{"sortBy": "password"}); err == nil {
		t.Fatalf("expected sortBy to be rejected")
	}
	if _, err := n.Normalize(map[string]any{"sortBy": "name"}); err != nil {
		t.Fatalf("expected allowed sortBy, got %v", err)
	}
}

func TestSanitizeFiltersDropsUnsafeKeys(t *testing.T) {
	out := SanitizeFilters(map[string]any{
		"status":     " active ",
		"drop;table": "x",
		"with space": "x",
		"empty":      "",
		"missing":    nil,
		"role_ids":   []any{"a", "", nil, "b"},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 filters, got %v", out)
	}
	if out["status"] != "active" {
		t.Fatalf("expected trimmed status, got %v", out["status"])
	}
	ids, _ := out["role_ids"].([]any)
	if len(ids) != 2 {
		t.Fatalf("expected empty items removed, got %v", out["role_ids"])
	}
}

func TestNormalizeValuesCollectsBracketFilters(t *testing.T) {
	out, err := DefaultSearch().NormalizeValues(url.Values{
		"filters[status]": {"active"},
		"filter[role]":    {"admin", "owner"},
		"page":            {"2"},
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if out.Page != 2 {
		t.Fatalf("expected page 2, got %d", out.Page)
	}
	if out.Filters["status"] != "active" {
		t.Fatalf("missing status filter: %v", out.Filters)
	}
	if roles, _ := out.Filters["role"].([]string); len(roles) != 2 {
		t.Fatalf("expected two roles, got %v", out.Filters["role"])
	}
}
