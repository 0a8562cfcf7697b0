package domain

import (
	"time"
)

// TimestampLayout is the canonical textual form of every time value the API
// emits (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// RequestContext is created once at pipeline entry and never changed.
type RequestContext struct {
	RequestID string    `json:"requestId"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	ClientIP  string    `json:"clientIp"`
	UserID    string    `json:"userId,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Authenticated reports whether a user id was attached at entry.
func (rc RequestContext) Authenticated() bool { return rc.UserID != "" }

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaginationQuery is the bounded, normalized page description.
// Skip is always (Page-1)*Limit and Take is always Limit.
type PaginationQuery struct {
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	Skip      int       `json:"skip"`
	Take      int       `json:"take"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder"`
}

// SearchOptions extends PaginationQuery with a sanitized term and filters.
type SearchOptions struct {
	PaginationQuery
	Search  string         `json:"search,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// Paginated is implemented by every PaginatedResult regardless of element type.
type Paginated interface {
	Pagination() PageMeta
}

// PaginatedResult is one page of T plus its meta block.
type PaginatedResult[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

func (p PaginatedResult[T]) Pagination() PageMeta { return p.Meta }

// NewPaginatedResult computes the meta block for data fetched with q.
func NewPaginatedResult[T any](data []T, total int64, q PaginationQuery) PaginatedResult[T] {
	if data == nil {
		data = []T{}
	}
	limit := q.Limit
	if limit < 1 {
		limit = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginatedResult[T]{
		Data: data,
		Meta: PageMeta{
			Total:       total,
			Page:        q.Page,
			Limit:       q.Limit,
			TotalPages:  totalPages,
			HasNextPage: q.Page < totalPages,
			HasPrevPage: q.Page > 1,
		},
	}
}

// Record holds the identity and lifecycle columns every entity carries.
// Only the repository engine writes these fields.
type Record struct {
	ID        string     `json:"id" gorm:"column:id;primaryKey"`
	CreatedAt time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"column:updated_at"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"column:deleted_at"`
}

// Deleted reports whether the record is soft-deleted.
func (r Record) Deleted() bool { return r.DeletedAt != nil }
