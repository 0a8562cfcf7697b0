package repositories

import (
	"context"
	"database/sql"
	"reflect"
	"sort"
	"strings"

	"apicore/internal/domain"
)

// Columns every entity table carries. Only the engine writes them.
const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColDeletedAt = "deleted_at"
)

var recordColumns = []string{ColID, ColCreatedAt, ColUpdatedAt, ColDeletedAt}

// DBTX is satisfied by *sql.DB and *sql.Tx. It matches gorm.ConnPool, so the
// same handle can drive both binding adapters.
type DBTX interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Values maps column names to the values written by Create and Update.
type Values map[string]any

// Filter maps column names to equality conditions. A nil value matches NULL,
// a slice value matches any of its elements.
type Filter map[string]any

// Scope selects rows by soft-delete state. The zero value is ScopeLive.
type Scope int

const (
	ScopeLive Scope = iota
	ScopeAll
	ScopeDeleted
)

// Search is a substring match OR'ed across Columns.
type Search struct {
	Term    string
	Columns []string
}

// Where is always rendered as Fields AND Deleted AND Search.
type Where struct {
	Fields  Filter
	Deleted Scope
	Search  *Search
}

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Where
	Select  []string
	Include []string
	OrderBy []Order
	Skip    int
	Take    int
}

// ModelBinding is the per-entity storage capability the engine is written
// against. Every call receives the handle it must run on.
type ModelBinding[T any] interface {
	Name() string
	Create(ctx context.Context, db DBTX, v Values) error
	FindFirst(ctx context.Context, db DBTX, q Query) (T, bool, error)
	FindMany(ctx context.Context, db DBTX, q Query) ([]T, error)
	Update(ctx context.Context, db DBTX, w Where, v Values) (int64, error)
	Delete(ctx context.Context, db DBTX, w Where) (int64, error)
	Count(ctx context.Context, db DBTX, w Where) (int64, error)
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func quoteAll(idents []string) string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = quote(id)
	}
	return strings.Join(out, ", ")
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderWhere builds a MySQL condition (without the WHERE keyword) and its
// arguments. Unknown columns fail with StoreInvalidQuery.
func renderWhere(entity string, w Where, known map[string]bool) (string, []any, error) {
	var (
		parts []string
		args  []any
	)
	for _, col := range sortedKeys(w.Fields) {
		if !known[col] {
			return "", nil, unknownColumn(entity, col)
		}
		v := w.Fields[col]
		if v == nil {
			parts = append(parts, quote(col)+" IS NULL")
			continue
		}
		if items, ok := expand(v); ok {
			if len(items) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, quote(col)+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")+")")
			args = append(args, items...)
			continue
		}
		parts = append(parts, quote(col)+" = ?")
		args = append(args, v)
	}

	switch w.Deleted {
	case ScopeLive:
		parts = append(parts, quote(ColDeletedAt)+" IS NULL")
	case ScopeDeleted:
		parts = append(parts, quote(ColDeletedAt)+" IS NOT NULL")
	}

	if s := w.Search; s != nil && s.Term != "" && len(s.Columns) > 0 {
		likes := make([]string, 0, len(s.Columns))
		for _, col := range s.Columns {
			if !known[col] {
				return "", nil, unknownColumn(entity, col)
			}
			likes = append(likes, quote(col)+" LIKE ?")
			args = append(args, "%"+escapeLike(s.Term)+"%")
		}
		parts = append(parts, "("+strings.Join(likes, " OR ")+")")
	}
	return strings.Join(parts, " AND "), args, nil
}

func renderOrder(entity string, orders []Order, known map[string]bool) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		if !known[o.Column] {
			return "", unknownColumn(entity, o.Column)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		out = append(out, quote(o.Column)+" "+dir)
	}
	return strings.Join(out, ", "), nil
}

// expand flattens slice filter values; []byte stays a scalar.
func expand(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func unknownColumn(entity, col string) error {
	return domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: entity, Field: col}
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols)+len(recordColumns))
	for _, c := range recordColumns {
		set[c] = true
	}
	for _, c := range cols {
		set[c] = true
	}
	return set
}
