package db

import (
	"context"
	"database/sql"
	"errors"
)

// QueryRower is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// HasTable reports whether table exists in the current schema.
func HasTable(ctx context.Context, q QueryRower, table string) (bool, error) {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return name.Valid && name.String != "", nil
}

// HasColumn reports whether table.column exists in the current schema.
func HasColumn(ctx context.Context, q QueryRower, table, column string) (bool, error) {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND column_name = ?
		LIMIT 1
	`, table, column).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return name.Valid && name.String != "", nil
}

// Expectation lists the columns a table must carry.
type Expectation struct {
	Table   string
	Columns []string
}

// TableStatus is the outcome of checking one Expectation.
type TableStatus struct {
	Table          string   `json:"table"`
	Exists         bool     `json:"exists"`
	MissingColumns []string `json:"missingColumns,omitempty"`
}

// Check verifies every expectation and reports the gaps. Query failures abort
// the check; a missing table or column does not.
func Check(ctx context.Context, q QueryRower, want []Expectation) ([]TableStatus, bool, error) {
	out := make([]TableStatus, 0, len(want))
	ok := true
	for _, w := range want {
		st := TableStatus{Table: w.Table}
		exists, err := HasTable(ctx, q, w.Table)
		if err != nil {
			return nil, false, err
		}
		st.Exists = exists
		if !exists {
			ok = false
			out = append(out, st)
			continue
		}
		for _, c := range w.Columns {
			has, err := HasColumn(ctx, q, w.Table, c)
			if err != nil {
				return nil, false, err
			}
			if !has {
				st.MissingColumns = append(st.MissingColumns, c)
				ok = false
			}
		}
		out = append(out, st)
	}
	return out, ok, nil
}
