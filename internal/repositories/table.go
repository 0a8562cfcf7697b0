package repositories

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"apicore/internal/domain"
)

// RelationLoader fills a relation on already loaded rows using the same
// handle the rows were read with.
type RelationLoader[T any] func(ctx context.Context, db DBTX, items []*T) error

// Table binds T to a MySQL table with hand-written SQL.
type Table[T any] struct {
	TableName string
	// Columns lists the business columns; record columns are implied.
	Columns []string
	// Fields returns scan/insert targets keyed by column for one row.
	Fields    func(*T) map[string]any
	Relations map[string]RelationLoader[T]

	known map[string]bool
}

func NewTable[T any](name string, columns []string, fields func(*T) map[string]any) *Table[T] {
	return &Table[T]{
		TableName: name,
		Columns:   columns,
		Fields:    fields,
		Relations: map[string]RelationLoader[T]{},
		known:     columnSet(columns),
	}
}

func (t *Table[T]) Name() string { return t.TableName }

func (t *Table[T]) allColumns() []string {
	return append(slices.Clone(recordColumns), t.Columns...)
}

func (t *Table[T]) Create(ctx context.Context, db DBTX, v Values) error {
	if len(v) == 0 {
		return domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: t.TableName}
	}
	cols := sortedKeys(v)
	args := make([]any, len(cols))
	for i, c := range cols {
		if !t.known[c] {
			return unknownColumn(t.TableName, c)
		}
		args[i] = v[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(t.TableName), quoteAll(cols), placeholders(len(cols)))
	_, err := db.ExecContext(ctx, q, args...)
	return err
}

func (t *Table[T]) FindFirst(ctx context.Context, db DBTX, q Query) (T, bool, error) {
	q.Skip, q.Take = 0, 1
	items, err := t.FindMany(ctx, db, q)
	if err != nil || len(items) == 0 {
		var zero T
		return zero, false, err
	}
	return items[0], true, nil
}

func (t *Table[T]) FindMany(ctx context.Context, db DBTX, q Query) ([]T, error) {
	cols, err := t.selection(q.Select)
	if err != nil {
		return nil, err
	}
	cond, args, err := renderWhere(t.TableName, q.Where, t.known)
	if err != nil {
		return nil, err
	}
	order, err := renderOrder(t.TableName, q.OrderBy, t.known)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", quoteAll(cols), quote(t.TableName))
	if cond != "" {
		b.WriteString(" WHERE " + cond)
	}
	if order != "" {
		b.WriteString(" ORDER BY " + order)
	}
	switch {
	case q.Take > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, q.Take)
		if q.Skip > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, q.Skip)
		}
	case q.Skip > 0:
		b.WriteString(" LIMIT 18446744073709551615 OFFSET ?")
		args = append(args, q.Skip)
	}

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var item T
		targets := t.Fields(&item)
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = targets[c]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(items) > 0 && len(q.Include) > 0 {
		ptrs := make([]*T, len(items))
		for i := range items {
			ptrs[i] = &items[i]
		}
		for _, name := range q.Include {
			load, ok := t.Relations[name]
			if !ok {
				return nil, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: t.TableName, Field: name}
			}
			if err := load(ctx, db, ptrs); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

func (t *Table[T]) Update(ctx context.Context, db DBTX, w Where, v Values) (int64, error) {
	if len(v) == 0 {
		return 0, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: t.TableName}
	}
	cols := sortedKeys(v)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if !t.known[c] {
			return 0, unknownColumn(t.TableName, c)
		}
		sets[i] = quote(c) + " = ?"
		args = append(args, v[c])
	}
	cond, whereArgs, err := t.requireWhere(w)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quote(t.TableName), strings.Join(sets, ", "), cond)
	res, err := db.ExecContext(ctx, q, append(args, whereArgs...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Table[T]) Delete(ctx context.Context, db DBTX, w Where) (int64, error) {
	cond, args, err := t.requireWhere(w)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", quote(t.TableName), cond), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Table[T]) Count(ctx context.Context, db DBTX, w Where) (int64, error) {
	cond, args, err := renderWhere(t.TableName, w, t.known)
	if err != nil {
		return 0, err
	}
	q := "SELECT COUNT(*) FROM " + quote(t.TableName)
	if cond != "" {
		q += " WHERE " + cond
	}
	var n int64
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// requireWhere refuses unconditional bulk writes.
func (t *Table[T]) requireWhere(w Where) (string, []any, error) {
	cond, args, err := renderWhere(t.TableName, w, t.known)
	if err != nil {
		return "", nil, err
	}
	if cond == "" {
		return "", nil, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: t.TableName}
	}
	return cond, args, nil
}

func (t *Table[T]) selection(sel []string) ([]string, error) {
	if len(sel) == 0 {
		return t.allColumns(), nil
	}
	out := []string{ColID}
	for _, c := range sel {
		if !t.known[c] {
			return nil, unknownColumn(t.TableName, c)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
