package repositories

import (
	"context"

	"apicore/internal/domain"

	"gorm.io/gorm"
)

// GormModel binds T through gorm. Every call runs on the handle it is given
// by swapping the session's connection pool.
type GormModel[T any] struct {
	DB        *gorm.DB
	TableName string
	Columns   []string
	// Preloads maps include names to gorm association names.
	Preloads map[string]string

	known map[string]bool
}

func NewGormModel[T any](db *gorm.DB, table string, columns []string, preloads map[string]string) *GormModel[T] {
	return &GormModel[T]{
		DB:        db,
		TableName: table,
		Columns:   columns,
		Preloads:  preloads,
		known:     columnSet(columns),
	}
}

func (m *GormModel[T]) Name() string { return m.TableName }

func (m *GormModel[T]) session(ctx context.Context, db DBTX) *gorm.DB {
	s := m.DB.Session(&gorm.Session{NewDB: true, Context: ctx})
	s.Statement.ConnPool = db
	return s
}

func (m *GormModel[T]) scoped(s *gorm.DB, w Where) (*gorm.DB, bool, error) {
	cond, args, err := renderWhere(m.TableName, w, m.known)
	if err != nil {
		return nil, false, err
	}
	if cond == "" {
		return s, false, nil
	}
	return s.Where(cond, args...), true, nil
}

func (m *GormModel[T]) Create(ctx context.Context, db DBTX, v Values) error {
	for c := range v {
		if !m.known[c] {
			return unknownColumn(m.TableName, c)
		}
	}
	return m.session(ctx, db).Table(m.TableName).Create(map[string]any(v)).Error
}

func (m *GormModel[T]) FindFirst(ctx context.Context, db DBTX, q Query) (T, bool, error) {
	q.Skip, q.Take = 0, 1
	items, err := m.FindMany(ctx, db, q)
	if err != nil || len(items) == 0 {
		var zero T
		return zero, false, err
	}
	return items[0], true, nil
}

func (m *GormModel[T]) FindMany(ctx context.Context, db DBTX, q Query) ([]T, error) {
	s, _, err := m.scoped(m.session(ctx, db).Model(new(T)), q.Where)
	if err != nil {
		return nil, err
	}
	if len(q.Select) > 0 {
		cols := []string{ColID}
		for _, c := range q.Select {
			if !m.known[c] {
				return nil, unknownColumn(m.TableName, c)
			}
			if c != ColID {
				cols = append(cols, c)
			}
		}
		s = s.Select(cols)
	}
	for _, name := range q.Include {
		assoc, ok := m.Preloads[name]
		if !ok {
			return nil, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: m.TableName, Field: name}
		}
		s = s.Preload(assoc)
	}
	order, err := renderOrder(m.TableName, q.OrderBy, m.known)
	if err != nil {
		return nil, err
	}
	if order != "" {
		s = s.Order(order)
	}
	if q.Skip > 0 {
		s = s.Offset(q.Skip)
	}
	if q.Take > 0 {
		s = s.Limit(q.Take)
	}

	items := []T{}
	if err := s.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (m *GormModel[T]) Update(ctx context.Context, db DBTX, w Where, v Values) (int64, error) {
	for c := range v {
		if !m.known[c] {
			return 0, unknownColumn(m.TableName, c)
		}
	}
	s, ok, err := m.scoped(m.session(ctx, db).Table(m.TableName), w)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: m.TableName}
	}
	res := s.Updates(map[string]any(v))
	return res.RowsAffected, res.Error
}

func (m *GormModel[T]) Delete(ctx context.Context, db DBTX, w Where) (int64, error) {
	s, ok, err := m.scoped(m.session(ctx, db), w)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.StoreError{Kind: domain.StoreInvalidQuery, Entity: m.TableName}
	}
	res := s.Delete(new(T))
	return res.RowsAffected, res.Error
}

func (m *GormModel[T]) Count(ctx context.Context, db DBTX, w Where) (int64, error) {
	s, _, err := m.scoped(m.session(ctx, db).Model(new(T)), w)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
