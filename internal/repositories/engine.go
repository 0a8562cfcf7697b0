package repositories

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"apicore/internal/domain"
	"apicore/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// FindOptions narrows a single-record read.
type FindOptions struct {
	Select  []string
	Include []string
}

// ListOptions describes a multi-record read. A zero Take means no limit.
type ListOptions struct {
	Where   Filter
	Search  *Search
	Select  []string
	Include []string
	OrderBy []Order
	Skip    int
	Take    int
}

// Repository implements CRUD, pagination, soft delete and transactions once
// for every entity, against a ModelBinding.
type Repository[T any] struct {
	Binding ModelBinding[T]
	DB      DBTX
	Tx      TxRunner
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// SortColumns maps API sort names (sortBy) to columns.
	SortColumns map[string]string

	now   func() time.Time
	newID func() string
	inTx  bool
}

func NewRepository[T any](binding ModelBinding[T], db DBTX, tx TxRunner, logger *slog.Logger) *Repository[T] {
	return &Repository[T]{
		Binding: binding,
		DB:      db,
		Tx:      tx,
		Logger:  logger,
		SortColumns: map[string]string{
			"createdAt": ColCreatedAt,
			"updatedAt": ColUpdatedAt,
		},
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// WithTx returns a copy bound to tx. Calls through the copy share the
// transaction's atomicity.
func (r *Repository[T]) WithTx(tx DBTX) *Repository[T] {
	cp := *r
	cp.DB = tx
	cp.inTx = true
	return &cp
}

// ExecuteInTransaction runs fn with a transactional handle. Inside a
// repository already bound to a transaction, fn joins it.
func (r *Repository[T]) ExecuteInTransaction(ctx context.Context, fn func(tx DBTX) error) error {
	if r.inTx {
		return fn(r.DB)
	}
	if r.Tx == nil {
		return r.fail(ctx, "executeInTransaction", nil,
			domain.StoreError{Kind: domain.StoreTransaction, Entity: r.Binding.Name(), Code: "no_runner"})
	}
	// errors returned by fn were already logged by the call that raised them
	fnFailed := false
	err := r.Tx.RunInTx(ctx, func(tx DBTX) error {
		if err := fn(tx); err != nil {
			fnFailed = true
			return err
		}
		return nil
	})
	if err != nil && !fnFailed {
		return r.fail(ctx, "executeInTransaction", nil, err)
	}
	return err
}

func (r *Repository[T]) Create(ctx context.Context, v Values) (*T, error) {
	now := r.now()
	id := r.newID()
	data := stripReserved(v)
	data[ColID] = id
	data[ColCreatedAt] = now
	data[ColUpdatedAt] = now
	data[ColDeletedAt] = nil

	if err := r.Binding.Create(ctx, r.DB, data); err != nil {
		return nil, r.fail(ctx, "create", map[string]any{"fields": sortedKeys(v)}, err)
	}
	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{Where: Where{Fields: Filter{ColID: id}, Deleted: ScopeAll}})
	if err != nil {
		return nil, r.fail(ctx, "create", map[string]any{"id": id}, err)
	}
	if !ok {
		return nil, r.fail(ctx, "create", map[string]any{"id": id}, r.notFound(id))
	}
	return &item, nil
}

// FindByID returns nil when no live row has id.
func (r *Repository[T]) FindByID(ctx context.Context, id string, opts FindOptions) (*T, error) {
	if err := r.checkID(id); err != nil {
		return nil, r.fail(ctx, "findById", map[string]any{"id": id}, err)
	}
	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{
		Where:   Where{Fields: Filter{ColID: id}},
		Select:  opts.Select,
		Include: opts.Include,
	})
	if err != nil {
		return nil, r.fail(ctx, "findById", map[string]any{"id": id}, err)
	}
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// FindOne returns the newest live row matching where, or nil.
func (r *Repository[T]) FindOne(ctx context.Context, where Filter) (*T, error) {
	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{
		Where:   Where{Fields: where},
		OrderBy: r.defaultOrder(nil),
	})
	if err != nil {
		return nil, r.fail(ctx, "findOne", map[string]any{"where": where}, err)
	}
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *Repository[T]) FindMany(ctx context.Context, opts ListOptions) ([]T, error) {
	return r.list(ctx, "findMany", ScopeLive, opts)
}

// FindWithDeleted lists rows regardless of soft-delete state.
func (r *Repository[T]) FindWithDeleted(ctx context.Context, opts ListOptions) ([]T, error) {
	return r.list(ctx, "findWithDeleted", ScopeAll, opts)
}

// FindOnlyDeleted lists soft-deleted rows only.
func (r *Repository[T]) FindOnlyDeleted(ctx context.Context, opts ListOptions) ([]T, error) {
	return r.list(ctx, "findOnlyDeleted", ScopeDeleted, opts)
}

func (r *Repository[T]) list(ctx context.Context, op string, scope Scope, opts ListOptions) ([]T, error) {
	items, err := r.Binding.FindMany(ctx, r.DB, Query{
		Where:   Where{Fields: opts.Where, Deleted: scope, Search: opts.Search},
		Select:  opts.Select,
		Include: opts.Include,
		OrderBy: r.withTieBreak(r.defaultOrder(opts.OrderBy)),
		Skip:    opts.Skip,
		Take:    opts.Take,
	})
	if err != nil {
		return nil, r.fail(ctx, op, map[string]any{"where": opts.Where}, err)
	}
	return items, nil
}

// FindWithPagination fetches one page and the total for the same where.
// Outside a transaction both queries run concurrently.
func (r *Repository[T]) FindWithPagination(ctx context.Context, where Filter, page domain.PaginationQuery, opts ListOptions) (domain.PaginatedResult[T], error) {
	return r.paginate(ctx, "findWithPagination", Where{Fields: where, Search: opts.Search}, page, opts)
}

// Search paginates live rows whose columns contain opts.Search, narrowed by
// opts.Filters.
func (r *Repository[T]) Search(ctx context.Context, opts domain.SearchOptions, columns []string) (domain.PaginatedResult[T], error) {
	w := Where{Fields: Filter(opts.Filters)}
	if opts.Search != "" {
		w.Search = &Search{Term: opts.Search, Columns: columns}
	}
	return r.paginate(ctx, "search", w, opts.PaginationQuery, ListOptions{})
}

func (r *Repository[T]) paginate(ctx context.Context, op string, w Where, page domain.PaginationQuery, opts ListOptions) (domain.PaginatedResult[T], error) {
	limit := max(page.Limit, 1)
	pg := max(page.Page, 1)
	page.Page, page.Limit = pg, limit

	orders := opts.OrderBy
	if len(orders) == 0 && page.SortBy != "" {
		if col, ok := r.SortColumns[page.SortBy]; ok {
			orders = []Order{{Column: col, Desc: page.SortOrder != domain.SortAsc}}
		}
	}
	q := Query{
		Where:   w,
		Select:  opts.Select,
		Include: opts.Include,
		OrderBy: r.withTieBreak(r.defaultOrder(orders)),
		Skip:    (pg - 1) * limit,
		Take:    limit,
	}

	var (
		items []T
		total int64
	)
	fetch := func(ctx context.Context) (err error) {
		items, err = r.Binding.FindMany(ctx, r.DB, q)
		return err
	}
	count := func(ctx context.Context) (err error) {
		total, err = r.Binding.Count(ctx, r.DB, w)
		return err
	}

	var err error
	if r.inTx {
		// a transaction owns a single connection
		if err = count(ctx); err == nil {
			err = fetch(ctx)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return count(gctx) })
		g.Go(func() error { return fetch(gctx) })
		err = g.Wait()
	}
	if err != nil {
		return domain.PaginatedResult[T]{}, r.fail(ctx, op, map[string]any{"where": w.Fields, "page": pg, "limit": limit}, err)
	}
	return domain.NewPaginatedResult(items, total, page), nil
}

func (r *Repository[T]) Update(ctx context.Context, id string, v Values) (*T, error) {
	input := map[string]any{"id": id, "fields": sortedKeys(v)}
	if err := r.checkID(id); err != nil {
		return nil, r.fail(ctx, "update", input, err)
	}
	data := stripReserved(v)
	data[ColUpdatedAt] = r.now()

	n, err := r.Binding.Update(ctx, r.DB, Where{Fields: Filter{ColID: id}}, data)
	if err == nil && n == 0 {
		err = r.notFound(id)
	}
	if err != nil {
		return nil, r.fail(ctx, "update", input, err)
	}
	return r.reload(ctx, "update", id, ScopeLive)
}

// UpdateMany updates live rows matching where and returns how many changed.
func (r *Repository[T]) UpdateMany(ctx context.Context, where Filter, v Values) (int64, error) {
	data := stripReserved(v)
	data[ColUpdatedAt] = r.now()
	n, err := r.Binding.Update(ctx, r.DB, Where{Fields: where}, data)
	if err != nil {
		return 0, r.fail(ctx, "updateMany", map[string]any{"where": where, "fields": sortedKeys(v)}, err)
	}
	return n, nil
}

// Delete removes a live row. Soft delete stamps deleted_at and keeps the row;
// the returned record reflects the row after the operation.
func (r *Repository[T]) Delete(ctx context.Context, id string, soft bool) (*T, error) {
	input := map[string]any{"id": id, "soft": soft}
	if err := r.checkID(id); err != nil {
		return nil, r.fail(ctx, "delete", input, err)
	}
	live := Where{Fields: Filter{ColID: id}}

	if soft {
		now := r.now()
		n, err := r.Binding.Update(ctx, r.DB, live, Values{ColDeletedAt: now, ColUpdatedAt: now})
		if err == nil && n == 0 {
			err = r.notFound(id)
		}
		if err != nil {
			return nil, r.fail(ctx, "delete", input, err)
		}
		return r.reload(ctx, "delete", id, ScopeDeleted)
	}

	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{Where: live})
	if err == nil && !ok {
		err = r.notFound(id)
	}
	if err != nil {
		return nil, r.fail(ctx, "delete", input, err)
	}
	if _, err := r.Binding.Delete(ctx, r.DB, live); err != nil {
		return nil, r.fail(ctx, "delete", input, err)
	}
	return &item, nil
}

// DeleteMany soft or hard deletes live rows matching where.
func (r *Repository[T]) DeleteMany(ctx context.Context, where Filter, soft bool) (int64, error) {
	var (
		n   int64
		err error
	)
	if soft {
		now := r.now()
		n, err = r.Binding.Update(ctx, r.DB, Where{Fields: where}, Values{ColDeletedAt: now, ColUpdatedAt: now})
	} else {
		n, err = r.Binding.Delete(ctx, r.DB, Where{Fields: where})
	}
	if err != nil {
		return 0, r.fail(ctx, "deleteMany", map[string]any{"where": where, "soft": soft}, err)
	}
	return n, nil
}

// Restore clears deleted_at on a soft-deleted row. Live or missing rows fail
// with a not-found store error.
func (r *Repository[T]) Restore(ctx context.Context, id string) (*T, error) {
	input := map[string]any{"id": id}
	if err := r.checkID(id); err != nil {
		return nil, r.fail(ctx, "restore", input, err)
	}
	n, err := r.Binding.Update(ctx, r.DB,
		Where{Fields: Filter{ColID: id}, Deleted: ScopeDeleted},
		Values{ColDeletedAt: nil, ColUpdatedAt: r.now()})
	if err == nil && n == 0 {
		err = r.notFound(id)
	}
	if err != nil {
		return nil, r.fail(ctx, "restore", input, err)
	}
	return r.reload(ctx, "restore", id, ScopeLive)
}

// ForceDelete physically removes a row whatever its soft-delete state.
func (r *Repository[T]) ForceDelete(ctx context.Context, id string) (*T, error) {
	input := map[string]any{"id": id}
	if err := r.checkID(id); err != nil {
		return nil, r.fail(ctx, "forceDelete", input, err)
	}
	target := Where{Fields: Filter{ColID: id}, Deleted: ScopeAll}
	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{Where: target})
	if err == nil && !ok {
		err = r.notFound(id)
	}
	if err != nil {
		return nil, r.fail(ctx, "forceDelete", input, err)
	}
	if _, err := r.Binding.Delete(ctx, r.DB, target); err != nil {
		return nil, r.fail(ctx, "forceDelete", input, err)
	}
	return &item, nil
}

// Count counts live rows matching where.
func (r *Repository[T]) Count(ctx context.Context, where Filter) (int64, error) {
	n, err := r.Binding.Count(ctx, r.DB, Where{Fields: where})
	if err != nil {
		return 0, r.fail(ctx, "count", map[string]any{"where": where}, err)
	}
	return n, nil
}

// Exists reports Count(where) > 0.
func (r *Repository[T]) Exists(ctx context.Context, where Filter) (bool, error) {
	n, err := r.Binding.Count(ctx, r.DB, Where{Fields: where})
	if err != nil {
		return false, r.fail(ctx, "exists", map[string]any{"where": where}, err)
	}
	return n > 0, nil
}

func (r *Repository[T]) reload(ctx context.Context, op, id string, scope Scope) (*T, error) {
	item, ok, err := r.Binding.FindFirst(ctx, r.DB, Query{Where: Where{Fields: Filter{ColID: id}, Deleted: scope}})
	if err == nil && !ok {
		err = r.notFound(id)
	}
	if err != nil {
		return nil, r.fail(ctx, op, map[string]any{"id": id}, err)
	}
	return &item, nil
}

func (r *Repository[T]) checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.StoreError{Kind: domain.StoreInvalidIdentifier, Entity: r.Binding.Name(), Field: ColID, Err: err}
	}
	return nil
}

func (r *Repository[T]) notFound(id string) error {
	return domain.StoreError{Kind: domain.StoreRecordNotFound, Entity: r.Binding.Name(), Field: ColID}
}

func (r *Repository[T]) defaultOrder(orders []Order) []Order {
	if len(orders) > 0 {
		return orders
	}
	return []Order{{Column: ColCreatedAt, Desc: true}}
}

// withTieBreak appends created_at DESC, id DESC when missing so pages are
// stable.
func (r *Repository[T]) withTieBreak(orders []Order) []Order {
	out := append([]Order(nil), orders...)
	for _, col := range []string{ColCreatedAt, ColID} {
		seen := false
		for _, o := range out {
			if o.Column == col {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, Order{Column: col, Desc: true})
		}
	}
	return out
}

func stripReserved(v Values) Values {
	out := maps.Clone(v)
	if out == nil {
		out = Values{}
	}
	for _, c := range recordColumns {
		delete(out, c)
	}
	return out
}
