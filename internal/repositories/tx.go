package repositories

import (
	"context"
	"database/sql"

	"apicore/internal/domain"
)

// TxRunner runs fn inside one transaction: commit when fn returns nil,
// rollback otherwise. A panic in fn rolls back and is re-raised.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx DBTX) error) error
}

// SQLStore is the TxRunner over the shared connection pool.
type SQLStore struct {
	DB *sql.DB
}

func (s SQLStore) RunInTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError{Kind: domain.StoreTransaction, Code: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError{Kind: domain.StoreTransaction, Code: "commit", Err: err}
	}
	return nil
}
