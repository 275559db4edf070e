package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxTransactor opens units of work on a connection pool.
type PgxTransactor struct {
	pool *pgxpool.Pool
}

// NewPgxTransactor creates a new PgxTransactor.
func NewPgxTransactor(pool *pgxpool.Pool) *PgxTransactor {
	return &PgxTransactor{pool: pool}
}

// Begin starts a transaction.
func (t *PgxTransactor) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgxUnitOfWork{Tx: tx}, nil
}

type pgxUnitOfWork struct {
	pgx.Tx
}

// Savepoint uses pgx pseudo nested transactions, which are SAVEPOINTs.
func (u *pgxUnitOfWork) Savepoint(ctx context.Context, fn func(db DBTX) error) error {
	sp, err := u.Tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback savepoint: %w (after: %v)", rbErr, err)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (u *pgxUnitOfWork) Commit(ctx context.Context) error {
	if err := u.Tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback is safe to call after Commit.
func (u *pgxUnitOfWork) Rollback(ctx context.Context) error {
	if err := u.Tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
