package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTxTimeout = 15 * time.Second

// DBTX is satisfied by both the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Querier returns the transaction bound to ctx, falling back to the pool.
func Querier(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return pool
}

// TxOption customises transaction behaviour.
type TxOption func(*TxManager)

// WithTxTimeout bounds the lifetime of every transaction.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(m *TxManager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithIsolation overrides the isolation level, read committed by default.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(m *TxManager) {
		m.isoLevel = level
	}
}

// TxManager runs callbacks inside a single database transaction.
type TxManager struct {
	pool     *pgxpool.Pool
	timeout  time.Duration
	isoLevel pgx.TxIsoLevel
}

// NewTxManager constructs a TxManager over the pool.
func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	m := &TxManager{pool: pool, timeout: defaultTxTimeout, isoLevel: pgx.ReadCommitted}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// RunInTx commits when fn returns nil and rolls back on error or panic. Calls made
// while a transaction is already bound to ctx join it.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if fn == nil {
		return WrapError("transaction", errors.New("postgres: transaction function is nil"))
	}
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	if m == nil || m.pool == nil {
		return WrapError("transaction", errors.New("postgres: pool is nil"))
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > m.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.isoLevel})
	if err != nil {
		return WrapError("transaction.begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = WrapError("transaction.commit", fmt.Errorf("commit: %w", commitErr))
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	return err
}
