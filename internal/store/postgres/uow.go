package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

const defaultTxRetries = 5

// UnitOfWork implements domain.UnitOfWork with SERIALIZABLE transactions,
// retrying the whole function on serialization failures.
type UnitOfWork struct {
	client  *Client
	retries int
}

// NewUnitOfWork returns a UnitOfWork over the client's pool.
func NewUnitOfWork(client *Client) *UnitOfWork {
	return &UnitOfWork{client: client, retries: defaultTxRetries}
}

func serializableTxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
}

func readOnlyTxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
}

// Atomic runs fn in a serializable transaction and commits if it succeeds.
func (u *UnitOfWork) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var err error
	for attempt := 0; attempt <= u.retries; attempt++ {
		err = u.withTx(ctx, serializableTxOptions(), fn)
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("postgres: gave up after %d serialization failures: %w", u.retries+1, err)
}

// View runs fn in a read-only snapshot.
func (u *UnitOfWork) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return u.withTx(ctx, readOnlyTxOptions(), fn)
}

func (u *UnitOfWork) withTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx domain.Tx) error) error {
	ptx, err := u.client.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = ptx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &tx{q: ptx}); err != nil {
		if rbErr := ptx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := ptx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// retryable reports serialization failures and deadlocks.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// querier is the subset of pgx.Tx the stores use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type tx struct {
	q querier
}

func (t *tx) Games() domain.GameStore     { return &GameStore{q: t.q} }
func (t *tx) Pools() domain.PoolStore     { return &PoolStore{q: t.q} }
func (t *tx) Cash() domain.CashStore      { return &CashStore{q: t.q} }
func (t *tx) Coupons() domain.CouponStore { return &CouponStore{q: t.q} }
func (t *tx) Events() domain.EventStore   { return &EventStore{q: t.q} }

func hashBytes(h domain.Hash32) []byte {
	return h[:]
}

func scanHash(b []byte) domain.Hash32 {
	var h domain.Hash32
	copy(h[:], b)
	return h
}

// nonNil keeps BYTEA NOT NULL columns from receiving NULL for empty input.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
