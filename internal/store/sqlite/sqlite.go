// Package sqlite implements the ledger stores on an embedded SQLite file,
// for single-node deployments that want durability without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

INSERT OR IGNORE INTO counters (name, value) VALUES ('game', 0);

CREATE TABLE IF NOT EXISTS games (
    id          TEXT PRIMARY KEY,
    seq         INTEGER NOT NULL UNIQUE,
    home_code   BLOB NOT NULL,
    away_code   BLOB NOT NULL,
    match_label BLOB NOT NULL,
    start_time  INTEGER NOT NULL,
    ended       INTEGER NOT NULL DEFAULT 0,
    taker_wins  INTEGER NOT NULL DEFAULT 0,
    ended_at    INTEGER,
    archived_at INTEGER,
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_fixture ON games (home_code, away_code, start_time);

CREATE TABLE IF NOT EXISTS pools (
    id              BLOB PRIMARY KEY,
    game_id         TEXT NOT NULL REFERENCES games (id),
    odds            INTEGER NOT NULL CHECK (odds > 0),
    maker_token_id  BLOB NOT NULL UNIQUE,
    taker_token_id  BLOB NOT NULL UNIQUE,
    maker_liability INTEGER NOT NULL DEFAULT 0,
    taker_matched   INTEGER NOT NULL DEFAULT 0,
    matched_value   INTEGER NOT NULL DEFAULT 0,
    maker_supply    INTEGER NOT NULL DEFAULT 0,
    taker_supply    INTEGER NOT NULL DEFAULT 0,
    settled         INTEGER NOT NULL DEFAULT 0,
    maker_pot       INTEGER NOT NULL DEFAULT 0,
    taker_pot       INTEGER NOT NULL DEFAULT 0,
    paid_out        INTEGER NOT NULL DEFAULT 0,
    CHECK (taker_matched <= maker_liability),
    CHECK (paid_out <= maker_liability + taker_matched)
);

CREATE INDEX IF NOT EXISTS idx_pools_game ON pools (game_id, odds);

CREATE TABLE IF NOT EXISTS cash_balances (
    account BLOB PRIMARY KEY,
    amount  INTEGER NOT NULL CHECK (amount >= 0)
);

CREATE TABLE IF NOT EXISTS cash_allowances (
    owner   BLOB NOT NULL,
    spender BLOB NOT NULL,
    amount  INTEGER NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (owner, spender)
);

CREATE TABLE IF NOT EXISTS coupon_balances (
    holder   BLOB NOT NULL,
    token_id BLOB NOT NULL,
    amount   INTEGER NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (holder, token_id)
);

CREATE TABLE IF NOT EXISTS ledger_events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    kind       TEXT NOT NULL,
    game_id    TEXT NOT NULL,
    pool_id    BLOB,
    token_id   BLOB,
    account    BLOB,
    odds       INTEGER NOT NULL DEFAULT 0,
    amount     INTEGER NOT NULL DEFAULT 0,
    payout     INTEGER NOT NULL DEFAULT 0,
    taker_wins INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_events_game ON ledger_events (game_id, seq);
`

// Store owns the database handle and implements domain.UnitOfWork.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One connection serialises every transaction, which is also what keeps
	// an in-memory database alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic runs fn in a transaction and commits if it succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.withTx(ctx, fn)
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.withTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errReadOnly
	})
}

// errReadOnly makes withTx roll back a View; it never escapes.
var errReadOnly = errors.New("sqlite: read-only")

func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = stx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tx{q: stx}); err != nil {
		_ = stx.Rollback()
		if errors.Is(err, errReadOnly) {
			return nil
		}
		return err
	}
	if err := stx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// querier is the subset of *sql.Tx the stores use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type tx struct {
	q querier
}

func (t *tx) Games() domain.GameStore     { return &gameStore{q: t.q} }
func (t *tx) Pools() domain.PoolStore     { return &poolStore{q: t.q} }
func (t *tx) Cash() domain.CashStore      { return &cashStore{q: t.q} }
func (t *tx) Coupons() domain.CouponStore { return &couponStore{q: t.q} }
func (t *tx) Events() domain.EventStore   { return &eventStore{q: t.q} }

// Times are stored as Unix nanoseconds.

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func optionalNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func scanOptionalTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func scanHash(b []byte) domain.Hash32 {
	var h domain.Hash32
	copy(h[:], b)
	return h
}

var _ domain.UnitOfWork = (*Store)(nil)
