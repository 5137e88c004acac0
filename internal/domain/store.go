package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// GameStore persists registered games.
type GameStore interface {
	// NextID reserves the next sequential game id ("1", "2", ...).
	NextID(ctx context.Context) (string, error)
	Insert(ctx context.Context, game Game) error
	Get(ctx context.Context, id string) (Game, error)
	// FindLive returns a not-yet-ended game with the same fixture, or ErrNotFound.
	FindLive(ctx context.Context, fixture Game) (Game, error)
	Update(ctx context.Context, game Game) error
	List(ctx context.Context, opts ListOpts) ([]Game, error)
	// ListUnarchived returns ended games that have not been archived yet.
	ListUnarchived(ctx context.Context, limit int) ([]Game, error)
	MarkArchived(ctx context.Context, id string, at time.Time) error
}

// PoolStore persists pool counters.
type PoolStore interface {
	Get(ctx context.Context, id PoolID) (Pool, error)
	// GetByToken resolves the pool a receipt token belongs to.
	GetByToken(ctx context.Context, tokenID TokenID) (Pool, Side, error)
	Put(ctx context.Context, pool Pool) error
	ListByGame(ctx context.Context, gameID string) ([]Pool, error)
}

// CashStore persists collateral balances and allowances. Missing rows read
// as zero.
type CashStore interface {
	Balance(ctx context.Context, account common.Address) (int64, error)
	SetBalance(ctx context.Context, account common.Address, amount int64) error
	Allowance(ctx context.Context, owner, spender common.Address) (int64, error)
	SetAllowance(ctx context.Context, owner, spender common.Address, amount int64) error
}

// CouponStore persists receipt balances per (holder, token). Missing rows
// read as zero.
type CouponStore interface {
	Balance(ctx context.Context, holder common.Address, tokenID TokenID) (int64, error)
	SetBalance(ctx context.Context, holder common.Address, tokenID TokenID, amount int64) error
}

// EventStore persists the ledger journal.
type EventStore interface {
	Append(ctx context.Context, event LedgerEvent) error
	ListByGame(ctx context.Context, gameID string) ([]LedgerEvent, error)
}

// Tx exposes every store bound to a single transaction.
type Tx interface {
	Games() GameStore
	Pools() PoolStore
	Cash() CashStore
	Coupons() CouponStore
	Events() EventStore
}

// UnitOfWork runs functions against a consistent view of all stores.
// Atomic commits every write made by fn, or none of them if fn returns an
// error. View runs fn read-only.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
