// Package exchange is the fixed-odds matching and settlement engine. Every
// public mutation runs as one unit of work: the game and pool are read,
// collateral and receipts move through custody, counters are written and a
// ledger event is journaled, all committed together or not at all.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/oddsexchange/internal/custody"
	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// Exchange owns the escrow account and all pool accounting.
type Exchange struct {
	uow       domain.UnitOfWork
	account   common.Address
	clock     func() time.Time
	publisher domain.EventPublisher
	notifier  domain.Notifier
	pools     domain.PoolCache
	faucetCap int64
	logger    *slog.Logger
}

// New creates an Exchange that escrows collateral in account.
func New(uow domain.UnitOfWork, account common.Address, logger *slog.Logger) *Exchange {
	return &Exchange{
		uow:     uow,
		account: account,
		clock:   time.Now,
		logger:  logger.With(slog.String("component", "exchange")),
	}
}

// WithClock replaces the wall clock used for schedule checks.
func (e *Exchange) WithClock(clock func() time.Time) *Exchange {
	e.clock = clock
	return e
}

// WithPublisher fans committed ledger events out through p.
func (e *Exchange) WithPublisher(p domain.EventPublisher) *Exchange {
	e.publisher = p
	return e
}

// WithNotifier sends an alert whenever a game ends.
func (e *Exchange) WithNotifier(n domain.Notifier) *Exchange {
	e.notifier = n
	return e
}

// WithPoolCache serves pool reads from c and invalidates it after writes.
func (e *Exchange) WithPoolCache(c domain.PoolCache) *Exchange {
	e.pools = c
	return e
}

// WithFaucet enables the test faucet, minting at most limit per call.
// A limit of zero leaves the faucet disabled.
func (e *Exchange) WithFaucet(limit int64) *Exchange {
	e.faucetCap = limit
	return e
}

// Account returns the escrow account that callers approve.
func (e *Exchange) Account() common.Address {
	return e.account
}

// work is the per-attempt state of one unit of work.
type work struct {
	tx     domain.Tx
	cash   custody.Cash
	coupon custody.Coupon
	now    time.Time
	events []domain.LedgerEvent
}

func (w *work) record(ctx context.Context, ev domain.LedgerEvent) error {
	ev.ID = uuid.NewString()
	ev.CreatedAt = w.now
	if err := w.tx.Events().Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s event: %w", ev.Kind, err)
	}
	w.events = append(w.events, ev)
	return nil
}

// atomic runs fn in a unit of work and, once committed, publishes the events
// it recorded. fn may run more than once if the store retries.
func (e *Exchange) atomic(ctx context.Context, fn func(ctx context.Context, w *work) error) ([]domain.LedgerEvent, error) {
	now := e.clock()
	var committed []domain.LedgerEvent
	err := e.uow.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		w := &work{
			tx:     tx,
			cash:   custody.NewCash(tx.Cash()),
			coupon: custody.NewCoupon(tx.Coupons()),
			now:    now,
		}
		if err := fn(ctx, w); err != nil {
			return err
		}
		committed = w.events
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.afterCommit(ctx, committed)
	return committed, nil
}

// view runs fn read-only.
func (e *Exchange) view(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return e.uow.View(ctx, fn)
}

func (e *Exchange) afterCommit(ctx context.Context, events []domain.LedgerEvent) {
	if e.pools != nil {
		for _, ev := range events {
			if ev.PoolID.IsZero() {
				continue
			}
			if err := e.pools.Invalidate(ctx, ev.PoolID); err != nil {
				e.logger.Warn("exchange: pool cache invalidate failed",
					slog.String("pool_id", ev.PoolID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if e.publisher != nil && len(events) > 0 {
		if err := e.publisher.Publish(ctx, events...); err != nil {
			e.logger.Warn("exchange: publish events failed",
				slog.Int("count", len(events)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// loadGame maps a store miss to ErrUnknownGame.
func loadGame(ctx context.Context, tx domain.Tx, gameID string) (domain.Game, error) {
	g, err := tx.Games().Get(ctx, gameID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Game{}, fmt.Errorf("game %q: %w", gameID, domain.ErrUnknownGame)
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game %q: %w", gameID, err)
	}
	return g, nil
}
