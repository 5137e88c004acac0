package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/poolkey"
)

// PoolID derives the pool identity for (odds, gameID).
func (e *Exchange) PoolID(odds int64, gameID string) domain.PoolID {
	return poolkey.PoolID(odds, gameID)
}

// TokenIDs derives the maker and taker receipt ids of a pool.
func (e *Exchange) TokenIDs(poolID domain.PoolID) (maker, taker domain.TokenID) {
	return poolkey.TokenIDs(poolID)
}

// Pool returns the pool's counters. A pool that has never been bet on is
// returned empty, with ErrNotFound.
func (e *Exchange) Pool(ctx context.Context, poolID domain.PoolID) (domain.Pool, error) {
	if e.pools != nil {
		if p, err := e.pools.Get(ctx, poolID); err == nil {
			return p, nil
		}
	}
	var pool domain.Pool
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		pool, err = tx.Pools().Get(ctx, poolID)
		return err
	})
	if err != nil {
		return domain.Pool{ID: poolID}, fmt.Errorf("exchange: pool %s: %w", poolID, err)
	}
	if e.pools != nil {
		if err := e.pools.Set(ctx, pool); err != nil {
			e.logger.Debug("exchange: pool cache fill failed", slog.String("error", err.Error()))
		}
	}
	return pool, nil
}

// PoolFor returns the pool for (odds, gameID), empty if nobody has bet on it.
func (e *Exchange) PoolFor(ctx context.Context, odds int64, gameID string) (domain.Pool, error) {
	if odds <= 0 {
		return domain.Pool{}, fmt.Errorf("exchange: pool for odds %d: %w", odds, domain.ErrInvalidOdds)
	}
	pool, err := e.Pool(ctx, poolkey.PoolID(odds, gameID))
	if errors.Is(err, domain.ErrNotFound) {
		return poolkey.NewPool(odds, gameID), nil
	}
	return pool, err
}

// PoolsByGame returns every pool opened on a game.
func (e *Exchange) PoolsByGame(ctx context.Context, gameID string) ([]domain.Pool, error) {
	var pools []domain.Pool
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := loadGame(ctx, tx, gameID); err != nil {
			return err
		}
		var err error
		pools, err = tx.Pools().ListByGame(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: pools by game: %w", err)
	}
	return pools, nil
}

// MakerBalance is the pool's total maker liability, zero for unknown pools.
func (e *Exchange) MakerBalance(ctx context.Context, poolID domain.PoolID) (int64, error) {
	p, err := e.counters(ctx, poolID)
	return p.MakerLiability, err
}

// TakerBalance is the pool's total matched taker stake.
func (e *Exchange) TakerBalance(ctx context.Context, poolID domain.PoolID) (int64, error) {
	p, err := e.counters(ctx, poolID)
	return p.TakerMatched, err
}

// MatchedValue is the pool's cumulative matched stake.
func (e *Exchange) MatchedValue(ctx context.Context, poolID domain.PoolID) (int64, error) {
	p, err := e.counters(ctx, poolID)
	return p.MatchedValue, err
}

func (e *Exchange) counters(ctx context.Context, poolID domain.PoolID) (domain.Pool, error) {
	p, err := e.Pool(ctx, poolID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Pool{ID: poolID}, nil
	}
	return p, err
}

// ReceiptBalance returns holder's balance of a receipt token.
func (e *Exchange) ReceiptBalance(ctx context.Context, holder common.Address, tokenID domain.TokenID) (int64, error) {
	var bal int64
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		bal, err = tx.Coupons().Balance(ctx, holder, tokenID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: receipt balance: %w", err)
	}
	return bal, nil
}

// GameArchive collects an ended game's pools and ledger journal.
func (e *Exchange) GameArchive(ctx context.Context, gameID string) (domain.GameArchive, error) {
	var a domain.GameArchive
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if a.Game, err = loadGame(ctx, tx, gameID); err != nil {
			return err
		}
		if a.Pools, err = tx.Pools().ListByGame(ctx, gameID); err != nil {
			return err
		}
		a.Events, err = tx.Events().ListByGame(ctx, gameID)
		return err
	})
	if err != nil {
		return domain.GameArchive{}, fmt.Errorf("exchange: game archive: %w", err)
	}
	return a, nil
}

// PendingArchive lists ended games that have not been archived yet.
func (e *Exchange) PendingArchive(ctx context.Context, limit int) ([]domain.Game, error) {
	var games []domain.Game
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		games, err = tx.Games().ListUnarchived(ctx, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: pending archive: %w", err)
	}
	return games, nil
}

// MarkArchived records that gameID has been written to cold storage.
func (e *Exchange) MarkArchived(ctx context.Context, gameID string) error {
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		return w.tx.Games().MarkArchived(ctx, gameID, w.now)
	})
	if err != nil {
		return fmt.Errorf("exchange: mark archived: %w", err)
	}
	return nil
}
