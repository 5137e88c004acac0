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

// Make commits a maker's liability of stake*odds/100 (truncated) to the
// (odds, gameID) pool and mints stake maker receipts to caller.
func (e *Exchange) Make(ctx context.Context, caller common.Address, odds int64, gameID string, stake int64) (domain.Pool, error) {
	var pool domain.Pool
	var liability int64
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		var err error
		if pool, err = openPool(ctx, w, odds, gameID, stake); err != nil {
			return err
		}
		if liability, err = domain.Liability(stake, odds); err != nil {
			return err
		}
		if liability == 0 {
			return fmt.Errorf("stake %d at odds %d commits no liability: %w", stake, odds, domain.ErrInvalidAmount)
		}

		if pool.MakerLiability, err = domain.AddAmount(pool.MakerLiability, liability); err != nil {
			return err
		}
		if pool.MakerSupply, err = domain.AddAmount(pool.MakerSupply, stake); err != nil {
			return err
		}
		if err := w.cash.TransferFrom(ctx, e.account, caller, e.account, liability); err != nil {
			return err
		}
		if err := w.coupon.Mint(ctx, caller, pool.MakerTokenID, stake); err != nil {
			return err
		}
		if err := w.tx.Pools().Put(ctx, pool); err != nil {
			return fmt.Errorf("put pool: %w", err)
		}
		return w.record(ctx, domain.LedgerEvent{
			Kind:    domain.EventBetMade,
			GameID:  gameID,
			PoolID:  pool.ID,
			TokenID: pool.MakerTokenID,
			Account: caller,
			Odds:    odds,
			Amount:  stake,
			Payout:  liability,
		})
	})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("exchange: make: %w", err)
	}

	e.logger.Info("exchange: bet made",
		slog.String("pool_id", pool.ID.String()),
		slog.String("maker", caller.Hex()),
		slog.Int64("stake", stake),
		slog.Int64("liability", liability),
		slog.Int64("maker_liability", pool.MakerLiability),
	)
	return pool, nil
}

// Take matches stake against the pool's unmatched liability. The whole stake
// is matched or the call fails with ErrInsufficientLiquidity.
func (e *Exchange) Take(ctx context.Context, caller common.Address, odds int64, gameID string, stake int64) (domain.Pool, error) {
	var pool domain.Pool
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		var err error
		if pool, err = openPool(ctx, w, odds, gameID, stake); err != nil {
			return err
		}
		if available := pool.Available(); stake > available {
			return fmt.Errorf("stake %d exceeds unmatched liability %d: %w", stake, available, domain.ErrInsufficientLiquidity)
		}

		pool.TakerMatched += stake
		if pool.MatchedValue, err = domain.AddAmount(pool.MatchedValue, stake); err != nil {
			return err
		}
		pool.TakerSupply += stake
		if err := w.cash.TransferFrom(ctx, e.account, caller, e.account, stake); err != nil {
			return err
		}
		if err := w.coupon.Mint(ctx, caller, pool.TakerTokenID, stake); err != nil {
			return err
		}
		if err := w.tx.Pools().Put(ctx, pool); err != nil {
			return fmt.Errorf("put pool: %w", err)
		}
		return w.record(ctx, domain.LedgerEvent{
			Kind:    domain.EventBetTaken,
			GameID:  gameID,
			PoolID:  pool.ID,
			TokenID: pool.TakerTokenID,
			Account: caller,
			Odds:    odds,
			Amount:  stake,
		})
	})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("exchange: take: %w", err)
	}

	e.logger.Info("exchange: bet taken",
		slog.String("pool_id", pool.ID.String()),
		slog.String("taker", caller.Hex()),
		slog.Int64("stake", stake),
		slog.Int64("taker_matched", pool.TakerMatched),
	)
	return pool, nil
}

// openPool validates a bet and returns the pool it targets, creating an
// empty one on first use.
func openPool(ctx context.Context, w *work, odds int64, gameID string, stake int64) (domain.Pool, error) {
	if odds <= 0 {
		return domain.Pool{}, fmt.Errorf("odds %d: %w", odds, domain.ErrInvalidOdds)
	}
	if stake <= 0 {
		return domain.Pool{}, fmt.Errorf("stake %d: %w", stake, domain.ErrInvalidAmount)
	}
	game, err := loadGame(ctx, w.tx, gameID)
	if err != nil {
		return domain.Pool{}, err
	}
	if game.Ended {
		return domain.Pool{}, fmt.Errorf("game %s: %w", gameID, domain.ErrGameEnded)
	}

	pool, err := w.tx.Pools().Get(ctx, poolkey.PoolID(odds, gameID))
	if errors.Is(err, domain.ErrNotFound) {
		return poolkey.NewPool(odds, gameID), nil
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	return pool, nil
}
