package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// Redemption is the result of redeeming (or previewing) receipts.
type Redemption struct {
	PoolID  domain.PoolID
	TokenID domain.TokenID
	Side    domain.Side
	Amount  int64
	Payout  int64
}

// Redeem burns amount of holder's tokenID receipts and pays out their share
// of the pool. The game must have ended; losing receipts pay zero.
func (e *Exchange) Redeem(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) (Redemption, error) {
	var r Redemption
	var pool domain.Pool
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		var game domain.Game
		var err error
		pool, game, r, err = prepareRedeem(ctx, w.tx, holder, tokenID, amount)
		if err != nil {
			return err
		}
		if !pool.Settled {
			if pool, err = settle(pool, game); err != nil {
				return err
			}
			if err := w.record(ctx, domain.LedgerEvent{
				Kind:      domain.EventPoolSettled,
				GameID:    pool.GameID,
				PoolID:    pool.ID,
				Odds:      pool.Odds,
				Amount:    pool.Escrowed(),
				TakerWins: game.TakerWins,
			}); err != nil {
				return err
			}
		}
		if r.Payout, err = quote(pool, r.Side, amount); err != nil {
			return err
		}

		if err := w.coupon.Burn(ctx, holder, tokenID, amount); err != nil {
			return err
		}
		if r.Payout > 0 {
			if err := w.cash.Transfer(ctx, e.account, holder, r.Payout); err != nil {
				return err
			}
		}
		pool = pool.Redeemed(r.Side, amount, r.Payout)
		if err := w.tx.Pools().Put(ctx, pool); err != nil {
			return fmt.Errorf("put pool: %w", err)
		}
		return w.record(ctx, domain.LedgerEvent{
			Kind:      domain.EventRedeemed,
			GameID:    pool.GameID,
			PoolID:    pool.ID,
			TokenID:   tokenID,
			Account:   holder,
			Odds:      pool.Odds,
			Amount:    amount,
			Payout:    r.Payout,
			TakerWins: game.TakerWins,
		})
	})
	if err != nil {
		return Redemption{}, fmt.Errorf("exchange: redeem: %w", err)
	}

	e.logger.Info("exchange: receipts redeemed",
		slog.String("pool_id", pool.ID.String()),
		slog.String("holder", holder.Hex()),
		slog.String("side", r.Side.String()),
		slog.Int64("amount", amount),
		slog.Int64("payout", r.Payout),
		slog.Int64("paid_out", pool.PaidOut),
	)
	return r, nil
}

// PreviewRedeem computes what Redeem would pay without changing anything.
func (e *Exchange) PreviewRedeem(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) (Redemption, error) {
	var r Redemption
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		pool, game, prepared, err := prepareRedeem(ctx, tx, holder, tokenID, amount)
		if err != nil {
			return err
		}
		if pool, err = settle(pool, game); err != nil {
			return err
		}
		r = prepared
		r.Payout, err = quote(pool, r.Side, amount)
		return err
	})
	if err != nil {
		return Redemption{}, fmt.Errorf("exchange: preview redeem: %w", err)
	}
	return r, nil
}

// prepareRedeem resolves the token's pool and game and checks the
// preconditions shared by Redeem and PreviewRedeem.
func prepareRedeem(ctx context.Context, tx domain.Tx, holder common.Address, tokenID domain.TokenID, amount int64) (domain.Pool, domain.Game, Redemption, error) {
	fail := func(err error) (domain.Pool, domain.Game, Redemption, error) {
		return domain.Pool{}, domain.Game{}, Redemption{}, err
	}
	if amount <= 0 {
		return fail(fmt.Errorf("amount %d: %w", amount, domain.ErrInvalidAmount))
	}
	pool, side, err := tx.Pools().GetByToken(ctx, tokenID)
	if errors.Is(err, domain.ErrNotFound) {
		return fail(fmt.Errorf("token %s: %w", tokenID, domain.ErrUnknownToken))
	}
	if err != nil {
		return fail(fmt.Errorf("load pool by token: %w", err))
	}
	game, err := loadGame(ctx, tx, pool.GameID)
	if err != nil {
		return fail(err)
	}
	if !game.Ended {
		return fail(fmt.Errorf("game %s has not ended: %w", game.ID, domain.ErrNotSettleable))
	}
	bal, err := tx.Coupons().Balance(ctx, holder, tokenID)
	if err != nil {
		return fail(fmt.Errorf("receipt balance: %w", err))
	}
	if amount > bal {
		return fail(fmt.Errorf("redeem %d of %s (balance %d): %w", amount, tokenID, bal, domain.ErrInsufficientPosition))
	}
	return pool, game, Redemption{PoolID: pool.ID, TokenID: tokenID, Side: side, Amount: amount}, nil
}

// settle splits the pool's escrow between the two sides once the outcome is
// known. Winning takers are owed their matched stake at the pool's odds;
// makers are owed whatever remains. The split never exceeds the escrow.
func settle(pool domain.Pool, game domain.Game) (domain.Pool, error) {
	if pool.Settled {
		return pool, nil
	}
	escrow := pool.Escrowed()
	pool.MakerPot, pool.TakerPot = escrow, 0
	if game.TakerWins {
		owed, err := domain.MulDiv(pool.TakerMatched, pool.Odds, domain.OddsScale)
		if err != nil {
			return pool, err
		}
		pool.TakerPot = min(owed, escrow)
		pool.MakerPot = escrow - pool.TakerPot
	}
	pool.Settled = true
	return pool, nil
}

// quote is the pro-rata share of the side's remaining pot for amount of its
// remaining receipts. The final receipt of a side collects any rounding
// remainder.
func quote(pool domain.Pool, side domain.Side, amount int64) (int64, error) {
	pot, supply := pool.MakerPot, pool.MakerSupply
	if side == domain.SideTaker {
		pot, supply = pool.TakerPot, pool.TakerSupply
	}
	if amount > supply {
		return 0, fmt.Errorf("redeem %d exceeds %s supply %d: %w", amount, side, supply, domain.ErrInsufficientPosition)
	}
	if pot == 0 {
		return 0, nil
	}
	return domain.MulDiv(amount, pot, supply)
}
