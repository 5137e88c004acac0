package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/custody"
	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// Faucet mints test collateral to account when the faucet is enabled.
func (e *Exchange) Faucet(ctx context.Context, account common.Address, amount int64) (int64, error) {
	if e.faucetCap <= 0 {
		return 0, fmt.Errorf("exchange: faucet: %w", domain.ErrFaucetDisabled)
	}
	if amount > e.faucetCap {
		return 0, fmt.Errorf("exchange: faucet %d above limit %d: %w", amount, e.faucetCap, domain.ErrInvalidAmount)
	}
	var bal int64
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		if err := w.cash.Mint(ctx, account, amount); err != nil {
			return err
		}
		var err error
		bal, err = w.cash.BalanceOf(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: faucet: %w", err)
	}
	e.logger.Debug("exchange: faucet",
		slog.String("account", account.Hex()),
		slog.Int64("amount", amount),
	)
	return bal, nil
}

// Approve sets how much spender may pull from owner's collateral.
func (e *Exchange) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		return w.cash.Approve(ctx, owner, spender, amount)
	})
	if err != nil {
		return fmt.Errorf("exchange: approve: %w", err)
	}
	return nil
}

// CashBalance returns account's collateral balance.
func (e *Exchange) CashBalance(ctx context.Context, account common.Address) (int64, error) {
	var bal int64
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		bal, err = custody.NewCash(tx.Cash()).BalanceOf(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: cash balance: %w", err)
	}
	return bal, nil
}

// Allowance returns spender's remaining allowance over owner's collateral.
func (e *Exchange) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	var a int64
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		a, err = custody.NewCash(tx.Cash()).Allowance(ctx, owner, spender)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: allowance: %w", err)
	}
	return a, nil
}
