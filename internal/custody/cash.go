// Package custody implements collateral and receipt ledger semantics on top
// of the transactional stores. Every method must be called with stores bound
// to the caller's transaction so that a failing operation leaves no partial
// balance change behind.
package custody

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// Cash is a fungible collateral ledger with allowances.
type Cash struct {
	store domain.CashStore
}

// NewCash binds the cash ledger to store.
func NewCash(store domain.CashStore) Cash {
	return Cash{store: store}
}

// BalanceOf returns the collateral held by account.
func (c Cash) BalanceOf(ctx context.Context, account common.Address) (int64, error) {
	bal, err := c.store.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("custody: cash balance: %w", err)
	}
	return bal, nil
}

// Allowance returns how much spender may move out of owner's balance.
func (c Cash) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	a, err := c.store.Allowance(ctx, owner, spender)
	if err != nil {
		return 0, fmt.Errorf("custody: cash allowance: %w", err)
	}
	return a, nil
}

// Mint credits amount to account. It backs the test faucet.
func (c Cash) Mint(ctx context.Context, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: mint %d: %w", amount, domain.ErrInvalidAmount)
	}
	bal, err := c.BalanceOf(ctx, to)
	if err != nil {
		return err
	}
	next, err := domain.AddAmount(bal, amount)
	if err != nil {
		return fmt.Errorf("custody: mint: %w", err)
	}
	return c.setBalance(ctx, to, next)
}

// Approve sets spender's allowance over owner's balance to amount.
func (c Cash) Approve(ctx context.Context, owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("custody: approve %d: %w", amount, domain.ErrInvalidAmount)
	}
	if err := c.store.SetAllowance(ctx, owner, spender, amount); err != nil {
		return fmt.Errorf("custody: set allowance: %w", err)
	}
	return nil
}

// Transfer moves amount from one account to another.
func (c Cash) Transfer(ctx context.Context, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: transfer %d: %w", amount, domain.ErrInvalidAmount)
	}
	fromBal, err := c.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("custody: transfer %d from %s (balance %d): %w",
			amount, from.Hex(), fromBal, domain.ErrInsufficientCollateral)
	}
	if from == to {
		return nil
	}
	toBal, err := c.BalanceOf(ctx, to)
	if err != nil {
		return err
	}
	next, err := domain.AddAmount(toBal, amount)
	if err != nil {
		return fmt.Errorf("custody: transfer: %w", err)
	}
	if err := c.setBalance(ctx, from, fromBal-amount); err != nil {
		return err
	}
	return c.setBalance(ctx, to, next)
}

// TransferFrom moves amount from owner to to on behalf of spender, consuming
// spender's allowance.
func (c Cash) TransferFrom(ctx context.Context, spender, owner, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: transferFrom %d: %w", amount, domain.ErrInvalidAmount)
	}
	allowed, err := c.Allowance(ctx, owner, spender)
	if err != nil {
		return err
	}
	if allowed < amount {
		return fmt.Errorf("custody: transferFrom %d from %s (allowance %d): %w",
			amount, owner.Hex(), allowed, domain.ErrInsufficientAllowance)
	}
	if err := c.Transfer(ctx, owner, to, amount); err != nil {
		return err
	}
	if err := c.store.SetAllowance(ctx, owner, spender, allowed-amount); err != nil {
		return fmt.Errorf("custody: spend allowance: %w", err)
	}
	return nil
}

func (c Cash) setBalance(ctx context.Context, account common.Address, amount int64) error {
	if err := c.store.SetBalance(ctx, account, amount); err != nil {
		return fmt.Errorf("custody: set cash balance: %w", err)
	}
	return nil
}
