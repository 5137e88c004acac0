package custody

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// Coupon is a multi-token receipt ledger keyed by (holder, token id).
type Coupon struct {
	store domain.CouponStore
}

// NewCoupon binds the receipt ledger to store.
func NewCoupon(store domain.CouponStore) Coupon {
	return Coupon{store: store}
}

// BalanceOf returns holder's receipts of tokenID.
func (c Coupon) BalanceOf(ctx context.Context, holder common.Address, tokenID domain.TokenID) (int64, error) {
	bal, err := c.store.Balance(ctx, holder, tokenID)
	if err != nil {
		return 0, fmt.Errorf("custody: coupon balance: %w", err)
	}
	return bal, nil
}

// Mint issues amount receipts of tokenID to holder.
func (c Coupon) Mint(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: mint receipt %d: %w", amount, domain.ErrInvalidAmount)
	}
	bal, err := c.BalanceOf(ctx, holder, tokenID)
	if err != nil {
		return err
	}
	next, err := domain.AddAmount(bal, amount)
	if err != nil {
		return fmt.Errorf("custody: mint receipt: %w", err)
	}
	if err := c.store.SetBalance(ctx, holder, tokenID, next); err != nil {
		return fmt.Errorf("custody: set coupon balance: %w", err)
	}
	return nil
}

// Burn destroys amount receipts of tokenID held by holder.
func (c Coupon) Burn(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: burn receipt %d: %w", amount, domain.ErrInvalidAmount)
	}
	bal, err := c.BalanceOf(ctx, holder, tokenID)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("custody: burn %d of %s (balance %d): %w",
			amount, tokenID, bal, domain.ErrInsufficientPosition)
	}
	if err := c.store.SetBalance(ctx, holder, tokenID, bal-amount); err != nil {
		return fmt.Errorf("custody: set coupon balance: %w", err)
	}
	return nil
}
