package domain

import (
	"fmt"
	"math"
	"math/big"
)

// MulDiv returns floor(a*b/c) for non-negative operands, failing with
// ErrInvalidAmount when the result does not fit in an int64.
func MulDiv(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 || c <= 0 {
		return 0, fmt.Errorf("muldiv(%d, %d, %d): %w", a, b, c, ErrInvalidAmount)
	}
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	r.Quo(r, big.NewInt(c))
	if !r.IsInt64() {
		return 0, fmt.Errorf("muldiv(%d, %d, %d): overflow: %w", a, b, c, ErrInvalidAmount)
	}
	return r.Int64(), nil
}

// AddAmount returns a+b, failing on overflow.
func AddAmount(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("add %d + %d: overflow: %w", a, b, ErrInvalidAmount)
	}
	return a + b, nil
}

// Liability is the collateral a maker commits for stake at odds.
func Liability(stake, odds int64) (int64, error) {
	return MulDiv(stake, odds, OddsScale)
}

// FormatUnits renders an amount with CollateralDecimals decimals.
func FormatUnits(v int64) string {
	neg := v < 0
	u := new(big.Int).Abs(big.NewInt(v))
	scale := big.NewInt(1_000_000)
	q, r := new(big.Int).QuoRem(u, scale, new(big.Int))
	s := fmt.Sprintf("%s.%06d", q.String(), r.Int64())
	if neg {
		s = "-" + s
	}
	return s
}
