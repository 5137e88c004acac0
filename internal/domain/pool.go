package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// OddsScale is the fixed-point denominator of odds: 182 means 1.82x.
const OddsScale = 100

// CollateralDecimals is the number of implicit decimals of collateral units.
const CollateralDecimals = 6

// Hash32 is a 32-byte identifier rendered as 0x-prefixed hex.
type Hash32 [32]byte

func (h Hash32) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is all zero bytes.
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash32(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash32 decodes a 0x-prefixed (or bare) 64-character hex string.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse hash %q: want 32 bytes, got %d", s, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// PoolID identifies the pool for one (odds, game) pair.
type PoolID = Hash32

// TokenID identifies one side's receipt token of a pool.
type TokenID = Hash32

// Side is the role of a position within a pool.
type Side uint8

const (
	SideMaker Side = 0
	SideTaker Side = 1
)

func (s Side) String() string {
	switch s {
	case SideMaker:
		return "maker"
	case SideTaker:
		return "taker"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Pool holds the liquidity and settlement counters for one (odds, game) pair.
// All amounts are collateral units.
type Pool struct {
	ID           PoolID
	GameID       string
	Odds         int64
	MakerTokenID TokenID
	TakerTokenID TokenID

	MakerLiability int64 // total liability committed by makers
	TakerMatched   int64 // total taker stake matched, never above MakerLiability
	MatchedValue   int64 // cumulative matched stake, monotonic

	MakerSupply int64 // outstanding maker receipts
	TakerSupply int64 // outstanding taker receipts

	Settled  bool
	MakerPot int64 // collateral still owed to maker receipts
	TakerPot int64 // collateral still owed to taker receipts
	PaidOut  int64
}

// NewPool returns an empty pool with its identifiers set.
func NewPool(id PoolID, gameID string, odds int64, maker, taker TokenID) Pool {
	return Pool{ID: id, GameID: gameID, Odds: odds, MakerTokenID: maker, TakerTokenID: taker}
}

// Available is the liability not yet matched by takers.
func (p Pool) Available() int64 {
	return p.MakerLiability - p.TakerMatched
}

// Escrowed is the collateral the exchange holds for the pool.
func (p Pool) Escrowed() int64 {
	return p.MakerLiability + p.TakerMatched
}

// Redeemed returns p after amount receipts of side were burned for payout.
func (p Pool) Redeemed(side Side, amount, payout int64) Pool {
	if side == SideTaker {
		p.TakerSupply -= amount
		p.TakerPot -= payout
	} else {
		p.MakerSupply -= amount
		p.MakerPot -= payout
	}
	p.PaidOut += payout
	return p
}
