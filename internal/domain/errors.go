package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrLockHeld     = errors.New("lock already held")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")

	// Game registry.
	ErrInvalidGame     = errors.New("invalid game")
	ErrInvalidSchedule = errors.New("start time must be in the future")
	ErrDuplicateGame   = errors.New("duplicate game")
	ErrUnknownGame     = errors.New("unknown game")
	ErrGameNotStarted  = errors.New("game not started")
	ErrAlreadyEnded    = errors.New("game already ended")
	ErrGameEnded       = errors.New("game ended")

	// Matching.
	ErrInvalidOdds           = errors.New("invalid odds")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// Settlement.
	ErrUnknownToken         = errors.New("unknown token")
	ErrNotSettleable        = errors.New("pool not settleable")
	ErrInsufficientPosition = errors.New("insufficient position")

	// Custody.
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrFaucetDisabled         = errors.New("faucet disabled")
)
