package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a ledger event.
type EventKind string

const (
	EventGameStarted EventKind = "game_started"
	EventGameEnded   EventKind = "game_ended"
	EventBetMade     EventKind = "bet_made"
	EventBetTaken    EventKind = "bet_taken"
	EventPoolSettled EventKind = "pool_settled"
	EventRedeemed    EventKind = "redeemed"
)

// LedgerEvent is an append-only record of a committed exchange mutation.
type LedgerEvent struct {
	ID        string
	Kind      EventKind
	GameID    string
	PoolID    PoolID // zero for game-level events
	TokenID   TokenID
	Account   common.Address
	Odds      int64
	Amount    int64 // stake, liability or redeemed receipts depending on Kind
	Payout    int64
	TakerWins bool
	CreatedAt time.Time
}
