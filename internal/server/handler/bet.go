package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// BetService is what the bet handler needs from the exchange.
type BetService interface {
	Make(ctx context.Context, caller common.Address, odds int64, gameID string, stake int64) (domain.Pool, error)
	Take(ctx context.Context, caller common.Address, odds int64, gameID string, stake int64) (domain.Pool, error)
}

// BetHandler places maker and taker bets for the calling account.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type betRequest struct {
	GameID string `json:"game_id"`
	Odds   int64  `json:"odds"`
	Stake  int64  `json:"stake"`
}

// Make posts liquidity: the caller's stake backs takers at the given odds.
// POST /api/bets/make
func (h *BetHandler) Make(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, "make bet", h.bets.Make)
}

// Take matches the caller's stake against available maker liquidity.
// POST /api/bets/take
func (h *BetHandler) Take(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, "take bet", h.bets.Take)
}

func (h *BetHandler) place(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, common.Address, int64, string, int64) (domain.Pool, error)) {
	account, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req betRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := fn(r.Context(), account, req.Odds, req.GameID, req.Stake)
	if err != nil {
		writeExchangeError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, poolView(p))
}
