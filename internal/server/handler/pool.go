package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// PoolService is what the pool handler needs from the exchange.
type PoolService interface {
	PoolFor(ctx context.Context, odds int64, gameID string) (domain.Pool, error)
	Pool(ctx context.Context, poolID domain.PoolID) (domain.Pool, error)
}

// PoolHandler serves pool identities and counters.
type PoolHandler struct {
	pools  PoolService
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pools PoolService, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{pools: pools, logger: logger}
}

// ForGame returns the pool for a game at given odds. Pools nobody has bet on
// are returned with zero counters.
// GET /api/games/{id}/pools/{odds}
func (h *PoolHandler) ForGame(w http.ResponseWriter, r *http.Request) {
	odds, err := parseOdds(r.PathValue("odds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.pools.PoolFor(r.Context(), odds, r.PathValue("id"))
	if err != nil {
		writeExchangeError(w, r, h.logger, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, poolView(p))
}

// Get returns a pool's counters by id.
// GET /api/pools/{poolID}
func (h *PoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseHash32(r.PathValue("poolID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.pools.Pool(r.Context(), id)
	if err != nil {
		writeExchangeError(w, r, h.logger, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, poolView(p))
}
