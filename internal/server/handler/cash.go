package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// CashService is what the cash handler needs from the exchange.
type CashService interface {
	Account() common.Address
	Faucet(ctx context.Context, account common.Address, amount int64) (int64, error)
	Approve(ctx context.Context, owner, spender common.Address, amount int64) error
	CashBalance(ctx context.Context, account common.Address) (int64, error)
	Allowance(ctx context.Context, owner, spender common.Address) (int64, error)
}

// CashHandler serves the collateral token.
type CashHandler struct {
	cash   CashService
	logger *slog.Logger
}

// NewCashHandler creates a CashHandler.
func NewCashHandler(cash CashService, logger *slog.Logger) *CashHandler {
	return &CashHandler{cash: cash, logger: logger}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type cashResponse struct {
	Address   string `json:"address"`
	Balance   int64  `json:"balance"`
	Allowance int64  `json:"allowance"`
	Display   string `json:"display"`
}

// Faucet mints test collateral to the caller.
// POST /api/cash/faucet
func (h *CashHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	account, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.cash.Faucet(r.Context(), account, req.Amount)
	if err != nil {
		writeExchangeError(w, r, h.logger, "faucet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": account.Hex(), "balance": bal})
}

// Approve sets how much of the caller's collateral the exchange may escrow.
// POST /api/cash/approve
func (h *CashHandler) Approve(w http.ResponseWriter, r *http.Request) {
	account, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.cash.Approve(r.Context(), account, h.cash.Account(), req.Amount); err != nil {
		writeExchangeError(w, r, h.logger, "approve", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     account.Hex(),
		"spender":   h.cash.Account().Hex(),
		"allowance": req.Amount,
	})
}

// Balance returns an account's collateral and its allowance to the exchange.
// GET /api/cash/{address}
func (h *CashHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := h.cash.CashBalance(r.Context(), account)
	if err != nil {
		writeExchangeError(w, r, h.logger, "cash balance", err)
		return
	}
	allowance, err := h.cash.Allowance(r.Context(), account, h.cash.Account())
	if err != nil {
		writeExchangeError(w, r, h.logger, "cash balance", err)
		return
	}
	writeJSON(w, http.StatusOK, cashResponse{
		Address:   account.Hex(),
		Balance:   bal,
		Allowance: allowance,
		Display:   domain.FormatUnits(bal),
	})
}
