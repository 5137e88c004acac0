package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/exchange"
)

// RedeemService is what the redeem handler needs from the exchange.
type RedeemService interface {
	Redeem(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) (exchange.Redemption, error)
	PreviewRedeem(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) (exchange.Redemption, error)
	ReceiptBalance(ctx context.Context, holder common.Address, tokenID domain.TokenID) (int64, error)
}

// RedeemHandler serves receipt balances and redemption.
type RedeemHandler struct {
	redeem RedeemService
	logger *slog.Logger
}

// NewRedeemHandler creates a RedeemHandler.
func NewRedeemHandler(redeem RedeemService, logger *slog.Logger) *RedeemHandler {
	return &RedeemHandler{redeem: redeem, logger: logger}
}

type redeemRequest struct {
	TokenID domain.TokenID `json:"token_id"`
	Amount  int64          `json:"amount"`
}

type redemptionResponse struct {
	PoolID  domain.PoolID  `json:"pool_id"`
	TokenID domain.TokenID `json:"token_id"`
	Side    string         `json:"side"`
	Amount  int64          `json:"amount"`
	Payout  int64          `json:"payout"`
}

func redemptionView(r exchange.Redemption) redemptionResponse {
	return redemptionResponse{
		PoolID:  r.PoolID,
		TokenID: r.TokenID,
		Side:    r.Side.String(),
		Amount:  r.Amount,
		Payout:  r.Payout,
	}
}

// Redeem burns the caller's receipts and pays out their share.
// POST /api/redeem
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	account, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.redeem.Redeem(r.Context(), account, req.TokenID, req.Amount)
	if err != nil {
		writeExchangeError(w, r, h.logger, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, redemptionView(res))
}

// Preview quotes a redemption without changing anything.
// GET /api/redeem/preview?token_id=0x...&amount=...
func (h *RedeemHandler) Preview(w http.ResponseWriter, r *http.Request) {
	account, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	tokenID, err := domain.ParseHash32(q.Get("token_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	res, err := h.redeem.PreviewRedeem(r.Context(), account, tokenID, amount)
	if err != nil {
		writeExchangeError(w, r, h.logger, "preview redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, redemptionView(res))
}

// Receipts returns an account's balance of one receipt token.
// GET /api/receipts/{address}/{tokenID}
func (h *RedeemHandler) Receipts(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokenID, err := domain.ParseHash32(r.PathValue("tokenID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.redeem.ReceiptBalance(r.Context(), account, tokenID)
	if err != nil {
		writeExchangeError(w, r, h.logger, "receipt balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  account.Hex(),
		"token_id": tokenID,
		"balance":  bal,
	})
}
