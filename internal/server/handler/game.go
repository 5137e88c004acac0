package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// GameService is what the game handler needs from the exchange.
type GameService interface {
	StartGame(ctx context.Context, home, away, label []byte, start time.Time) (domain.GameView, error)
	EndGame(ctx context.Context, gameID string, takerWins bool) (domain.GameView, error)
	Game(ctx context.Context, gameID string) (domain.GameView, error)
	Games(ctx context.Context, opts domain.ListOpts) ([]domain.GameView, error)
	PoolsByGame(ctx context.Context, gameID string) ([]domain.Pool, error)
}

// GameHandler serves the game registry.
type GameHandler struct {
	games  GameService
	logger *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

type startGameRequest struct {
	HomeCode   string `json:"home_code"`
	AwayCode   string `json:"away_code"`
	MatchLabel string `json:"match_label"`
	StartTime  int64  `json:"start_time"` // unix seconds
}

// StartGame registers a fixture.
// POST /api/games
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.games.StartGame(r.Context(),
		[]byte(req.HomeCode), []byte(req.AwayCode), []byte(req.MatchLabel),
		time.Unix(req.StartTime, 0).UTC())
	if err != nil {
		writeExchangeError(w, r, h.logger, "start game", err)
		return
	}
	writeJSON(w, http.StatusCreated, gameView(g))
}

type endGameRequest struct {
	TakerWins *bool `json:"taker_wins"`
}

// EndGame records a game's outcome.
// POST /api/games/{id}/end
func (h *GameHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	var req endGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TakerWins == nil {
		writeError(w, http.StatusBadRequest, "taker_wins is required")
		return
	}

	g, err := h.games.EndGame(r.Context(), r.PathValue("id"), *req.TakerWins)
	if err != nil {
		writeExchangeError(w, r, h.logger, "end game", err)
		return
	}
	writeJSON(w, http.StatusOK, gameView(g))
}

type gameDetailResponse struct {
	gameResponse
	Pools []poolResponse `json:"pools"`
}

// GetGame returns a game and its pools.
// GET /api/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, err := h.games.Game(r.Context(), id)
	if err != nil {
		writeExchangeError(w, r, h.logger, "get game", err)
		return
	}
	pools, err := h.games.PoolsByGame(r.Context(), id)
	if err != nil {
		writeExchangeError(w, r, h.logger, "get game", err)
		return
	}

	resp := gameDetailResponse{gameResponse: gameView(g), Pools: make([]poolResponse, 0, len(pools))}
	for _, p := range pools {
		resp.Pools = append(resp.Pools, poolView(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListGames pages through games in registration order.
// GET /api/games?limit=50&offset=0
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.Games(r.Context(), parseListOpts(r))
	if err != nil {
		writeExchangeError(w, r, h.logger, "list games", err)
		return
	}
	out := make([]gameResponse, 0, len(games))
	for _, g := range games {
		out = append(out, gameView(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}
