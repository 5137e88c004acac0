package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// GameLookup resolves a game id.
type GameLookup interface {
	Game(ctx context.Context, gameID string) (domain.GameView, error)
}

// ArchiveHandler serves games archived to object storage.
type ArchiveHandler struct {
	games    GameLookup
	archives domain.ArchiveReader
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(games GameLookup, archives domain.ArchiveReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{games: games, archives: archives, logger: logger}
}

type archiveInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Download streams a game's JSONL archive.
// GET /api/games/{id}/archive
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.Game(r.Context(), r.PathValue("id"))
	if err != nil {
		writeExchangeError(w, r, h.logger, "get game", err)
		return
	}
	body, err := h.archives.OpenArchive(r.Context(), g.Game)
	if err != nil {
		writeExchangeError(w, r, h.logger, "open archive", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("game_id", g.ID),
			slog.String("error", err.Error()),
		)
	}
}

// List returns stored archives, optionally for one month of kick-offs.
// GET /api/archives?month=2026-10
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}
	infos, err := h.archives.ListArchives(r.Context(), month)
	if err != nil {
		writeExchangeError(w, r, h.logger, "list archives", err)
		return
	}
	out := make([]archiveInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, archiveInfo{Path: info.Path, Size: info.Size, LastModified: info.LastModified})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}
