package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/feed"
)

// StreamReader reads the durable ledger stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// EventHandler replays recent ledger events so clients can catch up after a
// WebSocket reconnect.
type EventHandler struct {
	stream StreamReader
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(stream StreamReader, logger *slog.Logger) *EventHandler {
	return &EventHandler{stream: stream, logger: logger}
}

type streamEntry struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// List returns up to limit events after the given stream id.
// GET /api/events?after=0&limit=100
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after := q.Get("after")
	if after == "" {
		after = "0"
	}
	limit := 100
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, 1000)
	}

	msgs, err := h.stream.StreamRead(r.Context(), feed.LedgerStream, after, limit)
	if err != nil {
		writeExchangeError(w, r, h.logger, "read events", err)
		return
	}

	out := make([]streamEntry, 0, len(msgs))
	for _, m := range msgs {
		data, err := feed.JSON(m.Payload)
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: skipping undecodable event",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, streamEntry{ID: m.ID, Event: data})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
