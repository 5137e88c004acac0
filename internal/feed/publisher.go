package feed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// LedgerStream is the durable stream every event is appended to.
const LedgerStream = "ledger"

// GameChannel is the Pub/Sub channel carrying one game's events.
func GameChannel(gameID string) string {
	return "ledger:game:" + gameID
}

// AllGamesPattern matches every game channel.
const AllGamesPattern = "ledger:game:*"

// Publisher implements domain.EventPublisher on a SignalBus.
type Publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(bus domain.SignalBus, logger *slog.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Publish appends each event to the ledger stream and broadcasts it on its
// game channel. It keeps going past failures and returns them joined.
func (p *Publisher) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	var errs []error
	for _, ev := range events {
		payload, err := Encode(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.bus.StreamAppend(ctx, LedgerStream, payload); err != nil {
			errs = append(errs, err)
		}
		if err := p.bus.Publish(ctx, GameChannel(ev.GameID), payload); err != nil {
			errs = append(errs, err)
		}
		p.logger.Debug("feed: event published",
			slog.String("kind", string(ev.Kind)),
			slog.String("game_id", ev.GameID),
		)
	}
	return errors.Join(errs...)
}

var _ domain.EventPublisher = (*Publisher)(nil)
