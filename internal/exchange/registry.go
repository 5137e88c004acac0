package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// StartGame registers a fixture kicking off at start. Start times are kept at
// second precision and must be strictly later than now.
func (e *Exchange) StartGame(ctx context.Context, home, away, label []byte, start time.Time) (domain.GameView, error) {
	if len(home) == 0 || len(away) == 0 {
		return domain.GameView{}, fmt.Errorf("exchange: start game: empty team code: %w", domain.ErrInvalidGame)
	}

	var game domain.Game
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		if start.Unix() <= w.now.Unix() {
			return fmt.Errorf("start %s not after %s: %w",
				start.UTC().Format(time.RFC3339), w.now.UTC().Format(time.RFC3339), domain.ErrInvalidSchedule)
		}
		game = domain.Game{
			HomeCode:   home,
			AwayCode:   away,
			MatchLabel: label,
			StartTime:  time.Unix(start.Unix(), 0).UTC(),
			CreatedAt:  w.now,
		}

		existing, err := w.tx.Games().FindLive(ctx, game)
		switch {
		case err == nil:
			return fmt.Errorf("fixture already registered as game %s: %w", existing.ID, domain.ErrDuplicateGame)
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("find fixture: %w", err)
		}

		if game.ID, err = w.tx.Games().NextID(ctx); err != nil {
			return fmt.Errorf("next game id: %w", err)
		}
		if err := w.tx.Games().Insert(ctx, game); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		return w.record(ctx, domain.LedgerEvent{Kind: domain.EventGameStarted, GameID: game.ID})
	})
	if err != nil {
		return domain.GameView{}, fmt.Errorf("exchange: start game: %w", err)
	}

	e.logger.Info("exchange: game registered",
		slog.String("game_id", game.ID),
		slog.String("home", string(home)),
		slog.String("away", string(away)),
		slog.Time("start", game.StartTime),
	)
	return game.ViewAt(e.clock()), nil
}

// EndGame records the outcome of a game that has started. It succeeds at
// most once per game.
func (e *Exchange) EndGame(ctx context.Context, gameID string, takerWins bool) (domain.GameView, error) {
	var game domain.Game
	_, err := e.atomic(ctx, func(ctx context.Context, w *work) error {
		var err error
		if game, err = loadGame(ctx, w.tx, gameID); err != nil {
			return err
		}
		if game.Ended {
			return fmt.Errorf("game %s: %w", gameID, domain.ErrAlreadyEnded)
		}
		if w.now.Before(game.StartTime) {
			return fmt.Errorf("game %s starts %s: %w",
				gameID, game.StartTime.Format(time.RFC3339), domain.ErrGameNotStarted)
		}
		endedAt := w.now
		game.Ended = true
		game.TakerWins = takerWins
		game.EndedAt = &endedAt
		if err := w.tx.Games().Update(ctx, game); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		return w.record(ctx, domain.LedgerEvent{
			Kind:      domain.EventGameEnded,
			GameID:    gameID,
			TakerWins: takerWins,
		})
	})
	if err != nil {
		return domain.GameView{}, fmt.Errorf("exchange: end game: %w", err)
	}

	e.logger.Info("exchange: game ended",
		slog.String("game_id", gameID),
		slog.Bool("taker_wins", takerWins),
	)
	if e.notifier != nil {
		winner := "makers"
		if takerWins {
			winner = "takers"
		}
		msg := fmt.Sprintf("Game %s (%s vs %s) ended, %s win", gameID, game.HomeCode, game.AwayCode, winner)
		if err := e.notifier.Notify(ctx, string(domain.EventGameEnded), msg); err != nil {
			e.logger.Warn("exchange: notify failed", slog.String("error", err.Error()))
		}
	}
	return game.ViewAt(e.clock()), nil
}

// Game returns a registered game with its started flag evaluated now.
func (e *Exchange) Game(ctx context.Context, gameID string) (domain.GameView, error) {
	var game domain.Game
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		game, err = loadGame(ctx, tx, gameID)
		return err
	})
	if err != nil {
		return domain.GameView{}, fmt.Errorf("exchange: game: %w", err)
	}
	return game.ViewAt(e.clock()), nil
}

// Games lists registered games, newest first.
func (e *Exchange) Games(ctx context.Context, opts domain.ListOpts) ([]domain.GameView, error) {
	var games []domain.Game
	err := e.view(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		games, err = tx.Games().List(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: list games: %w", err)
	}
	now := e.clock()
	out := make([]domain.GameView, 0, len(games))
	for _, g := range games {
		out = append(out, g.ViewAt(now))
	}
	return out, nil
}
