package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// GameStore implements domain.GameStore inside a transaction.
type GameStore struct {
	q querier
}

const gameSelectCols = `id, home_code, away_code, match_label, start_time,
	ended, taker_wins, ended_at, archived_at, created_at`

func scanGame(row pgx.Row) (domain.Game, error) {
	var g domain.Game
	err := row.Scan(
		&g.ID, &g.HomeCode, &g.AwayCode, &g.MatchLabel, &g.StartTime,
		&g.Ended, &g.TakerWins, &g.EndedAt, &g.ArchivedAt, &g.CreatedAt,
	)
	g.StartTime = g.StartTime.UTC()
	return g, err
}

func scanGameRows(rows pgx.Rows) ([]domain.Game, error) {
	defer rows.Close()
	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// NextID bumps the game counter. The bump rolls back with the transaction,
// so ids have no gaps.
func (s *GameStore) NextID(ctx context.Context) (string, error) {
	var next int64
	err := s.q.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'game' RETURNING value`,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("postgres: next game id: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}

// Insert stores a new game. Its id must come from NextID.
func (s *GameStore) Insert(ctx context.Context, g domain.Game) error {
	seq, err := strconv.ParseInt(g.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("postgres: insert game: id %q: %w", g.ID, err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO games (id, seq, home_code, away_code, match_label, start_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, seq, nonNil(g.HomeCode), nonNil(g.AwayCode), nonNil(g.MatchLabel), g.StartTime, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert game %s: %w", g.ID, err)
	}
	return nil
}

// Get returns a game by id.
func (s *GameStore) Get(ctx context.Context, id string) (domain.Game, error) {
	g, err := scanGame(s.q.QueryRow(ctx,
		`SELECT `+gameSelectCols+` FROM games WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("postgres: get game %s: %w", id, err)
	}
	return g, nil
}

// FindLive returns a not-ended game with the same fixture.
func (s *GameStore) FindLive(ctx context.Context, fixture domain.Game) (domain.Game, error) {
	g, err := scanGame(s.q.QueryRow(ctx, `
		SELECT `+gameSelectCols+` FROM games
		WHERE NOT ended AND home_code = $1 AND away_code = $2
		  AND match_label = $3 AND start_time = $4
		ORDER BY seq LIMIT 1`,
		nonNil(fixture.HomeCode), nonNil(fixture.AwayCode), nonNil(fixture.MatchLabel), fixture.StartTime,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("postgres: find live game: %w", err)
	}
	return g, nil
}

// Update writes a game's lifecycle fields.
func (s *GameStore) Update(ctx context.Context, g domain.Game) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE games SET ended = $2, taker_wins = $3, ended_at = $4, archived_at = $5
		WHERE id = $1`,
		g.ID, g.Ended, g.TakerWins, g.EndedAt, g.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update game %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns games newest first.
func (s *GameStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Game, error) {
	query := `SELECT ` + gameSelectCols + ` FROM games ORDER BY seq DESC`
	var args []any
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list games: %w", err)
	}
	games, err := scanGameRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan games: %w", err)
	}
	return games, nil
}

// ListUnarchived returns ended games not yet archived, oldest first.
func (s *GameStore) ListUnarchived(ctx context.Context, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+gameSelectCols+` FROM games
		WHERE ended AND archived_at IS NULL
		ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived games: %w", err)
	}
	games, err := scanGameRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan games: %w", err)
	}
	return games, nil
}

// MarkArchived stamps archived_at on a game.
func (s *GameStore) MarkArchived(ctx context.Context, id string, at time.Time) error {
	tag, err := s.q.Exec(ctx, `UPDATE games SET archived_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark game %s archived: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
