package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// PoolStore implements domain.PoolStore inside a transaction.
type PoolStore struct {
	q querier
}

const poolSelectCols = `id, game_id, odds, maker_token_id, taker_token_id,
	maker_liability, taker_matched, matched_value, maker_supply, taker_supply,
	settled, maker_pot, taker_pot, paid_out`

func scanPool(row pgx.Row) (domain.Pool, error) {
	var (
		p                    domain.Pool
		id, makerID, takerID []byte
	)
	err := row.Scan(
		&id, &p.GameID, &p.Odds, &makerID, &takerID,
		&p.MakerLiability, &p.TakerMatched, &p.MatchedValue, &p.MakerSupply, &p.TakerSupply,
		&p.Settled, &p.MakerPot, &p.TakerPot, &p.PaidOut,
	)
	if err != nil {
		return domain.Pool{}, err
	}
	p.ID = scanHash(id)
	p.MakerTokenID = scanHash(makerID)
	p.TakerTokenID = scanHash(takerID)
	return p, nil
}

// Get returns a pool by id.
func (s *PoolStore) Get(ctx context.Context, id domain.PoolID) (domain.Pool, error) {
	p, err := scanPool(s.q.QueryRow(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE id = $1`, hashBytes(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", id, err)
	}
	return p, nil
}

// GetByToken resolves the pool and side of a receipt token.
func (s *PoolStore) GetByToken(ctx context.Context, tokenID domain.TokenID) (domain.Pool, domain.Side, error) {
	p, err := scanPool(s.q.QueryRow(ctx, `
		SELECT `+poolSelectCols+` FROM pools
		WHERE maker_token_id = $1 OR taker_token_id = $1`, hashBytes(tokenID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, 0, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, 0, fmt.Errorf("postgres: get pool by token %s: %w", tokenID, err)
	}
	if p.TakerTokenID == tokenID {
		return p, domain.SideTaker, nil
	}
	return p, domain.SideMaker, nil
}

// Put inserts or replaces a pool's counters.
func (s *PoolStore) Put(ctx context.Context, p domain.Pool) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO pools (
			id, game_id, odds, maker_token_id, taker_token_id,
			maker_liability, taker_matched, matched_value, maker_supply, taker_supply,
			settled, maker_pot, taker_pot, paid_out
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			maker_liability = EXCLUDED.maker_liability,
			taker_matched   = EXCLUDED.taker_matched,
			matched_value   = EXCLUDED.matched_value,
			maker_supply    = EXCLUDED.maker_supply,
			taker_supply    = EXCLUDED.taker_supply,
			settled         = EXCLUDED.settled,
			maker_pot       = EXCLUDED.maker_pot,
			taker_pot       = EXCLUDED.taker_pot,
			paid_out        = EXCLUDED.paid_out,
			updated_at      = NOW()`,
		hashBytes(p.ID), p.GameID, p.Odds, hashBytes(p.MakerTokenID), hashBytes(p.TakerTokenID),
		p.MakerLiability, p.TakerMatched, p.MatchedValue, p.MakerSupply, p.TakerSupply,
		p.Settled, p.MakerPot, p.TakerPot, p.PaidOut,
	)
	if err != nil {
		return fmt.Errorf("postgres: put pool %s: %w", p.ID, err)
	}
	return nil
}

// ListByGame returns a game's pools ordered by odds.
func (s *PoolStore) ListByGame(ctx context.Context, gameID string) ([]domain.Pool, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE game_id = $1 ORDER BY odds`, gameID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}
