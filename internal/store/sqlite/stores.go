package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

type gameStore struct {
	q querier
}

const gameSelectCols = `id, home_code, away_code, match_label, start_time,
	ended, taker_wins, ended_at, archived_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (domain.Game, error) {
	var (
		g                 domain.Game
		start, created    int64
		endedAt, archived sql.NullInt64
	)
	if err := row.Scan(
		&g.ID, &g.HomeCode, &g.AwayCode, &g.MatchLabel, &start,
		&g.Ended, &g.TakerWins, &endedAt, &archived, &created,
	); err != nil {
		return domain.Game{}, err
	}
	g.StartTime = fromNanos(start)
	g.CreatedAt = fromNanos(created)
	g.EndedAt = scanOptionalTime(endedAt)
	g.ArchivedAt = scanOptionalTime(archived)
	return g, nil
}

func (s *gameStore) queryGames(ctx context.Context, query string, args ...any) ([]domain.Game, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
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

func (s *gameStore) NextID(ctx context.Context) (string, error) {
	var next int64
	err := s.q.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'game' RETURNING value`,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("sqlite: next game id: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}

func (s *gameStore) Insert(ctx context.Context, g domain.Game) error {
	seq, err := strconv.ParseInt(g.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("sqlite: insert game: id %q: %w", g.ID, err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO games (id, seq, home_code, away_code, match_label, start_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, seq, nonNil(g.HomeCode), nonNil(g.AwayCode), nonNil(g.MatchLabel),
		toNanos(g.StartTime), toNanos(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert game %s: %w", g.ID, err)
	}
	return nil
}

func (s *gameStore) Get(ctx context.Context, id string) (domain.Game, error) {
	g, err := scanGame(s.q.QueryRowContext(ctx,
		`SELECT `+gameSelectCols+` FROM games WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Game{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("sqlite: get game %s: %w", id, err)
	}
	return g, nil
}

func (s *gameStore) FindLive(ctx context.Context, fixture domain.Game) (domain.Game, error) {
	g, err := scanGame(s.q.QueryRowContext(ctx, `
		SELECT `+gameSelectCols+` FROM games
		WHERE ended = 0 AND home_code = ? AND away_code = ?
		  AND match_label = ? AND start_time = ?
		ORDER BY seq LIMIT 1`,
		nonNil(fixture.HomeCode), nonNil(fixture.AwayCode), nonNil(fixture.MatchLabel),
		toNanos(fixture.StartTime),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Game{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("sqlite: find live game: %w", err)
	}
	return g, nil
}

func (s *gameStore) Update(ctx context.Context, g domain.Game) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE games SET ended = ?, taker_wins = ?, ended_at = ?, archived_at = ?
		WHERE id = ?`,
		g.Ended, g.TakerWins, optionalNanos(g.EndedAt), optionalNanos(g.ArchivedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update game %s: %w", g.ID, err)
	}
	return requireRow(res)
}

func (s *gameStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Game, error) {
	limit := int64(-1)
	if opts.Limit > 0 {
		limit = int64(opts.Limit)
	}
	games, err := s.queryGames(ctx,
		`SELECT `+gameSelectCols+` FROM games ORDER BY seq DESC LIMIT ? OFFSET ?`,
		limit, max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list games: %w", err)
	}
	return games, nil
}

func (s *gameStore) ListUnarchived(ctx context.Context, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = 100
	}
	games, err := s.queryGames(ctx, `
		SELECT `+gameSelectCols+` FROM games
		WHERE ended = 1 AND archived_at IS NULL
		ORDER BY seq LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list unarchived games: %w", err)
	}
	return games, nil
}

func (s *gameStore) MarkArchived(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `UPDATE games SET archived_at = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: mark game %s archived: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type poolStore struct {
	q querier
}

const poolSelectCols = `id, game_id, odds, maker_token_id, taker_token_id,
	maker_liability, taker_matched, matched_value, maker_supply, taker_supply,
	settled, maker_pot, taker_pot, paid_out`

func scanPool(row scanner) (domain.Pool, error) {
	var (
		p                    domain.Pool
		id, makerID, takerID []byte
	)
	if err := row.Scan(
		&id, &p.GameID, &p.Odds, &makerID, &takerID,
		&p.MakerLiability, &p.TakerMatched, &p.MatchedValue, &p.MakerSupply, &p.TakerSupply,
		&p.Settled, &p.MakerPot, &p.TakerPot, &p.PaidOut,
	); err != nil {
		return domain.Pool{}, err
	}
	p.ID = scanHash(id)
	p.MakerTokenID = scanHash(makerID)
	p.TakerTokenID = scanHash(takerID)
	return p, nil
}

func (s *poolStore) Get(ctx context.Context, id domain.PoolID) (domain.Pool, error) {
	p, err := scanPool(s.q.QueryRowContext(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE id = ?`, id[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pool{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("sqlite: get pool %s: %w", id, err)
	}
	return p, nil
}

func (s *poolStore) GetByToken(ctx context.Context, tokenID domain.TokenID) (domain.Pool, domain.Side, error) {
	p, err := scanPool(s.q.QueryRowContext(ctx, `
		SELECT `+poolSelectCols+` FROM pools
		WHERE maker_token_id = ?1 OR taker_token_id = ?1`, tokenID[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pool{}, 0, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, 0, fmt.Errorf("sqlite: get pool by token %s: %w", tokenID, err)
	}
	if p.TakerTokenID == tokenID {
		return p, domain.SideTaker, nil
	}
	return p, domain.SideMaker, nil
}

func (s *poolStore) Put(ctx context.Context, p domain.Pool) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO pools (
			id, game_id, odds, maker_token_id, taker_token_id,
			maker_liability, taker_matched, matched_value, maker_supply, taker_supply,
			settled, maker_pot, taker_pot, paid_out
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			maker_liability = excluded.maker_liability,
			taker_matched   = excluded.taker_matched,
			matched_value   = excluded.matched_value,
			maker_supply    = excluded.maker_supply,
			taker_supply    = excluded.taker_supply,
			settled         = excluded.settled,
			maker_pot       = excluded.maker_pot,
			taker_pot       = excluded.taker_pot,
			paid_out        = excluded.paid_out`,
		p.ID[:], p.GameID, p.Odds, p.MakerTokenID[:], p.TakerTokenID[:],
		p.MakerLiability, p.TakerMatched, p.MatchedValue, p.MakerSupply, p.TakerSupply,
		p.Settled, p.MakerPot, p.TakerPot, p.PaidOut,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put pool %s: %w", p.ID, err)
	}
	return nil
}

func (s *poolStore) ListByGame(ctx context.Context, gameID string) ([]domain.Pool, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE game_id = ? ORDER BY odds`, gameID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list pools for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

type cashStore struct {
	q querier
}

func (s *cashStore) Balance(ctx context.Context, account common.Address) (int64, error) {
	return scalarAmount(ctx, s.q, `SELECT amount FROM cash_balances WHERE account = ?`, account.Bytes())
}

func (s *cashStore) SetBalance(ctx context.Context, account common.Address, amount int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cash_balances (account, amount) VALUES (?, ?)
		ON CONFLICT (account) DO UPDATE SET amount = excluded.amount`,
		account.Bytes(), amount)
	if err != nil {
		return fmt.Errorf("sqlite: set cash balance %s: %w", account.Hex(), err)
	}
	return nil
}

func (s *cashStore) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	return scalarAmount(ctx, s.q,
		`SELECT amount FROM cash_allowances WHERE owner = ? AND spender = ?`,
		owner.Bytes(), spender.Bytes())
}

func (s *cashStore) SetAllowance(ctx context.Context, owner, spender common.Address, amount int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cash_allowances (owner, spender, amount) VALUES (?, ?, ?)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = excluded.amount`,
		owner.Bytes(), spender.Bytes(), amount)
	if err != nil {
		return fmt.Errorf("sqlite: set allowance %s->%s: %w", owner.Hex(), spender.Hex(), err)
	}
	return nil
}

type couponStore struct {
	q querier
}

func (s *couponStore) Balance(ctx context.Context, holder common.Address, tokenID domain.TokenID) (int64, error) {
	return scalarAmount(ctx, s.q,
		`SELECT amount FROM coupon_balances WHERE holder = ? AND token_id = ?`,
		holder.Bytes(), tokenID[:])
}

func (s *couponStore) SetBalance(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO coupon_balances (holder, token_id, amount) VALUES (?, ?, ?)
		ON CONFLICT (holder, token_id) DO UPDATE SET amount = excluded.amount`,
		holder.Bytes(), tokenID[:], amount)
	if err != nil {
		return fmt.Errorf("sqlite: set coupon balance %s: %w", tokenID, err)
	}
	return nil
}

func scalarAmount(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: read amount: %w", err)
	}
	return v, nil
}

type eventStore struct {
	q querier
}

func (s *eventStore) Append(ctx context.Context, e domain.LedgerEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_events (
			id, kind, game_id, pool_id, token_id, account,
			odds, amount, payout, taker_wins, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.GameID,
		optionalHash(e.PoolID), optionalHash(e.TokenID), optionalAddress(e.Account),
		e.Odds, e.Amount, e.Payout, e.TakerWins, toNanos(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append %s event: %w", e.Kind, err)
	}
	return nil
}

func (s *eventStore) ListByGame(ctx context.Context, gameID string) ([]domain.LedgerEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, kind, game_id, pool_id, token_id, account,
		       odds, amount, payout, taker_wins, created_at
		FROM ledger_events WHERE game_id = ? ORDER BY seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			e                 domain.LedgerEvent
			kind              string
			pool, token, addr []byte
			created           int64
		)
		if err := rows.Scan(
			&e.ID, &kind, &e.GameID, &pool, &token, &addr,
			&e.Odds, &e.Amount, &e.Payout, &e.TakerWins, &created,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.PoolID = scanHash(pool)
		e.TokenID = scanHash(token)
		e.Account = common.BytesToAddress(addr)
		e.CreatedAt = fromNanos(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func optionalHash(h domain.Hash32) []byte {
	if h.IsZero() {
		return nil
	}
	return h[:]
}

func optionalAddress(a common.Address) []byte {
	if a == (common.Address{}) {
		return nil
	}
	return a.Bytes()
}
