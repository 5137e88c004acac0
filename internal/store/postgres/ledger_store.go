package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// CashStore implements domain.CashStore inside a transaction.
type CashStore struct {
	q querier
}

// Balance returns an account's collateral, zero when absent.
func (s *CashStore) Balance(ctx context.Context, account common.Address) (int64, error) {
	return s.scalar(ctx, `SELECT amount FROM cash_balances WHERE account = $1`, account.Bytes())
}

// SetBalance upserts an account's collateral.
func (s *CashStore) SetBalance(ctx context.Context, account common.Address, amount int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO cash_balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`,
		account.Bytes(), amount)
	if err != nil {
		return fmt.Errorf("postgres: set cash balance %s: %w", account.Hex(), err)
	}
	return nil
}

// Allowance returns spender's allowance over owner, zero when absent.
func (s *CashStore) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	return s.scalar(ctx,
		`SELECT amount FROM cash_allowances WHERE owner = $1 AND spender = $2`,
		owner.Bytes(), spender.Bytes())
}

// SetAllowance upserts spender's allowance over owner.
func (s *CashStore) SetAllowance(ctx context.Context, owner, spender common.Address, amount int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO cash_allowances (owner, spender, amount) VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		owner.Bytes(), spender.Bytes(), amount)
	if err != nil {
		return fmt.Errorf("postgres: set allowance %s->%s: %w", owner.Hex(), spender.Hex(), err)
	}
	return nil
}

func (s *CashStore) scalar(ctx context.Context, query string, args ...any) (int64, error) {
	return scalarAmount(ctx, s.q, query, args...)
}

// CouponStore implements domain.CouponStore inside a transaction.
type CouponStore struct {
	q querier
}

// Balance returns a holder's receipts of tokenID, zero when absent.
func (s *CouponStore) Balance(ctx context.Context, holder common.Address, tokenID domain.TokenID) (int64, error) {
	return scalarAmount(ctx, s.q,
		`SELECT amount FROM coupon_balances WHERE holder = $1 AND token_id = $2`,
		holder.Bytes(), hashBytes(tokenID))
}

// SetBalance upserts a holder's receipts of tokenID.
func (s *CouponStore) SetBalance(ctx context.Context, holder common.Address, tokenID domain.TokenID, amount int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO coupon_balances (holder, token_id, amount) VALUES ($1, $2, $3)
		ON CONFLICT (holder, token_id) DO UPDATE SET amount = EXCLUDED.amount`,
		holder.Bytes(), hashBytes(tokenID), amount)
	if err != nil {
		return fmt.Errorf("postgres: set coupon balance %s: %w", tokenID, err)
	}
	return nil
}

func scalarAmount(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var v int64
	err := q.QueryRow(ctx, query, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: read amount: %w", err)
	}
	return v, nil
}

// EventStore implements domain.EventStore inside a transaction.
type EventStore struct {
	q querier
}

// Append journals a ledger event.
func (s *EventStore) Append(ctx context.Context, e domain.LedgerEvent) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("postgres: append event: id %q: %w", e.ID, err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO ledger_events (
			id, kind, game_id, pool_id, token_id, account,
			odds, amount, payout, taker_wins, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, string(e.Kind), e.GameID,
		optionalHash(e.PoolID), optionalHash(e.TokenID), optionalAddress(e.Account),
		e.Odds, e.Amount, e.Payout, e.TakerWins, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append %s event: %w", e.Kind, err)
	}
	return nil
}

// ListByGame returns a game's journal in commit order.
func (s *EventStore) ListByGame(ctx context.Context, gameID string) ([]domain.LedgerEvent, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, kind, game_id, pool_id, token_id, account,
		       odds, amount, payout, taker_wins, created_at
		FROM ledger_events WHERE game_id = $1 ORDER BY seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			e                 domain.LedgerEvent
			id                uuid.UUID
			kind              string
			pool, token, addr []byte
		)
		if err := rows.Scan(
			&id, &kind, &e.GameID, &pool, &token, &addr,
			&e.Odds, &e.Amount, &e.Payout, &e.TakerWins, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.ID = id.String()
		e.Kind = domain.EventKind(kind)
		e.PoolID = scanHash(pool)
		e.TokenID = scanHash(token)
		e.Account = common.BytesToAddress(addr)
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
