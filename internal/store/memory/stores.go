package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

type gameStore struct{ *tx }

func (s gameStore) NextID(_ context.Context) (string, error) {
	if err := s.writable(); err != nil {
		return "", err
	}
	s.st.lastGameID++
	return strconv.FormatInt(s.st.lastGameID, 10), nil
}

func (s gameStore) Insert(_ context.Context, game domain.Game) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, ok := s.st.games[game.ID]; ok {
		return fmt.Errorf("memory: insert game %s: %w", game.ID, domain.ErrDuplicateGame)
	}
	s.st.games[game.ID] = cloneGame(game)
	s.st.gameOrder = append(s.st.gameOrder, game.ID)
	return nil
}

func (s gameStore) Get(_ context.Context, id string) (domain.Game, error) {
	g, ok := s.st.games[id]
	if !ok {
		return domain.Game{}, domain.ErrNotFound
	}
	return cloneGame(g), nil
}

func (s gameStore) FindLive(_ context.Context, fixture domain.Game) (domain.Game, error) {
	for _, id := range s.st.gameOrder {
		g := s.st.games[id]
		if !g.Ended && g.SameFixture(fixture) {
			return cloneGame(g), nil
		}
	}
	return domain.Game{}, domain.ErrNotFound
}

func (s gameStore) Update(_ context.Context, game domain.Game) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, ok := s.st.games[game.ID]; !ok {
		return domain.ErrNotFound
	}
	s.st.games[game.ID] = cloneGame(game)
	return nil
}

func (s gameStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Game, error) {
	ids := slices.Clone(s.st.gameOrder)
	slices.Reverse(ids)
	ids = page(ids, opts)
	out := make([]domain.Game, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneGame(s.st.games[id]))
	}
	return out, nil
}

func (s gameStore) ListUnarchived(_ context.Context, limit int) ([]domain.Game, error) {
	var out []domain.Game
	for _, id := range s.st.gameOrder {
		g := s.st.games[id]
		if !g.Ended || g.ArchivedAt != nil {
			continue
		}
		out = append(out, cloneGame(g))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s gameStore) MarkArchived(_ context.Context, id string, at time.Time) error {
	if err := s.writable(); err != nil {
		return err
	}
	g, ok := s.st.games[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.ArchivedAt = &at
	s.st.games[id] = g
	return nil
}

type poolStore struct{ *tx }

func (s poolStore) Get(_ context.Context, id domain.PoolID) (domain.Pool, error) {
	p, ok := s.st.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, nil
}

func (s poolStore) GetByToken(_ context.Context, tokenID domain.TokenID) (domain.Pool, domain.Side, error) {
	ref, ok := s.st.tokens[tokenID]
	if !ok {
		return domain.Pool{}, 0, domain.ErrNotFound
	}
	return s.st.pools[ref.poolID], ref.side, nil
}

func (s poolStore) Put(_ context.Context, pool domain.Pool) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.pools[pool.ID] = pool
	s.st.tokens[pool.MakerTokenID] = tokenRef{poolID: pool.ID, side: domain.SideMaker}
	s.st.tokens[pool.TakerTokenID] = tokenRef{poolID: pool.ID, side: domain.SideTaker}
	return nil
}

func (s poolStore) ListByGame(_ context.Context, gameID string) ([]domain.Pool, error) {
	var out []domain.Pool
	for _, p := range s.st.pools {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Pool) int { return cmp.Compare(a.Odds, b.Odds) })
	return out, nil
}

type cashStore struct{ *tx }

func (s cashStore) Balance(_ context.Context, account common.Address) (int64, error) {
	return s.st.cash[account], nil
}

func (s cashStore) SetBalance(_ context.Context, account common.Address, amount int64) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.cash[account] = amount
	return nil
}

func (s cashStore) Allowance(_ context.Context, owner, spender common.Address) (int64, error) {
	return s.st.allowances[allowanceKey{owner, spender}], nil
}

func (s cashStore) SetAllowance(_ context.Context, owner, spender common.Address, amount int64) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.allowances[allowanceKey{owner, spender}] = amount
	return nil
}

type couponStore struct{ *tx }

func (s couponStore) Balance(_ context.Context, holder common.Address, tokenID domain.TokenID) (int64, error) {
	return s.st.coupons[couponKey{holder, tokenID}], nil
}

func (s couponStore) SetBalance(_ context.Context, holder common.Address, tokenID domain.TokenID, amount int64) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.coupons[couponKey{holder, tokenID}] = amount
	return nil
}

type eventStore struct{ *tx }

func (s eventStore) Append(_ context.Context, event domain.LedgerEvent) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.events = append(s.st.events, event)
	return nil
}

func (s eventStore) ListByGame(_ context.Context, gameID string) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, e := range s.st.events {
		if e.GameID == gameID {
			out = append(out, e)
		}
	}
	return out, nil
}

func cloneGame(g domain.Game) domain.Game {
	g.HomeCode = slices.Clone(g.HomeCode)
	g.AwayCode = slices.Clone(g.AwayCode)
	g.MatchLabel = slices.Clone(g.MatchLabel)
	return g
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
