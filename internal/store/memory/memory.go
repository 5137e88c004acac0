// Package memory implements the domain stores in process memory. Writes are
// staged on a copy of the state and swapped in when the unit of work
// succeeds, so a failed operation leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

var errReadOnly = errors.New("memory: write in read-only view")

type allowanceKey struct {
	owner, spender common.Address
}

type couponKey struct {
	holder  common.Address
	tokenID domain.TokenID
}

type tokenRef struct {
	poolID domain.PoolID
	side   domain.Side
}

type state struct {
	lastGameID int64
	games      map[string]domain.Game
	gameOrder  []string
	pools      map[domain.PoolID]domain.Pool
	tokens     map[domain.TokenID]tokenRef
	cash       map[common.Address]int64
	allowances map[allowanceKey]int64
	coupons    map[couponKey]int64
	events     []domain.LedgerEvent
}

func newState() *state {
	return &state{
		games:      make(map[string]domain.Game),
		pools:      make(map[domain.PoolID]domain.Pool),
		tokens:     make(map[domain.TokenID]tokenRef),
		cash:       make(map[common.Address]int64),
		allowances: make(map[allowanceKey]int64),
		coupons:    make(map[couponKey]int64),
	}
}

// clone stages a copy for one unit of work. gameOrder and events are
// append-only, so the staged state shares their backing arrays and only ever
// writes past the live length; a discarded stage leaves the live slices
// untouched.
func (s *state) clone() *state {
	return &state{
		lastGameID: s.lastGameID,
		games:      maps.Clone(s.games),
		gameOrder:  s.gameOrder,
		pools:      maps.Clone(s.pools),
		tokens:     maps.Clone(s.tokens),
		cash:       maps.Clone(s.cash),
		allowances: maps.Clone(s.allowances),
		coupons:    maps.Clone(s.coupons),
		events:     s.events,
	}
}

// Store is an in-memory domain.UnitOfWork.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: newState()}
}

// Atomic runs fn against a staged copy of the state and commits it only if
// fn returns nil. Units of work are serialised.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, &tx{st: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// View runs fn against the live state. Writes fail.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.state, readOnly: true})
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) Games() domain.GameStore     { return gameStore{t} }
func (t *tx) Pools() domain.PoolStore     { return poolStore{t} }
func (t *tx) Cash() domain.CashStore      { return cashStore{t} }
func (t *tx) Coupons() domain.CouponStore { return couponStore{t} }
func (t *tx) Events() domain.EventStore   { return eventStore{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}
