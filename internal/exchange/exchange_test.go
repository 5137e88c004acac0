package exchange

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/store/memory"
)

const unit = 1_000_000 // one collateral unit at 6 decimals

var (
	escrow = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	maker1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	maker2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	taker1 = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	taker2 = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
	taker3 = common.HexToAddress("0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

type harness struct {
	ex    *Exchange
	clock *fakeClock
	pub   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	pub := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := New(memory.New(), escrow, logger).
		WithClock(clock.Now).
		WithPublisher(pub).
		WithFaucet(99_999 * unit)
	return &harness{ex: ex, clock: clock, pub: pub}
}

// fund mints and approves the full faucet amount, as each participant does
// before betting.
func (h *harness) fund(t *testing.T, accounts ...common.Address) {
	t.Helper()
	ctx := context.Background()
	for _, a := range accounts {
		bal, err := h.ex.Faucet(ctx, a, 99_999*unit)
		require.NoError(t, err)
		require.Equal(t, int64(99_999*unit), bal)
		require.NoError(t, h.ex.Approve(ctx, a, escrow, 99_999*unit))
	}
}

func (h *harness) startGame(t *testing.T) domain.GameView {
	t.Helper()
	g, err := h.ex.StartGame(context.Background(),
		[]byte("IIND"), []byte("IAUS"), []byte("ICCWC-22"), h.clock.Now().Add(2*time.Hour))
	require.NoError(t, err)
	return g
}

func (h *harness) endGame(t *testing.T, gameID string, takerWins bool) {
	t.Helper()
	h.clock.Advance(8 * time.Hour)
	_, err := h.ex.EndGame(context.Background(), gameID, takerWins)
	require.NoError(t, err)
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	g := h.startGame(t)
	assert.Equal(t, "1", g.ID)
	assert.False(t, g.Started)
	assert.False(t, g.Ended)
	assert.Equal(t, []byte("IIND"), g.HomeCode)

	t.Run("duplicate fixture", func(t *testing.T) {
		_, err := h.ex.StartGame(ctx, []byte("IIND"), []byte("IAUS"), []byte("ICCWC-22"), g.StartTime)
		assert.ErrorIs(t, err, domain.ErrDuplicateGame)
	})

	t.Run("start not in future", func(t *testing.T) {
		_, err := h.ex.StartGame(ctx, []byte("A"), []byte("B"), nil, h.clock.Now())
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
		_, err = h.ex.StartGame(ctx, []byte("A"), []byte("B"), nil, h.clock.Now().Add(-time.Minute))
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("empty team code", func(t *testing.T) {
		_, err := h.ex.StartGame(ctx, nil, []byte("B"), nil, h.clock.Now().Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrInvalidGame)
	})

	t.Run("ids are sequential", func(t *testing.T) {
		g2, err := h.ex.StartGame(ctx, []byte("IENG"), []byte("IPAK"), []byte("ICCWC-22"), h.clock.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "2", g2.ID)

		games, err := h.ex.Games(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, games, 2)
		assert.Equal(t, "2", games[0].ID)
	})

	t.Run("started once kick-off passes", func(t *testing.T) {
		h.clock.Advance(2 * time.Hour)
		got, err := h.ex.Game(ctx, "1")
		require.NoError(t, err)
		assert.True(t, got.Started)
	})

	_, err := h.ex.Game(ctx, "99")
	assert.ErrorIs(t, err, domain.ErrUnknownGame)
}

func TestEndGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	notifier := &recordingNotifier{}
	h.ex.WithNotifier(notifier)
	g := h.startGame(t)

	_, err := h.ex.EndGame(ctx, "7", true)
	assert.ErrorIs(t, err, domain.ErrUnknownGame)

	_, err = h.ex.EndGame(ctx, g.ID, true)
	assert.ErrorIs(t, err, domain.ErrGameNotStarted)

	h.clock.Advance(2 * time.Hour)
	ended, err := h.ex.EndGame(ctx, g.ID, true)
	require.NoError(t, err)
	assert.True(t, ended.Ended)
	assert.True(t, ended.TakerWins)
	assert.True(t, ended.Started)

	_, err = h.ex.EndGame(ctx, g.ID, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyEnded)

	got, err := h.ex.Game(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.TakerWins, "outcome is not overwritten")

	assert.Len(t, notifier.messages, 1)
	assert.Equal(t, []domain.EventKind{domain.EventGameStarted, domain.EventGameEnded}, h.pub.kinds())
}

// makeScenario reproduces the four maker stakes at odds 1.82.
func makeScenario(t *testing.T, h *harness, gameID string) domain.PoolID {
	t.Helper()
	ctx := context.Background()
	poolID := h.ex.PoolID(182, gameID)
	makerID, _ := h.ex.TokenIDs(poolID)

	steps := []struct {
		who       common.Address
		stake     int64
		liability int64
	}{
		{maker1, 3200 * unit, 5824 * unit},
		{maker1, 9900 * unit, 23842 * unit},
		{maker2, 4700 * unit, 32396 * unit},
		{maker2, 1990 * unit, 36_017_800_000},
	}
	for _, s := range steps {
		_, err := h.ex.Make(ctx, s.who, 182, gameID, s.stake)
		require.NoError(t, err)
		bal, err := h.ex.MakerBalance(ctx, poolID)
		require.NoError(t, err)
		assert.Equal(t, s.liability, bal)
	}

	r1, err := h.ex.ReceiptBalance(ctx, maker1, makerID)
	require.NoError(t, err)
	assert.Equal(t, int64(13_100*unit), r1)
	r2, err := h.ex.ReceiptBalance(ctx, maker2, makerID)
	require.NoError(t, err)
	assert.Equal(t, int64(6_690*unit), r2)

	held, err := h.ex.CashBalance(ctx, escrow)
	require.NoError(t, err)
	assert.Equal(t, int64(36_017_800_000), held)
	return poolID
}

func takeScenario(t *testing.T, h *harness, gameID string, poolID domain.PoolID) {
	t.Helper()
	ctx := context.Background()
	_, takerID := h.ex.TokenIDs(poolID)

	var total int64
	for _, s := range []struct {
		who   common.Address
		stake int64
	}{
		{taker1, 2900 * unit},
		{taker2, 3900 * unit},
		{taker3, 4900 * unit},
	} {
		_, err := h.ex.Take(ctx, s.who, 182, gameID, s.stake)
		require.NoError(t, err)
		total += s.stake

		matched, err := h.ex.TakerBalance(ctx, poolID)
		require.NoError(t, err)
		assert.Equal(t, total, matched)
		mv, err := h.ex.MatchedValue(ctx, poolID)
		require.NoError(t, err)
		assert.Equal(t, total, mv)
		receipts, err := h.ex.ReceiptBalance(ctx, s.who, takerID)
		require.NoError(t, err)
		assert.Equal(t, s.stake, receipts)
	}
	assert.Equal(t, int64(11_700*unit), total)
}

func TestMakeAndTakeScenario(t *testing.T) {
	h := newHarness(t)
	h.fund(t, maker1, maker2, taker1, taker2, taker3)
	g := h.startGame(t)

	poolID := makeScenario(t, h, g.ID)
	takeScenario(t, h, g.ID, poolID)

	pool, err := h.ex.Pool(context.Background(), poolID)
	require.NoError(t, err)
	assert.Equal(t, int64(36_017_800_000+11_700*unit), pool.Escrowed())
	assert.LessOrEqual(t, pool.TakerMatched, pool.MakerLiability)
}

func TestMakeRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1)
	g := h.startGame(t)

	_, err := h.ex.Make(ctx, maker1, 0, g.ID, unit)
	assert.ErrorIs(t, err, domain.ErrInvalidOdds)
	_, err = h.ex.Make(ctx, maker1, 182, g.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = h.ex.Make(ctx, maker1, 182, "42", unit)
	assert.ErrorIs(t, err, domain.ErrUnknownGame)
	_, err = h.ex.PoolFor(ctx, -182, g.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOdds)

	// Liability above the funded balance.
	require.NoError(t, h.ex.Approve(ctx, maker1, escrow, 1_000_000*unit))
	_, err = h.ex.Make(ctx, maker1, 182, g.ID, 60_000*unit)
	assert.ErrorIs(t, err, domain.ErrInsufficientCollateral)

	// Unapproved caller.
	_, err = h.ex.Faucet(ctx, maker2, 100*unit)
	require.NoError(t, err)
	_, err = h.ex.Make(ctx, maker2, 182, g.ID, unit)
	assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	bal, err := h.ex.MakerBalance(ctx, h.ex.PoolID(182, g.ID))
	require.NoError(t, err)
	assert.Zero(t, bal)
	cash, err := h.ex.CashBalance(ctx, maker1)
	require.NoError(t, err)
	assert.Equal(t, int64(99_999*unit), cash)

	h.endGame(t, g.ID, false)
	_, err = h.ex.Make(ctx, maker1, 182, g.ID, unit)
	assert.ErrorIs(t, err, domain.ErrGameEnded)
	_, err = h.ex.Take(ctx, maker1, 182, g.ID, unit)
	assert.ErrorIs(t, err, domain.ErrGameEnded)
}

func TestTakeInsufficientLiquidityLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1, taker1)
	g := h.startGame(t)

	poolID := h.ex.PoolID(182, g.ID)
	_, takerID := h.ex.TokenIDs(poolID)

	_, err := h.ex.Take(ctx, taker1, 182, g.ID, unit)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity, "empty pool has no capacity")

	_, err = h.ex.Make(ctx, maker1, 182, g.ID, 100*unit) // liability 182
	require.NoError(t, err)
	_, err = h.ex.Take(ctx, taker1, 182, g.ID, 150*unit)
	require.NoError(t, err)

	before, err := h.ex.Pool(ctx, poolID)
	require.NoError(t, err)
	published := len(h.pub.kinds())

	_, err = h.ex.Take(ctx, taker1, 182, g.ID, 33*unit)
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	after, err := h.ex.Pool(ctx, poolID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	receipts, err := h.ex.ReceiptBalance(ctx, taker1, takerID)
	require.NoError(t, err)
	assert.Equal(t, int64(150*unit), receipts)
	cash, err := h.ex.CashBalance(ctx, taker1)
	require.NoError(t, err)
	assert.Equal(t, int64(99_849*unit), cash)
	assert.Len(t, h.pub.kinds(), published, "failed take publishes nothing")

	// Exactly the remaining capacity still fits.
	_, err = h.ex.Take(ctx, taker1, 182, g.ID, 32*unit)
	require.NoError(t, err)
}

func TestRedeemBeforeEndIsNotSettleable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1)
	g := h.startGame(t)

	pool, err := h.ex.Make(ctx, maker1, 182, g.ID, 10*unit)
	require.NoError(t, err)

	_, err = h.ex.Redeem(ctx, maker1, pool.MakerTokenID, unit)
	assert.ErrorIs(t, err, domain.ErrNotSettleable)
	_, err = h.ex.PreviewRedeem(ctx, maker1, pool.MakerTokenID, unit)
	assert.ErrorIs(t, err, domain.ErrNotSettleable)

	_, err = h.ex.Redeem(ctx, maker1, domain.TokenID{0xff}, unit)
	assert.ErrorIs(t, err, domain.ErrUnknownToken)
}

func TestRedeemTakersWin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1, maker2, taker1, taker2, taker3)
	g := h.startGame(t)
	poolID := makeScenario(t, h, g.ID)
	takeScenario(t, h, g.ID, poolID)
	h.endGame(t, g.ID, true)

	makerID, takerID := h.ex.TokenIDs(poolID)

	preview, err := h.ex.PreviewRedeem(ctx, taker1, takerID, 2900*unit)
	require.NoError(t, err)
	assert.Equal(t, int64(5278*unit), preview.Payout)

	r, err := h.ex.Redeem(ctx, taker1, takerID, 2900*unit)
	require.NoError(t, err)
	assert.Equal(t, preview, r)
	assert.Equal(t, domain.SideTaker, r.Side)

	for _, s := range []struct {
		who    common.Address
		token  domain.TokenID
		amount int64
		payout int64
	}{
		{taker2, takerID, 3900 * unit, 7098 * unit},
		{taker3, takerID, 4900 * unit, 8918 * unit},
		{maker1, makerID, 13_100 * unit, 17_491_247_094},
		{maker2, makerID, 6_690 * unit, 8_932_552_906},
	} {
		r, err := h.ex.Redeem(ctx, s.who, s.token, s.amount)
		require.NoError(t, err)
		assert.Equal(t, s.payout, r.Payout, s.who.Hex())
	}

	pool, err := h.ex.Pool(ctx, poolID)
	require.NoError(t, err)
	assert.Equal(t, pool.Escrowed(), pool.PaidOut)
	held, err := h.ex.CashBalance(ctx, escrow)
	require.NoError(t, err)
	assert.Zero(t, held)

	cash, err := h.ex.CashBalance(ctx, taker1)
	require.NoError(t, err)
	assert.Equal(t, int64((99_999-2900+5278)*unit), cash)
}

func TestRedeemMakersWin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1, maker2, taker1, taker2, taker3)
	g := h.startGame(t)
	poolID := makeScenario(t, h, g.ID)
	takeScenario(t, h, g.ID, poolID)
	h.endGame(t, g.ID, false)

	makerID, takerID := h.ex.TokenIDs(poolID)

	r, err := h.ex.Redeem(ctx, taker2, takerID, 3900*unit)
	require.NoError(t, err)
	assert.Zero(t, r.Payout)
	receipts, err := h.ex.ReceiptBalance(ctx, taker2, takerID)
	require.NoError(t, err)
	assert.Zero(t, receipts, "losing receipts are burned")

	r, err = h.ex.Redeem(ctx, maker1, makerID, 13_100*unit)
	require.NoError(t, err)
	assert.Equal(t, int64(31_586_820_616), r.Payout)

	r, err = h.ex.Redeem(ctx, maker2, makerID, 6_690*unit)
	require.NoError(t, err)
	assert.Equal(t, int64(16_130_979_384), r.Payout)

	held, err := h.ex.CashBalance(ctx, escrow)
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestRedeemRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, maker1, taker1)
	g := h.startGame(t)

	pool, err := h.ex.Make(ctx, maker1, 250, g.ID, 40*unit)
	require.NoError(t, err)
	_, err = h.ex.Take(ctx, taker1, 250, g.ID, 30*unit)
	require.NoError(t, err)
	h.endGame(t, g.ID, true)

	_, err = h.ex.Redeem(ctx, taker1, pool.TakerTokenID, 31*unit)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)
	_, err = h.ex.Redeem(ctx, maker1, pool.TakerTokenID, unit)
	assert.ErrorIs(t, err, domain.ErrInsufficientPosition)
	_, err = h.ex.Redeem(ctx, taker1, pool.TakerTokenID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Partial redemptions pay the same rate as a single one.
	r1, err := h.ex.Redeem(ctx, taker1, pool.TakerTokenID, 10*unit)
	require.NoError(t, err)
	r2, err := h.ex.Redeem(ctx, taker1, pool.TakerTokenID, 20*unit)
	require.NoError(t, err)
	assert.Equal(t, int64(25*unit), r1.Payout)
	assert.Equal(t, int64(50*unit), r2.Payout)

	rm, err := h.ex.Redeem(ctx, maker1, pool.MakerTokenID, 40*unit)
	require.NoError(t, err)
	assert.Equal(t, int64(100*unit+30*unit-75*unit), rm.Payout)

	for _, who := range []struct {
		a common.Address
		t domain.TokenID
	}{{taker1, pool.TakerTokenID}, {maker1, pool.MakerTokenID}} {
		bal, err := h.ex.ReceiptBalance(ctx, who.a, who.t)
		require.NoError(t, err)
		assert.Zero(t, bal)
	}

	kinds := h.pub.kinds()
	assert.Contains(t, kinds, domain.EventPoolSettled)
	assert.Equal(t, domain.EventRedeemed, kinds[len(kinds)-1])
}

func TestFaucet(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disabled := New(memory.New(), escrow, logger)
	_, err := disabled.Faucet(ctx, maker1, unit)
	assert.ErrorIs(t, err, domain.ErrFaucetDisabled)

	h := newHarness(t)
	_, err = h.ex.Faucet(ctx, maker1, 100_000*unit)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	require.NoError(t, h.ex.Approve(ctx, maker1, escrow, 5*unit))
	a, err := h.ex.Allowance(ctx, maker1, escrow)
	require.NoError(t, err)
	assert.Equal(t, int64(5*unit), a)
}
