package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/store/memory"
)

var propAccounts = []common.Address{maker1, maker2, taker1, taker2}

var propOdds = []int64{101, 150, 182, 250, 333}

func newPropExchange(t *rapid.T) (*Exchange, *fakeClock, string) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := New(memory.New(), escrow, logger).WithClock(clock.Now).WithFaucet(99_999 * unit)
	for _, a := range propAccounts {
		if _, err := ex.Faucet(ctx, a, 99_999*unit); err != nil {
			t.Fatalf("faucet: %v", err)
		}
		if err := ex.Approve(ctx, a, escrow, 1<<50); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	g, err := ex.StartGame(ctx, []byte("HOME"), []byte("AWAY"), nil, clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return ex, clock, g.ID
}

func mustPool(t *rapid.T, ex *Exchange, odds int64, gameID string) domain.Pool {
	p, err := ex.PoolFor(context.Background(), odds, gameID)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return p
}

// Every make/take either applies exactly its documented deltas or changes
// nothing, and pool counters never break their ordering.
func TestProperty_BetsKeepPoolInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		ex, _, gameID := newPropExchange(t)

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			who := rapid.SampledFrom(propAccounts).Draw(t, "who")
			odds := rapid.SampledFrom(propOdds).Draw(t, "odds")
			stake := rapid.Int64Range(1, 20_000*unit).Draw(t, "stake")
			isTake := rapid.Bool().Draw(t, "take")

			before := mustPool(t, ex, odds, gameID)
			cashBefore, _ := ex.CashBalance(ctx, who)

			var err error
			if isTake {
				_, err = ex.Take(ctx, who, odds, gameID, stake)
			} else {
				_, err = ex.Make(ctx, who, odds, gameID, stake)
			}

			after := mustPool(t, ex, odds, gameID)
			cashAfter, _ := ex.CashBalance(ctx, who)

			if after.TakerMatched > after.MakerLiability {
				t.Fatalf("taker matched %d above liability %d", after.TakerMatched, after.MakerLiability)
			}
			if after.MatchedValue < before.MatchedValue {
				t.Fatalf("matched value decreased %d -> %d", before.MatchedValue, after.MatchedValue)
			}

			if err != nil {
				if after != before || cashAfter != cashBefore {
					t.Fatalf("failed op (%v) changed state", err)
				}
				if isTake && stake > before.Available() && !errors.Is(err, domain.ErrInsufficientLiquidity) {
					t.Fatalf("oversized take failed with %v", err)
				}
				continue
			}

			if isTake {
				if stake > before.Available() {
					t.Fatalf("take of %d succeeded with %d available", stake, before.Available())
				}
				if after.TakerMatched-before.TakerMatched != stake || after.MatchedValue-before.MatchedValue != stake {
					t.Fatalf("take deltas wrong: %+v -> %+v", before, after)
				}
				if cashBefore-cashAfter != stake {
					t.Fatalf("take escrowed %d, want %d", cashBefore-cashAfter, stake)
				}
			} else {
				want := stake * odds / domain.OddsScale
				if after.MakerLiability-before.MakerLiability != want {
					t.Fatalf("make liability delta %d, want %d", after.MakerLiability-before.MakerLiability, want)
				}
				if cashBefore-cashAfter != want {
					t.Fatalf("make escrowed %d, want %d", cashBefore-cashAfter, want)
				}
			}
		}
	})
}

// Redeeming every receipt after the game ends pays out exactly the pool's
// escrow and never more, whatever the outcome and redemption order.
func TestProperty_SettlementConservesEscrow(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		ex, clock, gameID := newPropExchange(t)
		odds := rapid.SampledFrom(propOdds).Draw(t, "odds")

		bets := rapid.IntRange(1, 20).Draw(t, "bets")
		for i := 0; i < bets; i++ {
			who := rapid.SampledFrom(propAccounts).Draw(t, "who")
			stake := rapid.Int64Range(1, 5_000*unit).Draw(t, "stake")
			if rapid.Bool().Draw(t, "take") {
				_, _ = ex.Take(ctx, who, odds, gameID, stake)
			} else {
				_, _ = ex.Make(ctx, who, odds, gameID, stake)
			}
		}

		clock.Advance(2 * time.Hour)
		if _, err := ex.EndGame(ctx, gameID, rapid.Bool().Draw(t, "takerWins")); err != nil {
			t.Fatalf("end game: %v", err)
		}

		pool := mustPool(t, ex, odds, gameID)
		escrowed := pool.Escrowed()
		var paid int64

		type holding struct {
			who   common.Address
			token domain.TokenID
		}
		var holdings []holding
		for _, a := range propAccounts {
			holdings = append(holdings, holding{a, pool.MakerTokenID}, holding{a, pool.TakerTokenID})
		}
		order := rapid.Permutation(holdings).Draw(t, "order")

		for _, h := range order {
			for {
				bal, err := ex.ReceiptBalance(ctx, h.who, h.token)
				if err != nil {
					t.Fatalf("receipt balance: %v", err)
				}
				if bal == 0 {
					break
				}
				amount := rapid.Int64Range(1, bal).Draw(t, "amount")
				preview, err := ex.PreviewRedeem(ctx, h.who, h.token, amount)
				if err != nil {
					t.Fatalf("preview: %v", err)
				}
				r, err := ex.Redeem(ctx, h.who, h.token, amount)
				if err != nil {
					t.Fatalf("redeem: %v", err)
				}
				if r.Payout != preview.Payout {
					t.Fatalf("preview %d != payout %d", preview.Payout, r.Payout)
				}
				paid += r.Payout
				if paid > escrowed {
					t.Fatalf("paid %d above escrow %d", paid, escrowed)
				}
			}
		}

		if pool.MakerLiability > 0 && paid != escrowed {
			t.Fatalf("paid %d of escrow %d after full redemption", paid, escrowed)
		}
		held, _ := ex.CashBalance(ctx, escrow)
		if held != escrowed-paid {
			t.Fatalf("escrow account holds %d, want %d", held, escrowed-paid)
		}
	})
}
