package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/cache/local"
	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/exchange"
	"github.com/alanyoungcy/oddsexchange/internal/feed"
	"github.com/alanyoungcy/oddsexchange/internal/server"
	"github.com/alanyoungcy/oddsexchange/internal/server/handler"
	"github.com/alanyoungcy/oddsexchange/internal/store/memory"
)

const (
	unit     = 1_000_000
	adminKey = "s3cret"
)

var (
	escrow = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	maker  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	taker  = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type api struct {
	t     *testing.T
	srv   *httptest.Server
	clock *clock
}

func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWith(t, nil)
}

// newAPIWith serves archives as well when archives is non-nil.
func newAPIWith(t *testing.T, archives domain.ArchiveReader) *api {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	bus := feed.NewLocalBus(1000)

	ex := exchange.New(memory.New(), escrow, logger).
		WithClock(clk.Now).
		WithPublisher(feed.NewPublisher(bus, logger)).
		WithFaucet(10_000 * unit)

	h := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Checker{
			"store": func(context.Context) error { return nil },
		}, logger),
		Games:  handler.NewGameHandler(ex, logger),
		Pools:  handler.NewPoolHandler(ex, logger),
		Bets:   handler.NewBetHandler(ex, logger),
		Redeem: handler.NewRedeemHandler(ex, logger),
		Cash:   handler.NewCashHandler(ex, logger),
		Events: handler.NewEventHandler(bus, logger),
	}
	if archives != nil {
		h.Archives = handler.NewArchiveHandler(ex, archives, logger)
	}
	cfg := server.Config{APIKeys: []string{adminKey}, RateLimit: 1000, RateWindow: time.Minute}
	srv := httptest.NewServer(server.NewHandler(cfg, h, nil, local.NewRateLimiter(), logger))
	t.Cleanup(srv.Close)
	return &api{t: t, srv: srv, clock: clk}
}

// do sends body as JSON and decodes the reply into a generic map.
func (a *api) do(method, path string, account *common.Address, body any, headers ...string) (int, map[string]any) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(a.t, err)
	if account != nil {
		req.Header.Set(handler.AccountHeader, account.Hex())
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.ContentLength != 0 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func num(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func (a *api) fund(acct common.Address, amount int64) {
	a.t.Helper()
	code, _ := a.do(http.MethodPost, "/api/cash/faucet", &acct, map[string]any{"amount": amount})
	require.Equal(a.t, http.StatusOK, code)
	code, _ = a.do(http.MethodPost, "/api/cash/approve", &acct, map[string]any{"amount": amount})
	require.Equal(a.t, http.StatusOK, code)
}

func (a *api) startGame() string {
	a.t.Helper()
	code, g := a.do(http.MethodPost, "/api/games", nil, map[string]any{
		"home_code":   "ARS",
		"away_code":   "CHE",
		"match_label": "derby",
		"start_time":  a.clock.Now().Add(time.Hour).Unix(),
	}, "X-API-Key", adminKey)
	require.Equal(a.t, http.StatusCreated, code, g)
	return g["id"].(string)
}

func TestBetLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	a.fund(maker, 1000*unit)
	a.fund(taker, 500*unit)
	gameID := a.startGame()

	code, pool := a.do(http.MethodPost, "/api/bets/make", &maker, map[string]any{"game_id": gameID, "odds": 250, "stake": 100 * unit})
	require.Equal(t, http.StatusOK, code, pool)
	assert.Equal(t, int64(250*unit), num(pool["maker_balance"]))
	makerToken := pool["maker_token_id"].(string)
	takerToken := pool["taker_token_id"].(string)
	poolID := pool["pool_id"].(string)

	code, pool = a.do(http.MethodPost, "/api/bets/take", &taker, map[string]any{"game_id": gameID, "odds": 250, "stake": 100 * unit})
	require.Equal(t, http.StatusOK, code, pool)
	assert.Equal(t, int64(100*unit), num(pool["taker_balance"]))
	assert.Equal(t, int64(150*unit), num(pool["available"]))

	code, byID := a.do(http.MethodGet, "/api/pools/"+poolID, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(100*unit), num(byID["matched_value"]))

	code, _ = a.do(http.MethodGet, "/api/redeem/preview?token_id="+takerToken+"&amount=1", &taker, nil)
	assert.Equal(t, http.StatusConflict, code)

	a.clock.advance(2 * time.Hour)
	code, _ = a.do(http.MethodPost, "/api/games/"+gameID+"/end", nil, map[string]any{"taker_wins": true}, "Authorization", "Bearer "+adminKey)
	require.Equal(t, http.StatusOK, code)

	code, quote := a.do(http.MethodGet, fmt.Sprintf("/api/redeem/preview?token_id=%s&amount=%d", takerToken, 100*unit), &taker, nil)
	require.Equal(t, http.StatusOK, code, quote)
	assert.Equal(t, int64(250*unit), num(quote["payout"]))
	assert.Equal(t, "taker", quote["side"])

	code, red := a.do(http.MethodPost, "/api/redeem", &taker, map[string]any{"token_id": takerToken, "amount": 100 * unit})
	require.Equal(t, http.StatusOK, code, red)
	assert.Equal(t, int64(250*unit), num(red["payout"]))

	code, red = a.do(http.MethodPost, "/api/redeem", &maker, map[string]any{"token_id": makerToken, "amount": 100 * unit})
	require.Equal(t, http.StatusOK, code, red)
	assert.Equal(t, int64(100*unit), num(red["payout"]))

	code, cash := a.do(http.MethodGet, "/api/cash/"+taker.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(650*unit), num(cash["balance"]))
	assert.Equal(t, "650.000000", cash["display"])

	code, cash = a.do(http.MethodGet, "/api/cash/"+maker.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(850*unit), num(cash["balance"]))

	code, rec := a.do(http.MethodGet, "/api/receipts/"+taker.Hex()+"/"+takerToken, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, num(rec["balance"]))

	code, events := a.do(http.MethodGet, "/api/events?limit=100", nil, nil)
	require.Equal(t, http.StatusOK, code)
	kinds := []string{}
	for _, e := range events["events"].([]any) {
		kinds = append(kinds, e.(map[string]any)["event"].(map[string]any)["kind"].(string))
	}
	assert.Equal(t, []string{
		"game_started", "bet_made", "bet_taken", "game_ended",
		"pool_settled", "redeemed", "redeemed",
	}, kinds)
}

func TestHTTPErrors(t *testing.T) {
	a := newAPI(t)
	gameID := a.startGame()

	cases := []struct {
		name    string
		method  string
		path    string
		account *common.Address
		body    any
		headers []string
		want    int
	}{
		{"admin without key", http.MethodPost, "/api/games", nil, map[string]any{"home_code": "A"}, nil, http.StatusUnauthorized},
		{"end with wrong key", http.MethodPost, "/api/games/" + gameID + "/end", nil, map[string]any{"taker_wins": true}, []string{"X-API-Key", "x"}, http.StatusUnauthorized},
		{"end before start", http.MethodPost, "/api/games/" + gameID + "/end", nil, map[string]any{"taker_wins": true}, []string{"X-API-Key", adminKey}, http.StatusConflict},
		{"end without outcome", http.MethodPost, "/api/games/" + gameID + "/end", nil, map[string]any{}, []string{"X-API-Key", adminKey}, http.StatusBadRequest},
		{"unknown game", http.MethodGet, "/api/games/99", nil, nil, nil, http.StatusNotFound},
		{"make without account", http.MethodPost, "/api/bets/make", nil, map[string]any{"game_id": gameID, "odds": 150, "stake": unit}, nil, http.StatusBadRequest},
		{"make without allowance", http.MethodPost, "/api/bets/make", &maker, map[string]any{"game_id": gameID, "odds": 150, "stake": unit}, nil, http.StatusUnprocessableEntity},
		{"make bad odds", http.MethodPost, "/api/bets/make", &maker, map[string]any{"game_id": gameID, "odds": 0, "stake": unit}, nil, http.StatusBadRequest},
		{"take without liquidity", http.MethodPost, "/api/bets/take", &taker, map[string]any{"game_id": gameID, "odds": 150, "stake": unit}, nil, http.StatusConflict},
		{"unknown field", http.MethodPost, "/api/bets/take", &taker, map[string]any{"game": gameID}, nil, http.StatusBadRequest},
		{"bad pool id", http.MethodGet, "/api/pools/zz", nil, nil, nil, http.StatusBadRequest},
		{"negative pool odds", http.MethodGet, "/api/games/" + gameID + "/pools/-182", nil, nil, nil, http.StatusBadRequest},
		{"bad address", http.MethodGet, "/api/cash/nope", nil, nil, nil, http.StatusBadRequest},
		{"faucet above limit", http.MethodPost, "/api/cash/faucet", &maker, map[string]any{"amount": 20_000 * unit}, nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := a.do(tc.method, tc.path, tc.account, tc.body, tc.headers...)
			assert.Equal(t, tc.want, code, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListGamesAndPoolLookup(t *testing.T) {
	a := newAPI(t)
	first := a.startGame()
	a.clock.advance(time.Minute)
	second := a.startGame()

	code, body := a.do(http.MethodGet, "/api/games?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, code)
	games := body["games"].([]any)
	require.Len(t, games, 1)
	assert.Equal(t, second, games[0].(map[string]any)["id"], "newest first")

	code, body = a.do(http.MethodGet, "/api/games?limit=1&offset=1", nil, nil)
	require.Equal(t, http.StatusOK, code)
	games = body["games"].([]any)
	require.Len(t, games, 1)
	assert.Equal(t, first, games[0].(map[string]any)["id"])

	code, pool := a.do(http.MethodGet, "/api/games/"+first+"/pools/182", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, num(pool["maker_balance"]))
	assert.NotEmpty(t, pool["maker_token_id"])

	code, health := a.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", health["status"])
}

type fakeArchives map[string]string

func (f fakeArchives) OpenArchive(_ context.Context, g domain.Game) (io.ReadCloser, error) {
	body, ok := f[g.ID]
	if !ok {
		return nil, fmt.Errorf("get game-%s.jsonl: %w", g.ID, domain.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f fakeArchives) ListArchives(_ context.Context, month string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for id, body := range f {
		out = append(out, domain.BlobInfo{Path: "archive/games/" + month + "/game-" + id + ".jsonl", Size: int64(len(body))})
	}
	return out, nil
}

func TestArchiveRoutes(t *testing.T) {
	a := newAPIWith(t, fakeArchives{"1": `{"type":"game","game":{"id":"1"}}` + "\n"})
	archived := a.startGame()
	a.clock.advance(time.Minute)
	pending := a.startGame()

	resp, err := http.Get(a.srv.URL + "/api/games/" + archived + "/archive")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"type":"game"`)

	code, _ := a.do(http.MethodGet, "/api/games/"+pending+"/archive", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(http.MethodGet, "/api/games/99/archive", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, list := a.do(http.MethodGet, "/api/archives?month=2026-10", nil, nil)
	require.Equal(t, http.StatusOK, code)
	archives := list["archives"].([]any)
	require.Len(t, archives, 1)
	assert.Equal(t, "archive/games/2026-10/game-1.jsonl", archives[0].(map[string]any)["path"])

	code, _ = a.do(http.MethodGet, "/api/archives?month=october", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
