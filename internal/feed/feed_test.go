package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

func sampleEvent() domain.LedgerEvent {
	return domain.LedgerEvent{
		ID:        "6f1d7a3e-5c1b-4f0e-9a57-2f7b8f3f1c11",
		Kind:      domain.EventRedeemed,
		GameID:    "1",
		PoolID:    domain.PoolID{0x01},
		TokenID:   domain.TokenID{0x02},
		Account:   common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
		Odds:      182,
		Amount:    9_007_199_254_740_993, // above float64 integer precision
		Payout:    5_278_000_000,
		TakerWins: true,
		CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeKeepsFullAmountPrecision(t *testing.T) {
	ev := sampleEvent()
	data, err := Encode(ev)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestJSONUsesFieldNames(t *testing.T) {
	data, err := Encode(sampleEvent())
	require.NoError(t, err)

	out, err := JSON(data)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "redeemed", m["kind"])
	assert.Equal(t, "5278000000", m["payout"])
}

func TestPublisherFansOutToGameChannelAndStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus(0)
	sub, err := bus.Subscribe(ctx, AllGamesPattern)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, GameChannel("2"))
	require.NoError(t, err)

	pub := NewPublisher(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, pub.Publish(ctx, sampleEvent()))

	select {
	case payload := <-sub:
		ev, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, "1", ev.GameID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	assert.Empty(t, other)

	msgs, err := bus.StreamRead(ctx, LedgerStream, "0", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	msgs, err = bus.StreamRead(ctx, LedgerStream, msgs[0].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLocalBusStreamTrims(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.StreamAppend(ctx, "s", []byte{byte(i)}))
	}
	msgs, err := bus.StreamRead(ctx, "s", "0", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{3}, msgs[0].Payload)
}
