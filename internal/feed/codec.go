// Package feed encodes committed ledger events and fans them out over the
// signal bus for live subscribers.
package feed

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// toStruct flattens an event into a protobuf Struct. Amounts are carried as
// decimal strings since Struct numbers are float64.
func toStruct(ev domain.LedgerEvent) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":         ev.ID,
		"kind":       string(ev.Kind),
		"game_id":    ev.GameID,
		"odds":       fmt.Sprint(ev.Odds),
		"amount":     fmt.Sprint(ev.Amount),
		"payout":     fmt.Sprint(ev.Payout),
		"taker_wins": ev.TakerWins,
		"created_at": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !ev.PoolID.IsZero() {
		fields["pool_id"] = ev.PoolID.String()
	}
	if !ev.TokenID.IsZero() {
		fields["token_id"] = ev.TokenID.String()
	}
	if ev.Account != (common.Address{}) {
		fields["account"] = ev.Account.Hex()
	}
	return structpb.NewStruct(fields)
}

// Encode serialises an event as a binary protobuf Struct.
func Encode(ev domain.LedgerEvent) ([]byte, error) {
	s, err := toStruct(ev)
	if err != nil {
		return nil, fmt.Errorf("feed: encode %s: %w", ev.Kind, err)
	}
	return proto.Marshal(s)
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (domain.LedgerEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("feed: decode: %w", err)
	}
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }

	ev := domain.LedgerEvent{
		ID:        str("id"),
		Kind:      domain.EventKind(str("kind")),
		GameID:    str("game_id"),
		TakerWins: f["taker_wins"].GetBoolValue(),
	}
	for key, dst := range map[string]*int64{"odds": &ev.Odds, "amount": &ev.Amount, "payout": &ev.Payout} {
		if _, err := fmt.Sscan(str(key), dst); err != nil {
			return domain.LedgerEvent{}, fmt.Errorf("feed: decode %s: %w", key, err)
		}
	}
	if v := str("pool_id"); v != "" {
		id, err := domain.ParseHash32(v)
		if err != nil {
			return domain.LedgerEvent{}, fmt.Errorf("feed: decode pool_id: %w", err)
		}
		ev.PoolID = id
	}
	if v := str("token_id"); v != "" {
		id, err := domain.ParseHash32(v)
		if err != nil {
			return domain.LedgerEvent{}, fmt.Errorf("feed: decode token_id: %w", err)
		}
		ev.TokenID = id
	}
	if v := str("account"); v != "" {
		ev.Account = common.HexToAddress(v)
	}
	if v := str("created_at"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return domain.LedgerEvent{}, fmt.Errorf("feed: decode created_at: %w", err)
		}
		ev.CreatedAt = t
	}
	return ev, nil
}

// JSON converts an encoded payload to its JSON form for text clients.
func JSON(data []byte) ([]byte, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("feed: decode: %w", err)
	}
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(&s)
}
