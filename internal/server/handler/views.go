package handler

import (
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

type gameResponse struct {
	ID         string     `json:"id"`
	HomeCode   string     `json:"home_code"`
	AwayCode   string     `json:"away_code"`
	MatchLabel string     `json:"match_label"`
	StartTime  int64      `json:"start_time"`
	Started    bool       `json:"started"`
	Ended      bool       `json:"ended"`
	TakerWins  bool       `json:"taker_wins"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

func gameView(g domain.GameView) gameResponse {
	return gameResponse{
		ID:         g.ID,
		HomeCode:   string(g.HomeCode),
		AwayCode:   string(g.AwayCode),
		MatchLabel: string(g.MatchLabel),
		StartTime:  g.StartTime.Unix(),
		Started:    g.Started,
		Ended:      g.Ended,
		TakerWins:  g.TakerWins,
		EndedAt:    g.EndedAt,
		ArchivedAt: g.ArchivedAt,
	}
}

type poolResponse struct {
	PoolID       domain.PoolID  `json:"pool_id"`
	GameID       string         `json:"game_id,omitempty"`
	Odds         int64          `json:"odds,omitempty"`
	MakerTokenID domain.TokenID `json:"maker_token_id"`
	TakerTokenID domain.TokenID `json:"taker_token_id"`
	MakerBalance int64          `json:"maker_balance"`
	TakerBalance int64          `json:"taker_balance"`
	Available    int64          `json:"available"`
	MatchedValue int64          `json:"matched_value"`
	MakerSupply  int64          `json:"maker_supply"`
	TakerSupply  int64          `json:"taker_supply"`
	Settled      bool           `json:"settled"`
	PaidOut      int64          `json:"paid_out"`
}

func poolView(p domain.Pool) poolResponse {
	return poolResponse{
		PoolID:       p.ID,
		GameID:       p.GameID,
		Odds:         p.Odds,
		MakerTokenID: p.MakerTokenID,
		TakerTokenID: p.TakerTokenID,
		MakerBalance: p.MakerLiability,
		TakerBalance: p.TakerMatched,
		Available:    p.Available(),
		MatchedValue: p.MatchedValue,
		MakerSupply:  p.MakerSupply,
		TakerSupply:  p.TakerSupply,
		Settled:      p.Settled,
		PaidOut:      p.PaidOut,
	}
}
