package domain

import (
	"bytes"
	"time"
)

// Game is a scheduled fixture that bets are placed against.
type Game struct {
	ID         string
	HomeCode   []byte
	AwayCode   []byte
	MatchLabel []byte
	StartTime  time.Time
	Ended      bool
	TakerWins  bool // outcome; meaningful once Ended
	EndedAt    *time.Time
	ArchivedAt *time.Time
	CreatedAt  time.Time
}

// StartedAt reports whether the game had kicked off at now.
func (g Game) StartedAt(now time.Time) bool {
	return g.Ended || !now.Before(g.StartTime)
}

// SameFixture reports whether other describes the same home, away, label and
// kick-off as g.
func (g Game) SameFixture(other Game) bool {
	return bytes.Equal(g.HomeCode, other.HomeCode) &&
		bytes.Equal(g.AwayCode, other.AwayCode) &&
		bytes.Equal(g.MatchLabel, other.MatchLabel) &&
		g.StartTime.Unix() == other.StartTime.Unix()
}

// GameView is a game as observed at a point in time.
type GameView struct {
	Game
	Started bool
}

// ViewAt returns g with its started flag evaluated at now.
func (g Game) ViewAt(now time.Time) GameView {
	return GameView{Game: g, Started: g.StartedAt(now)}
}
