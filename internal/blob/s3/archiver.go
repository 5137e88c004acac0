package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// GameArchiver implements domain.GameArchiver by writing one JSONL object
// per game: a game line, one line per pool, then the ledger journal. It also
// serves the stored objects back as a domain.ArchiveReader.
type GameArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewGameArchiver creates a GameArchiver.
func NewGameArchiver(writer domain.BlobWriter, reader domain.BlobReader) *GameArchiver {
	return &GameArchiver{writer: writer, reader: reader}
}

type gameLine struct {
	ID         string `json:"id"`
	HomeCode   string `json:"home_code"`
	AwayCode   string `json:"away_code"`
	MatchLabel string `json:"match_label"`
	StartTime  int64  `json:"start_time"`
	TakerWins  bool   `json:"taker_wins"`
	EndedAt    int64  `json:"ended_at,omitempty"`
}

type poolLine struct {
	ID             domain.PoolID  `json:"pool_id"`
	Odds           int64          `json:"odds"`
	MakerTokenID   domain.TokenID `json:"maker_token_id"`
	TakerTokenID   domain.TokenID `json:"taker_token_id"`
	MakerLiability int64          `json:"maker_liability"`
	TakerMatched   int64          `json:"taker_matched"`
	MatchedValue   int64          `json:"matched_value"`
	Settled        bool           `json:"settled"`
	PaidOut        int64          `json:"paid_out"`
}

type eventLine struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	PoolID    *domain.PoolID  `json:"pool_id,omitempty"`
	TokenID   *domain.TokenID `json:"token_id,omitempty"`
	Account   string          `json:"account,omitempty"`
	Amount    int64           `json:"amount"`
	Payout    int64           `json:"payout"`
	CreatedAt int64           `json:"created_at_ms"`
}

type archiveLine struct {
	Type  string     `json:"type"`
	Game  *gameLine  `json:"game,omitempty"`
	Pool  *poolLine  `json:"pool,omitempty"`
	Event *eventLine `json:"event,omitempty"`
}

// ArchiveGame uploads the archive and returns its path. An archive that is
// already stored is left untouched.
func (a *GameArchiver) ArchiveGame(ctx context.Context, archive domain.GameArchive) (string, error) {
	path := ArchivePath(archive.Game)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive game %s: %w", archive.Game.ID, err)
	}
	if exists {
		return path, nil
	}

	buf, err := marshalJSONL(archiveLines(archive))
	if err != nil {
		return "", fmt.Errorf("s3blob: archive game %s marshal: %w", archive.Game.ID, err)
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive game %s upload: %w", archive.Game.ID, err)
	}
	return path, nil
}

// OpenArchive streams the stored JSONL archive of game.
func (a *GameArchiver) OpenArchive(ctx context.Context, game domain.Game) (io.ReadCloser, error) {
	body, err := a.reader.Get(ctx, ArchivePath(game))
	if err != nil {
		return nil, fmt.Errorf("s3blob: open archive of game %s: %w", game.ID, err)
	}
	return body, nil
}

// ListArchives lists stored game archives, optionally for one start month.
func (a *GameArchiver) ListArchives(ctx context.Context, month string) ([]domain.BlobInfo, error) {
	prefix := archivePrefix
	if month != "" {
		prefix += month + "/"
	}
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives: %w", err)
	}
	return infos, nil
}

func archiveLines(a domain.GameArchive) []archiveLine {
	g := a.Game
	gl := &gameLine{
		ID:         g.ID,
		HomeCode:   string(g.HomeCode),
		AwayCode:   string(g.AwayCode),
		MatchLabel: string(g.MatchLabel),
		StartTime:  g.StartTime.Unix(),
		TakerWins:  g.TakerWins,
	}
	if g.EndedAt != nil {
		gl.EndedAt = g.EndedAt.Unix()
	}

	lines := make([]archiveLine, 0, 1+len(a.Pools)+len(a.Events))
	lines = append(lines, archiveLine{Type: "game", Game: gl})
	for _, p := range a.Pools {
		lines = append(lines, archiveLine{Type: "pool", Pool: &poolLine{
			ID:             p.ID,
			Odds:           p.Odds,
			MakerTokenID:   p.MakerTokenID,
			TakerTokenID:   p.TakerTokenID,
			MakerLiability: p.MakerLiability,
			TakerMatched:   p.TakerMatched,
			MatchedValue:   p.MatchedValue,
			Settled:        p.Settled,
			PaidOut:        p.PaidOut,
		}})
	}
	for _, e := range a.Events {
		el := &eventLine{
			ID:        e.ID,
			Kind:      string(e.Kind),
			Amount:    e.Amount,
			Payout:    e.Payout,
			CreatedAt: e.CreatedAt.UnixMilli(),
		}
		if !e.PoolID.IsZero() {
			id := e.PoolID
			el.PoolID = &id
		}
		if !e.TokenID.IsZero() {
			id := e.TokenID
			el.TokenID = &id
		}
		if e.Account != (common.Address{}) {
			el.Account = e.Account.Hex()
		}
		lines = append(lines, archiveLine{Type: "event", Event: el})
	}
	return lines
}

// ArchivePath is the object key for a game's archive, partitioned by the
// month the game started.
//
//	archive/games/2026-10/game-1.jsonl
func ArchivePath(g domain.Game) string {
	return fmt.Sprintf("%s%s/game-%s.jsonl", archivePrefix, g.StartTime.UTC().Format("2006-01"), g.ID)
}

const archivePrefix = "archive/games/"

// marshalJSONL encodes items as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return nil, fmt.Errorf("marshal item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var (
	_ domain.GameArchiver  = (*GameArchiver)(nil)
	_ domain.ArchiveReader = (*GameArchiver)(nil)
)
