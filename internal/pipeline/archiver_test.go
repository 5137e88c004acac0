package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsexchange/internal/cache/local"
	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

type fakeSource struct {
	pending  []domain.Game
	archived []string
}

func (f *fakeSource) PendingArchive(_ context.Context, limit int) ([]domain.Game, error) {
	return f.pending[:min(limit, len(f.pending))], nil
}

func (f *fakeSource) GameArchive(_ context.Context, gameID string) (domain.GameArchive, error) {
	for _, g := range f.pending {
		if g.ID == gameID {
			return domain.GameArchive{Game: g}, nil
		}
	}
	return domain.GameArchive{}, domain.ErrUnknownGame
}

func (f *fakeSource) MarkArchived(_ context.Context, gameID string) error {
	f.archived = append(f.archived, gameID)
	return nil
}

type fakeArchiver struct {
	fail map[string]bool
	seen []string
}

func (f *fakeArchiver) ArchiveGame(_ context.Context, a domain.GameArchive) (string, error) {
	if f.fail[a.Game.ID] {
		return "", errors.New("upload refused")
	}
	f.seen = append(f.seen, a.Game.ID)
	return "archive/games/game-" + a.Game.ID + ".jsonl", nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiverRun(t *testing.T) {
	src := &fakeSource{pending: []domain.Game{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	arch := &fakeArchiver{fail: map[string]bool{"2": true}}
	a := NewArchiver(src, arch, local.NewLockManager(), 10, discard())

	n, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload refused")
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "3"}, src.archived)
}

func TestArchiverSkipsLockedGames(t *testing.T) {
	ctx := context.Background()
	locks := local.NewLockManager()
	unlock, err := locks.Acquire(ctx, "archive:game:1", time.Minute)
	require.NoError(t, err)
	defer unlock()

	src := &fakeSource{pending: []domain.Game{{ID: "1"}, {ID: "2"}}}
	arch := &fakeArchiver{}
	n, err := NewArchiver(src, arch, locks, 10, discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"2"}, arch.seen)
}

func TestArchiverBatchLimit(t *testing.T) {
	src := &fakeSource{pending: []domain.Game{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	n, err := NewArchiver(src, &fakeArchiver{}, local.NewLockManager(), 2, discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
