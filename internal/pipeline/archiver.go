// Package pipeline runs the exchange's background jobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// ArchiveSource is the part of the exchange the archiver drains.
type ArchiveSource interface {
	PendingArchive(ctx context.Context, limit int) ([]domain.Game, error)
	GameArchive(ctx context.Context, gameID string) (domain.GameArchive, error)
	MarkArchived(ctx context.Context, gameID string) error
}

// Archiver copies ended games to cold storage and flags them as archived.
// Games stay queryable in the ledger afterwards.
type Archiver struct {
	source   ArchiveSource
	archiver domain.GameArchiver
	locks    domain.LockManager
	batch    int
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver that handles up to batch games per run.
func NewArchiver(source ArchiveSource, archiver domain.GameArchiver, locks domain.LockManager, batch int, logger *slog.Logger) *Archiver {
	if batch <= 0 {
		batch = 100
	}
	return &Archiver{
		source:   source,
		archiver: archiver,
		locks:    locks,
		batch:    batch,
		lockTTL:  2 * time.Minute,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run archives one batch of pending games and returns how many were written.
// A game locked by another instance is skipped; the next run picks it up.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	games, err := a.source.PendingArchive(ctx, a.batch)
	if err != nil {
		return 0, fmt.Errorf("pipeline: list pending archive: %w", err)
	}

	archived := 0
	var errs []error
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		ok, err := a.archiveOne(ctx, g.ID)
		if err != nil {
			a.logger.Error("archive game failed",
				slog.String("game_id", g.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if ok {
			archived++
		}
	}

	a.logger.Info("archive run complete",
		slog.Int("pending", len(games)),
		slog.Int("archived", archived),
	)
	return archived, errors.Join(errs...)
}

func (a *Archiver) archiveOne(ctx context.Context, gameID string) (bool, error) {
	unlock, err := a.locks.Acquire(ctx, "archive:game:"+gameID, a.lockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		a.logger.Debug("archive lock held elsewhere", slog.String("game_id", gameID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pipeline: lock game %s: %w", gameID, err)
	}
	defer unlock()

	archive, err := a.source.GameArchive(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("pipeline: load game %s: %w", gameID, err)
	}
	path, err := a.archiver.ArchiveGame(ctx, archive)
	if err != nil {
		return false, fmt.Errorf("pipeline: archive game %s: %w", gameID, err)
	}
	if err := a.source.MarkArchived(ctx, gameID); err != nil {
		return false, fmt.Errorf("pipeline: mark game %s archived: %w", gameID, err)
	}

	a.logger.Info("game archived",
		slog.String("game_id", gameID),
		slog.String("path", path),
		slog.Int("pools", len(archive.Pools)),
		slog.Int("events", len(archive.Events)),
	)
	return true, nil
}

// RunCron runs the archiver on a five-field cron schedule until ctx is
// cancelled.
func (a *Archiver) RunCron(ctx context.Context, expr string) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	a.logger.Info("archiver cron started", slog.String("cron", expr))

	for {
		next, err := sched.Next(time.Now().UTC())
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
