package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/reel-comb/app/database"
	"github.com/lysyi3m/reel-comb/app/spec"
)

// SweepStaleTask finds recently used queries whose latest playlist has gone
// stale and queues a refresh for each, so the next request is a cache hit.
type SweepStaleTask struct {
	Task
	store         database.PlaylistRepository
	refresher     Refresher
	scheduler     TaskSchedulerInterface
	window        time.Duration
	limit         int
	schemaVersion int
	now           func() time.Time
}

func NewSweepStaleTask(store database.PlaylistRepository, refresher Refresher, scheduler TaskSchedulerInterface,
	window time.Duration, limit, schemaVersion int) *SweepStaleTask {
	return &SweepStaleTask{
		Task:          NewTask(TaskTypeSweepStale, string(TaskTypeSweepStale)),
		store:         store,
		refresher:     refresher,
		scheduler:     scheduler,
		window:        window,
		limit:         limit,
		schemaVersion: schemaVersion,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (t *SweepStaleTask) Execute(ctx context.Context) error {
	now := t.now()

	queries, err := t.store.ListStaleQueries(ctx, now, now.Add(-t.window), t.schemaVersion, t.limit)
	if err != nil {
		return fmt.Errorf("failed to list stale queries: %w", err)
	}

	if len(queries) == 0 {
		slog.Debug("No stale playlists to refresh")
		return nil
	}

	queued := 0
	for _, query := range queries {
		q, err := spec.ParseCanonical(query.CanonicalSpec)
		if err != nil {
			slog.Warn("Stored query spec is unreadable, skipping", "query_id", query.ID, "error", err)
			continue
		}

		task := NewRefreshPlaylistTask(query.Signature, q, t.refresher)
		if err := t.scheduler.EnqueueTask(task); err != nil {
			if errors.Is(err, ErrTaskQueued) {
				slog.Debug("Refresh already queued", "signature", query.Signature)
				continue
			}
			slog.Warn("Failed to enqueue RefreshPlaylistTask", "signature", query.Signature, "error", err)
			continue
		}
		queued++
	}

	slog.Info("Stale playlist sweep finished", "stale", len(queries), "queued", queued)
	return nil
}
