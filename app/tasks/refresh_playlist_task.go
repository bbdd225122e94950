package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/reel-comb/app/spec"
)

type RefreshPlaylistTask struct {
	Task
	Spec      spec.QuerySpec
	refresher Refresher
}

func NewRefreshPlaylistTask(signature string, q spec.QuerySpec, refresher Refresher) *RefreshPlaylistTask {
	return &RefreshPlaylistTask{
		Task:      NewTask(TaskTypeRefreshPlaylist, signature),
		Spec:      q,
		refresher: refresher,
	}
}

func (t *RefreshPlaylistTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	res, err := t.refresher.Refresh(ctx, t.Spec)
	if err != nil {
		return fmt.Errorf("failed to refresh playlist: %w", err)
	}

	slog.Info("Playlist refreshed",
		"signature", t.Key,
		"playlist_id", res.PlaylistID,
		"cache_status", res.CacheStatus,
		"items", len(res.Items),
		"duration", t.GetDuration())

	return nil
}
