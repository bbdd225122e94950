package database

import (
	"context"
	"time"
)

type PlaylistRepository interface {
	// GetLatest returns the newest playlist for a signature and mode, or nils
	// when none was ever built.
	GetLatest(ctx context.Context, signature, mode string) (*QueryRecord, *PlaylistRecord, error)
	GetPlaylist(ctx context.Context, playlistID string) (*QueryRecord, *PlaylistRecord, error)
	GetStats(ctx context.Context) (Stats, error)

	// Put upserts the query by (signature, mode) and inserts the playlist
	// under it in one transaction. It returns the effective query ID.
	Put(ctx context.Context, query QueryRecord, playlist PlaylistRecord) (string, error)
	TouchLastUsed(ctx context.Context, queryID string, at time.Time) error

	ListStaleQueries(ctx context.Context, now, usedSince time.Time, schemaVersion, limit int) ([]QueryRecord, error)
}
