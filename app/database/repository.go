package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository handles database operations for queries and their playlists
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const playlistColumns = `p.id, p.query_id, p.items, p.explanation, p.total_duration_seconds,
	p.coverage_shortfall, p.schema_version, p.created_at, p.stale_after`

const queryColumns = `q.id, q.signature, q.mode, q.canonical_spec, q.schema_version, q.created_at, q.last_used_at`

func (r *Repository) GetLatest(ctx context.Context, signature, mode string) (*QueryRecord, *PlaylistRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+queryColumns+`, `+playlistColumns+`
		FROM query_records q
		JOIN playlist_records p ON p.query_id = q.id
		WHERE q.signature = ? AND q.mode = ?
		ORDER BY p.created_at DESC, p.rowid DESC
		LIMIT 1
	`, signature, mode)

	query, playlist, err := scanQueryAndPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest playlist: %w", err)
	}
	return query, playlist, nil
}

func (r *Repository) GetPlaylist(ctx context.Context, playlistID string) (*QueryRecord, *PlaylistRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+queryColumns+`, `+playlistColumns+`
		FROM playlist_records p
		JOIN query_records q ON q.id = p.query_id
		WHERE p.id = ?
	`, playlistID)

	query, playlist, err := scanQueryAndPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return query, playlist, nil
}

func (r *Repository) Put(ctx context.Context, query QueryRecord, playlist PlaylistRecord) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var queryID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO query_records (id, signature, mode, canonical_spec, schema_version, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (signature, mode) DO UPDATE SET
			canonical_spec = excluded.canonical_spec,
			schema_version = excluded.schema_version,
			last_used_at = excluded.last_used_at
		RETURNING id
	`, query.ID, query.Signature, query.Mode, string(query.CanonicalSpec), query.SchemaVersion,
		formatTime(query.CreatedAt), formatTime(query.LastUsedAt)).Scan(&queryID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert query: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlist_records (
			id, query_id, items, explanation, total_duration_seconds,
			coverage_shortfall, schema_version, created_at, stale_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, playlist.ID, queryID, string(playlist.Items), string(playlist.Explanation), playlist.TotalDurationSeconds,
		playlist.CoverageShortfall, playlist.SchemaVersion, formatTime(playlist.CreatedAt), formatNullTime(playlist.StaleAfter))
	if err != nil {
		return "", fmt.Errorf("failed to insert playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit playlist: %w", err)
	}

	return queryID, nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, queryID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE query_records SET last_used_at = ? WHERE id = ?`, formatTime(at), queryID)
	if err != nil {
		return fmt.Errorf("failed to update last used time: %w", err)
	}
	return nil
}

// ListStaleQueries returns queries used since usedSince whose newest playlist
// has expired at now or was built by another schema version, most recently
// used first.
func (r *Repository) ListStaleQueries(ctx context.Context, now, usedSince time.Time, schemaVersion, limit int) ([]QueryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+queryColumns+`
		FROM query_records q
		JOIN playlist_records p ON p.rowid = (
			SELECT latest.rowid FROM playlist_records latest
			WHERE latest.query_id = q.id
			ORDER BY latest.created_at DESC, latest.rowid DESC
			LIMIT 1
		)
		WHERE q.last_used_at >= ?
			AND ((p.stale_after IS NOT NULL AND p.stale_after <= ?) OR p.schema_version != ?)
		ORDER BY q.last_used_at DESC
		LIMIT ?
	`, formatTime(usedSince), formatTime(now), schemaVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale queries: %w", err)
	}
	defer rows.Close()

	var queries []QueryRecord
	for rows.Next() {
		query, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, *query)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queries: %w", err)
	}

	return queries, nil
}

func (r *Repository) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var lastBuilt sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM query_records),
			(SELECT COUNT(*) FROM playlist_records),
			(SELECT MAX(created_at) FROM playlist_records)
	`).Scan(&stats.Queries, &stats.Playlists, &lastBuilt)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	if lastBuilt.Valid {
		t, err := parseTime(lastBuilt.String)
		if err != nil {
			return Stats{}, err
		}
		stats.LastBuiltAt = &t
	}

	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuery(s scanner) (*QueryRecord, error) {
	var q QueryRecord
	var canonical, createdAt, lastUsedAt string

	if err := s.Scan(&q.ID, &q.Signature, &q.Mode, &canonical, &q.SchemaVersion, &createdAt, &lastUsedAt); err != nil {
		return nil, err
	}
	return finishQuery(&q, canonical, createdAt, lastUsedAt)
}

func scanQueryAndPlaylist(s scanner) (*QueryRecord, *PlaylistRecord, error) {
	var q QueryRecord
	var p PlaylistRecord
	var canonical, queryCreatedAt, lastUsedAt string
	var items, explanation, playlistCreatedAt string
	var staleAfter sql.NullString

	err := s.Scan(
		&q.ID, &q.Signature, &q.Mode, &canonical, &q.SchemaVersion, &queryCreatedAt, &lastUsedAt,
		&p.ID, &p.QueryID, &items, &explanation, &p.TotalDurationSeconds,
		&p.CoverageShortfall, &p.SchemaVersion, &playlistCreatedAt, &staleAfter,
	)
	if err != nil {
		return nil, nil, err
	}

	if _, err := finishQuery(&q, canonical, queryCreatedAt, lastUsedAt); err != nil {
		return nil, nil, err
	}

	p.Items = []byte(items)
	p.Explanation = []byte(explanation)
	if p.CreatedAt, err = parseTime(playlistCreatedAt); err != nil {
		return nil, nil, err
	}
	if staleAfter.Valid {
		t, err := parseTime(staleAfter.String)
		if err != nil {
			return nil, nil, err
		}
		p.StaleAfter = &t
	}

	return &q, &p, nil
}

func finishQuery(q *QueryRecord, canonical, createdAt, lastUsedAt string) (*QueryRecord, error) {
	var err error
	q.CanonicalSpec = []byte(canonical)
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if q.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
		return nil, err
	}
	return q, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}
