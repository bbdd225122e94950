package database

import (
	"time"
)

type QueryRecord struct {
	ID            string // Database UUID
	Signature     string
	Mode          string
	CanonicalSpec []byte // canonical JSON form of the query
	SchemaVersion int
	CreatedAt     time.Time
	LastUsedAt    time.Time
}

type PlaylistRecord struct {
	ID                   string // Database UUID
	QueryID              string
	Items                []byte // JSON-encoded segments
	Explanation          []byte // JSON-encoded explanation payload
	TotalDurationSeconds int
	CoverageShortfall    bool
	SchemaVersion        int
	CreatedAt            time.Time
	StaleAfter           *time.Time // nil means never expires
}

type Stats struct {
	Queries     int
	Playlists   int
	LastBuiltAt *time.Time
}
