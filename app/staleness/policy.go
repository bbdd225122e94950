// Package staleness decides how long a curated playlist stays fresh, based on
// how recent the real-world events it covers are.
package staleness

import (
	"time"

	"github.com/lysyi3m/reel-comb/app/spec"
)

const day = 24 * time.Hour

// Policy holds the recency windows. The zero value is not usable; use NewPolicy.
type Policy struct {
	SchemaVersion int

	RecentAge   time.Duration // anchors younger than this are "recent"
	RecentTTL   time.Duration
	SettlingAge time.Duration // anchors younger than this (but not recent) are "settling"
	SettlingTTL time.Duration
}

// Record is the part of a stored playlist the policy needs.
type Record struct {
	StaleAfter    *time.Time
	SchemaVersion int
}

func NewPolicy(schemaVersion int) Policy {
	return Policy{
		SchemaVersion: schemaVersion,
		RecentAge:     2 * day,
		RecentTTL:     6 * time.Hour,
		SettlingAge:   30 * day,
		SettlingTTL:   3 * day,
	}
}

// StaleAfter returns when a playlist built at createdAt about events on the
// anchor date stops being fresh, or nil when it never expires.
func (p Policy) StaleAfter(anchor, createdAt time.Time) *time.Time {
	age := createdAt.Sub(anchor)

	var ttl time.Duration
	switch {
	case age < p.RecentAge:
		ttl = p.RecentTTL
	case age < p.SettlingAge:
		ttl = p.SettlingTTL
	default:
		return nil
	}

	staleAfter := createdAt.Add(ttl)
	return &staleAfter
}

// IsStale reports whether a stored playlist must be rebuilt. A schema version
// mismatch forces a rebuild even for records that never expire.
func (p Policy) IsStale(r Record, now time.Time) bool {
	if r.SchemaVersion != p.SchemaVersion {
		return true
	}
	return r.StaleAfter != nil && !now.Before(*r.StaleAfter)
}

// Anchor returns the calendar date a spec is "about": the end of its explicit
// date range, or the request date for evergreen and open-ended topics. The
// result is UTC midnight.
func Anchor(q spec.QuerySpec, now time.Time) time.Time {
	if q.DateRange != nil && q.DateRange.End != nil {
		return truncateDay(*q.DateRange.End)
	}
	return truncateDay(now)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
