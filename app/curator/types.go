package curator

import (
	"time"

	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/scoring"
	"github.com/lysyi3m/reel-comb/app/sequencer"
)

type CacheStatus string

const (
	StatusCached CacheStatus = "cached"
	StatusFresh  CacheStatus = "fresh"
)

type Options struct {
	ForceRefresh bool
}

// Result is the curated playlist as returned to API callers.
type Result struct {
	PlaylistID           string              `json:"playlist_id"`
	QueryID              string              `json:"query_id"`
	Signature            string              `json:"signature"`
	Items                []sequencer.Segment `json:"items"`
	TotalDurationSeconds int                 `json:"total_duration_seconds"`
	CoverageShortfall    bool                `json:"coverage_shortfall"`
	Explanation          Explanation         `json:"explanation"`
	CreatedAt            time.Time           `json:"created_at"`
	StaleAfter           *time.Time          `json:"stale_after"`
	CacheStatus          CacheStatus         `json:"cache_status"`
}

type Explanation struct {
	Assumptions           []string          `json:"assumptions"`
	FiltersApplied        FiltersApplied    `json:"filters_applied"`
	RankingFactors        profile.Weights   `json:"ranking_factors"`
	CoverageNotes         []string          `json:"coverage_notes"`
	TotalCandidates       int               `json:"total_candidates"`
	SelectedVideos        int               `json:"selected_videos"`
	ActualVsTargetMinutes MinutesComparison `json:"actual_vs_target_minutes"`
}

type FiltersApplied struct {
	Exclusions        []string             `json:"exclusions"`
	SpoilerFilter     bool                 `json:"spoiler_filter"`
	NSFWFilter        bool                 `json:"nsfw_filter"`
	DurationTolerance float64              `json:"duration_tolerance"`
	Removed           scoring.FilterCounts `json:"removed"`
}

type MinutesComparison struct {
	Actual float64 `json:"actual"`
	Target int     `json:"target"`
}
