package scoring

import (
	"regexp"
	"strings"

	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/spec"
)

// Score lines such as "24-17" or "3 – 1" in a title give the result away.
var scoreLeak = regexp.MustCompile(`\b\d{1,3}\s*[-–:]\s*\d{1,3}\b`)

type filterReason int

const (
	passed filterReason = iota
	byExclusion
	bySpoiler
	byNSFW
	byDuration
)

// check applies the hard filters in order and reports the first that fails.
func check(v candidate.Video, q spec.QuerySpec, p *profile.Profile, segmentTargets []int) filterReason {
	fields := matchFields(v)

	for _, term := range q.Exclusions {
		if anyFieldContains(fields, term) {
			return byExclusion
		}
	}

	if q.SportsMode && isSpoiler(v, fields, p) {
		return bySpoiler
	}

	if p.FilterNSFW && v.NSFW {
		return byNSFW
	}

	if !fitsSegment(v.DurationSeconds, segmentTargets, p.DurationTolerance) {
		return byDuration
	}

	return passed
}

func isSpoiler(v candidate.Video, fields []string, p *profile.Profile) bool {
	for _, term := range p.SpoilerTerms {
		if anyFieldContains(fields, spec.NormalizeTerm(term)) {
			return true
		}
	}
	return p.ScoreLeakPattern && scoreLeak.MatchString(v.Title)
}

// matchFields normalizes title and description like request terms are
// normalized. The fields stay separate so a phrase never spans both.
func matchFields(v candidate.Video) []string {
	return []string{spec.NormalizeTerm(v.Title), spec.NormalizeTerm(v.Description)}
}

func anyFieldContains(fields []string, term string) bool {
	if term == "" {
		return false
	}
	for _, field := range fields {
		if strings.Contains(field, term) {
			return true
		}
	}
	return false
}

// fitsSegment reports whether a duration is a plausible building block: within
// tolerance of at least one segment target. Unknown durations never fit.
func fitsSegment(durationSeconds int, targetMinutes []int, tolerance float64) bool {
	if durationSeconds <= 0 {
		return false
	}
	for _, minutes := range targetMinutes {
		target := float64(minutes * 60)
		if diff := float64(durationSeconds) - target; diff >= -target*tolerance && diff <= target*tolerance {
			return true
		}
	}
	return false
}
