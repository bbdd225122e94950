package sequencer

import (
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/scoring"
	"github.com/lysyi3m/reel-comb/app/spec"
)

// longFormMinutes is the target above which intros lead and context anchors
// are spread through the playlist.
const longFormMinutes = 180

// arrange orders the selection and stamps positions, start minutes and locks.
func arrange(picks []scoring.ScoredCandidate, q spec.QuerySpec, p *profile.Profile, lockMinutes *int) []Segment {
	holdEndings := lockMinutes != nil || q.SportsMode

	var endings, rest []scoring.ScoredCandidate
	for _, c := range picks {
		if holdEndings && isEnding(c) {
			endings = append(endings, c)
		} else {
			rest = append(rest, c)
		}
	}

	if q.DurationBucket.TargetMinutes() > longFormMinutes {
		rest = intersperse(rest, p.InterspersalMinutes*60)
	}

	var ordered []scoring.ScoredCandidate
	if lockMinutes != nil && !q.SportsMode {
		ordered = insertAfter(rest, endings, *lockMinutes*60)
	} else {
		ordered = append(rest, endings...)
	}

	segments := make([]Segment, len(ordered))
	elapsed := 0
	for i, c := range ordered {
		startsAt := elapsed / 60
		segments[i] = Segment{
			Position:       i,
			Candidate:      c,
			StartsAtMinute: &startsAt,
		}
		if lockMinutes != nil && isEnding(c) {
			locked := *lockMinutes
			segments[i].LockedUntilMinute = &locked
		}
		elapsed += c.DurationSeconds
	}

	return segments
}

// intersperse leads with intro segments and places one context anchor after
// every anchorEvery seconds of other material. Anchors that find no slot are
// appended.
func intersperse(candidates []scoring.ScoredCandidate, anchorEvery int) []scoring.ScoredCandidate {
	var intros, anchors, body []scoring.ScoredCandidate
	for _, c := range candidates {
		switch c.ContentTag {
		case scoring.TagIntro:
			intros = append(intros, c)
		case scoring.TagContext:
			anchors = append(anchors, c)
		default:
			body = append(body, c)
		}
	}

	out := make([]scoring.ScoredCandidate, 0, len(candidates))
	out = append(out, intros...)

	sinceAnchor := 0
	for _, c := range intros {
		sinceAnchor += c.DurationSeconds
	}
	for _, c := range body {
		out = append(out, c)
		sinceAnchor += c.DurationSeconds
		if len(anchors) > 0 && sinceAnchor >= anchorEvery {
			out = append(out, anchors[0])
			anchors = anchors[1:]
			sinceAnchor = 0
		}
	}

	return append(out, anchors...)
}

// insertAfter places held segments at the first boundary where at least
// thresholdSeconds of rest have played.
func insertAfter(rest, held []scoring.ScoredCandidate, thresholdSeconds int) []scoring.ScoredCandidate {
	if len(held) == 0 {
		return rest
	}

	out := make([]scoring.ScoredCandidate, 0, len(rest)+len(held))
	elapsed := 0
	inserted := false
	for _, c := range rest {
		if !inserted && elapsed >= thresholdSeconds {
			out = append(out, held...)
			inserted = true
		}
		out = append(out, c)
		elapsed += c.DurationSeconds
	}
	if !inserted {
		out = append(out, held...)
	}
	return out
}
