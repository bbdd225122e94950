// Package scoring filters a raw candidate pool against a request and ranks
// what is left.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/spec"
)

const (
	relevanceShare = 0.6
	highlightShare = 0.4
)

type Scorer struct {
	classifier Classifier
}

func NewScorer(classifier Classifier) *Scorer {
	if classifier == nil {
		classifier = NewPatternClassifier()
	}
	return &Scorer{classifier: classifier}
}

// Run filters and scores videos. Scores depend only on the inputs and now, so
// the same pool always ranks the same way; ties break by video ID.
func (s *Scorer) Run(videos []candidate.Video, q spec.QuerySpec, p *profile.Profile, now time.Time) (Result, error) {
	result := Result{Total: len(videos)}
	segmentTargets := p.SegmentTargets(q.ContentMix)

	kept := make([]candidate.Video, 0, len(videos))
	for _, v := range videos {
		switch check(v, q, p, segmentTargets) {
		case byExclusion:
			result.Filtered.Exclusion++
		case bySpoiler:
			result.Filtered.Spoiler++
		case byNSFW:
			result.Filtered.NSFW++
		case byDuration:
			result.Filtered.Duration++
		default:
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 {
		return result, ErrInsufficientCandidates
	}

	var maxViews int64
	for _, v := range kept {
		maxViews = max(maxViews, v.ViewCount)
	}

	terms := q.Terms()
	scored := make([]ScoredCandidate, len(kept))
	for i, v := range kept {
		scores := Scores{
			Highlight:           highlightScore(v, terms, p.HighlightTerms),
			Freshness:           freshnessScore(v.PublishedAt, now, p.Freshness),
			ViewCountNormalized: viewCountScore(v.ViewCount, maxViews),
			ChannelReputation:   clamp01(v.ChannelReputation),
		}
		scores.Final = p.Weights.Highlight*scores.Highlight +
			p.Weights.ChannelReputation*scores.ChannelReputation +
			p.Weights.ViewCount*scores.ViewCountNormalized +
			p.Weights.Freshness*scores.Freshness

		scored[i] = ScoredCandidate{Video: v, Scores: scores}
	}

	tags := s.classifier.Tag(scored, p)
	for i := range scored {
		scored[i].ContentTag = tags[i]
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Scores.Final != scored[j].Scores.Final {
			return scored[i].Scores.Final > scored[j].Scores.Final
		}
		return scored[i].ID < scored[j].ID
	})

	result.Candidates = scored
	return result, nil
}

// highlightScore blends how much of the query a video covers with whether it
// presents itself as highlight material.
func highlightScore(v candidate.Video, terms, highlightTerms []string) float64 {
	fields := matchFields(v)
	for _, tag := range v.Tags {
		fields = append(fields, spec.NormalizeTerm(tag))
	}

	relevance := 1.0
	if len(terms) > 0 {
		hits := 0
		for _, term := range terms {
			if anyFieldContains(fields, term) {
				hits++
			}
		}
		relevance = float64(hits) / float64(len(terms))
	}

	var highlight float64
	for _, term := range highlightTerms {
		if anyFieldContains(fields, spec.NormalizeTerm(term)) {
			highlight = 1
			break
		}
	}

	return relevanceShare*relevance + highlightShare*highlight
}

// freshnessScore decays from 1 at publish time towards floor with the given
// half-life. Unknown publish dates score the floor.
func freshnessScore(publishedAt, now time.Time, f profile.Freshness) float64 {
	if publishedAt.IsZero() {
		return f.Floor
	}
	age := now.Sub(publishedAt).Hours()
	if age <= 0 {
		return 1
	}
	decay := math.Exp(-math.Ln2 * age / f.HalfLifeHours)
	return f.Floor + (1-f.Floor)*decay
}

// viewCountScore squashes views onto [0,1] on a log scale relative to the
// pool's most viewed candidate.
func viewCountScore(views, maxViews int64) float64 {
	if views <= 0 || maxViews <= 0 {
		return 0
	}
	return math.Log1p(float64(views)) / math.Log1p(float64(maxViews))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
