package scoring

import (
	"sort"
	"strings"

	"github.com/lysyi3m/reel-comb/app/profile"
)

// Classifier assigns a content tag to every candidate in a pool. It sees the
// whole pool because position in the narrative arc is relative.
type Classifier interface {
	Tag(candidates []ScoredCandidate, p *profile.Profile) []ContentTag
}

// minArcSize is the smallest pool for which chronological position says
// anything about the narrative arc.
const minArcSize = 5

// PatternClassifier tags by profile phrase patterns first, then by where a
// video falls in the chronological order of the pool.
type PatternClassifier struct{}

func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

func (c *PatternClassifier) Tag(candidates []ScoredCandidate, p *profile.Profile) []ContentTag {
	tags := make([]ContentTag, len(candidates))

	// Ending first: a video that both previews and reveals must stay locked.
	groups := []struct {
		tag      ContentTag
		patterns []string
	}{
		{TagEnding, p.TagPatterns.Ending},
		{TagIntro, p.TagPatterns.Intro},
		{TagContext, p.TagPatterns.Context},
		{TagDeepDive, p.TagPatterns.DeepDive},
	}

	for i, sc := range candidates {
		text := strings.ToLower(sc.Title + " " + sc.Description + " " + strings.Join(sc.Tags, " "))
		for _, g := range groups {
			if containsAny(text, g.patterns) {
				tags[i] = g.tag
				break
			}
		}
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		if !ca.PublishedAt.Equal(cb.PublishedAt) {
			return ca.PublishedAt.Before(cb.PublishedAt)
		}
		return ca.ID < cb.ID
	})

	for rank, i := range order {
		if tags[i] != "" {
			continue
		}
		if len(candidates) < minArcSize {
			tags[i] = TagMisc
			continue
		}
		tags[i] = arcTag(float64(rank) / float64(len(candidates)))
	}

	return tags
}

func arcTag(position float64) ContentTag {
	switch {
	case position < 0.1:
		return TagIntro
	case position < 0.3:
		return TagContext
	case position < 0.9:
		return TagDeepDive
	default:
		return TagEnding
	}
}

func containsAny(text string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(text, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
