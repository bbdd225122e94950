package profile

import (
	"github.com/lysyi3m/reel-comb/app/spec"
)

// Weights are the ranking factor weights. They must sum to 1.
type Weights struct {
	Highlight         float64 `yaml:"highlight" json:"highlight"`
	ChannelReputation float64 `yaml:"channel_reputation" json:"channel_reputation"`
	ViewCount         float64 `yaml:"view_count" json:"view_count"`
	Freshness         float64 `yaml:"freshness" json:"freshness"`
}

func (w Weights) Sum() float64 {
	return w.Highlight + w.ChannelReputation + w.ViewCount + w.Freshness
}

type Freshness struct {
	Floor         float64 `yaml:"floor"`
	HalfLifeHours float64 `yaml:"half_life_hours"`
}

// TagPatterns are lower-case phrases that mark a video as belonging to a
// part of the narrative arc.
type TagPatterns struct {
	Intro    []string `yaml:"intro"`
	Context  []string `yaml:"context"`
	DeepDive []string `yaml:"deep_dive"`
	Ending   []string `yaml:"ending"`
}

// Profile is the per-mode tuning used by scoring and sequencing.
type Profile struct {
	Mode spec.Mode `yaml:"-"`

	Weights   Weights   `yaml:"weights"`
	Freshness Freshness `yaml:"freshness"`

	FilterNSFW            bool           `yaml:"filter_nsfw"`
	DurationTolerance     float64        `yaml:"duration_tolerance"` // fraction of a segment target
	DefaultSegmentMinutes int            `yaml:"default_segment_minutes"`
	SegmentMinutes        map[string]int `yaml:"segment_minutes"`
	InterspersalMinutes   int            `yaml:"interspersal_minutes"`

	SpoilerTerms     []string `yaml:"spoiler_terms"`
	ScoreLeakPattern bool     `yaml:"score_leak_pattern"`
	HighlightTerms   []string `yaml:"highlight_terms"`

	TagPatterns TagPatterns `yaml:"tag_patterns"`
}

// SegmentTargets returns the per-segment target runtimes, in minutes, implied
// by a content mix. Unknown mix entries and an empty mix fall back to the
// profile default.
func (p *Profile) SegmentTargets(contentMix []string) []int {
	targets := make([]int, 0, len(contentMix)+1)
	seen := make(map[int]bool)
	add := func(m int) {
		if m > 0 && !seen[m] {
			seen[m] = true
			targets = append(targets, m)
		}
	}

	for _, mix := range contentMix {
		if m, ok := p.SegmentMinutes[mix]; ok {
			add(m)
		} else {
			add(p.DefaultSegmentMinutes)
		}
	}
	if len(targets) == 0 {
		add(p.DefaultSegmentMinutes)
	}
	return targets
}

func (p *Profile) clone() *Profile {
	c := *p
	c.SegmentMinutes = make(map[string]int, len(p.SegmentMinutes))
	for k, v := range p.SegmentMinutes {
		c.SegmentMinutes[k] = v
	}
	c.SpoilerTerms = append([]string(nil), p.SpoilerTerms...)
	c.HighlightTerms = append([]string(nil), p.HighlightTerms...)
	c.TagPatterns = TagPatterns{
		Intro:    append([]string(nil), p.TagPatterns.Intro...),
		Context:  append([]string(nil), p.TagPatterns.Context...),
		DeepDive: append([]string(nil), p.TagPatterns.DeepDive...),
		Ending:   append([]string(nil), p.TagPatterns.Ending...),
	}
	return &c
}
