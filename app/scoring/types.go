package scoring

import (
	"errors"

	"github.com/lysyi3m/reel-comb/app/candidate"
)

// ErrInsufficientCandidates means nothing survived the hard filters. It is a
// signal for a partial playlist, not a failure to report to callers.
var ErrInsufficientCandidates = errors.New("insufficient candidates after filtering")

type ContentTag string

const (
	TagIntro    ContentTag = "intro"
	TagContext  ContentTag = "context"
	TagDeepDive ContentTag = "deep_dive"
	TagEnding   ContentTag = "ending"
	TagMisc     ContentTag = "misc"
)

type Scores struct {
	Highlight           float64 `json:"highlight_score"`
	Freshness           float64 `json:"freshness_score"`
	ViewCountNormalized float64 `json:"view_count_normalized"`
	ChannelReputation   float64 `json:"channel_reputation"`
	Final               float64 `json:"final_score"`
}

type ScoredCandidate struct {
	candidate.Video
	Scores     Scores     `json:"scores"`
	ContentTag ContentTag `json:"content_tag"`
}

// FilterCounts records how many candidates each hard filter dropped.
type FilterCounts struct {
	Exclusion int `json:"exclusion"`
	Spoiler   int `json:"spoiler"`
	NSFW      int `json:"nsfw"`
	Duration  int `json:"duration"`
}

func (f FilterCounts) Total() int {
	return f.Exclusion + f.Spoiler + f.NSFW + f.Duration
}

type Result struct {
	Candidates []ScoredCandidate // sorted by final score, best first
	Filtered   FilterCounts
	Total      int // pool size before filtering
}
