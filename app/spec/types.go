package spec

import (
	"time"
)

type Mode string

const (
	ModeSportsHighlight Mode = "sports_highlight"
	ModeGeneralPlaylist Mode = "general_playlist"
)

func (m Mode) Valid() bool {
	return m == ModeSportsHighlight || m == ModeGeneralPlaylist
}

type DurationBucket string

const (
	Bucket5To15    DurationBucket = "5_15"
	Bucket15To30   DurationBucket = "15_30"
	Bucket30To60   DurationBucket = "30_60"
	Bucket60To180  DurationBucket = "60_180"
	Bucket180To600 DurationBucket = "180_600"
	Bucket600Plus  DurationBucket = "600_plus"
)

// DurationTolerancePercent is the slack around a bucket's target minutes.
const DurationTolerancePercent = 20

var bucketTargets = map[DurationBucket]int{
	Bucket5To15:    10,
	Bucket15To30:   22,
	Bucket30To60:   45,
	Bucket60To180:  180,
	Bucket180To600: 420,
	Bucket600Plus:  720,
}

func (b DurationBucket) Valid() bool {
	_, ok := bucketTargets[b]
	return ok
}

// TargetMinutes returns the concrete runtime a playlist in this bucket aims for.
func (b DurationBucket) TargetMinutes() int {
	return bucketTargets[b]
}

// Bounds returns the accepted runtime window in seconds.
func (b DurationBucket) Bounds() (lower, upper int) {
	target := b.TargetMinutes() * 60
	return target * (100 - DurationTolerancePercent) / 100, target * (100 + DurationTolerancePercent) / 100
}

type EndingDelay string

const (
	EndingDelay1h       EndingDelay = "1h"
	EndingDelay2h       EndingDelay = "2h"
	EndingDelay3h       EndingDelay = "3h"
	EndingDelay5h       EndingDelay = "5h"
	EndingDelaySurprise EndingDelay = "surprise"
)

var endingDelayMinutes = map[EndingDelay]int{
	EndingDelay1h: 60,
	EndingDelay2h: 120,
	EndingDelay3h: 180,
	EndingDelay5h: 300,
}

func (d EndingDelay) Valid() bool {
	_, ok := endingDelayMinutes[d]
	return ok || d == EndingDelaySurprise
}

// Minutes returns the fixed threshold for the delay. Surprise has no fixed
// threshold and reports false.
func (d EndingDelay) Minutes() (int, bool) {
	m, ok := endingDelayMinutes[d]
	return m, ok
}

// DateRange is an inclusive range of calendar dates, both stored at UTC midnight.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// QuerySpec is the canonical form of a curation request. Set-valued fields are
// kept sorted and de-duplicated so equal specs compare and serialize equally.
type QuerySpec struct {
	Mode           Mode
	TopicOrSport   string
	Leagues        []string
	Teams          []string
	Subtopics      []string
	DateRange      *DateRange
	DurationBucket DurationBucket
	ContentMix     []string
	Exclusions     []string
	SportsMode     bool
	EndingDelay    EndingDelay // empty when absent
	Language       string
}

// Terms returns the query vocabulary used for relevance matching.
func (q QuerySpec) Terms() []string {
	terms := make([]string, 0, 8)
	terms = append(terms, q.Leagues...)
	terms = append(terms, q.Teams...)
	terms = append(terms, q.Subtopics...)
	for _, word := range splitWords(q.TopicOrSport) {
		if len(word) >= 3 && !stopWords[word] {
			terms = append(terms, word)
		}
	}
	return dedupeSorted(terms)
}

// Request is the raw, caller-supplied curation request.
type Request struct {
	Text           string   `json:"text"`
	Mode           string   `json:"mode,omitempty"`
	Leagues        []string `json:"leagues,omitempty"`
	Teams          []string `json:"teams,omitempty"`
	Subtopics      []string `json:"subtopics,omitempty"`
	DateFrom       string   `json:"date_from,omitempty"`
	DateTo         string   `json:"date_to,omitempty"`
	DurationBucket string   `json:"duration_bucket,omitempty"`
	ContentMix     []string `json:"content_mix,omitempty"`
	Exclusions     []string `json:"exclusions,omitempty"`
	SportsMode     bool     `json:"sports_mode,omitempty"`
	EndingDelay    string   `json:"ending_delay,omitempty"`
	Language       string   `json:"language,omitempty"`
}
