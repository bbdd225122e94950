// Package sequencer turns ranked candidates into a duration-bounded, ordered
// playlist.
package sequencer

import (
	"math/rand/v2"
	"sync"

	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/scoring"
	"github.com/lysyi3m/reel-comb/app/spec"
)

const (
	surpriseMinMinutes = 60
	surpriseMaxMinutes = 120
)

type Segment struct {
	Position          int                     `json:"position"`
	Candidate         scoring.ScoredCandidate `json:"candidate"`
	StartsAtMinute    *int                    `json:"starts_at_minute"`
	LockedUntilMinute *int                    `json:"locked_until_minute,omitempty"`
}

type Sequence struct {
	Segments             []Segment
	Selected             []scoring.ScoredCandidate // in selection order
	TotalDurationSeconds int
	TargetMinutes        int
	CoverageShortfall    bool
	LockMinutes          *int // spoiler lock threshold, when one applied
	ExcludedEndings      int  // ending segments dropped for lack of room before the lock
}

// Sequencer is safe for concurrent use.
type Sequencer struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// New returns a Sequencer drawing surprise thresholds from rng. A nil rng
// uses a randomly seeded source.
func New(rng *rand.Rand) *Sequencer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sequencer{rng: rng}
}

// Run selects from candidates, which must be sorted best first, and orders the
// selection into segments.
func (s *Sequencer) Run(candidates []scoring.ScoredCandidate, q spec.QuerySpec, p *profile.Profile) Sequence {
	target := q.DurationBucket.TargetMinutes() * 60
	lower, upper := q.DurationBucket.Bounds()

	seq := Sequence{TargetMinutes: q.DurationBucket.TargetMinutes()}

	sel := newSelection(candidates, upper)
	sel.fill(target, anyTag)

	if lock, ok := s.lockMinutes(candidates, q); ok {
		seq.LockMinutes = &lock
		seq.ExcludedEndings = sel.reserveLock(lock*60, target)
	}

	seq.Selected = sel.picks()
	seq.Segments = arrange(seq.Selected, q, p, seq.LockMinutes)
	seq.TotalDurationSeconds = sel.running
	seq.CoverageShortfall = sel.running < lower

	return seq
}

func (s *Sequencer) lockMinutes(candidates []scoring.ScoredCandidate, q spec.QuerySpec) (int, bool) {
	if q.DurationBucket != spec.Bucket600Plus || q.EndingDelay == "" {
		return 0, false
	}

	hasEnding := false
	for _, c := range candidates {
		if isEnding(c) {
			hasEnding = true
			break
		}
	}
	if !hasEnding {
		return 0, false
	}

	if minutes, ok := q.EndingDelay.Minutes(); ok {
		return minutes, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return surpriseMinMinutes + s.rng.IntN(surpriseMaxMinutes-surpriseMinMinutes+1), true
}

func anyTag(scoring.ScoredCandidate) bool { return true }

func isEnding(c scoring.ScoredCandidate) bool { return c.ContentTag == scoring.TagEnding }

func notEnding(c scoring.ScoredCandidate) bool { return !isEnding(c) }

type selection struct {
	candidates []scoring.ScoredCandidate
	selected   []bool
	order      []int
	running    int
	upper      int
}

func newSelection(candidates []scoring.ScoredCandidate, upper int) *selection {
	return &selection{
		candidates: candidates,
		selected:   make([]bool, len(candidates)),
		upper:      upper,
	}
}

func (sel *selection) fits(i int) bool {
	return !sel.selected[i] && sel.running+sel.candidates[i].DurationSeconds <= sel.upper
}

func (sel *selection) add(i int) {
	sel.selected[i] = true
	sel.order = append(sel.order, i)
	sel.running += sel.candidates[i].DurationSeconds
}

// fill greedily selects eligible candidates in score order until the running
// total reaches target. A candidate that would overshoot the upper bound is
// skipped, and the next one is tried.
func (sel *selection) fill(target int, eligible func(scoring.ScoredCandidate) bool) {
	for i, c := range sel.candidates {
		if sel.running >= target {
			return
		}
		if eligible(c) && sel.fits(i) {
			sel.add(i)
		}
	}
}

func (sel *selection) runtime(match func(scoring.ScoredCandidate) bool) int {
	total := 0
	for _, i := range sel.order {
		if match(sel.candidates[i]) {
			total += sel.candidates[i].DurationSeconds
		}
	}
	return total
}

// reserveLock makes sure enough non-ending runtime exists to play before any
// ending segment. It back-fills non-ending candidates first. When the threshold
// still cannot be reached it drops the endings and refills with non-ending
// candidates; if that reaches the threshold, dropped endings that still fit are
// restored. It returns how many endings stayed out.
func (sel *selection) reserveLock(lockSeconds, target int) int {
	nonEnding := sel.runtime(notEnding)
	for i, c := range sel.candidates {
		if nonEnding >= lockSeconds {
			return 0
		}
		if notEnding(c) && sel.fits(i) {
			sel.add(i)
			nonEnding += c.DurationSeconds
		}
	}
	if nonEnding >= lockSeconds {
		return 0
	}

	var dropped []int
	kept := sel.order[:0]
	for _, i := range sel.order {
		if isEnding(sel.candidates[i]) {
			sel.selected[i] = false
			sel.running -= sel.candidates[i].DurationSeconds
			dropped = append(dropped, i)
			continue
		}
		kept = append(kept, i)
	}
	sel.order = kept

	sel.fill(target, notEnding)
	if sel.runtime(notEnding) < lockSeconds {
		return len(dropped)
	}

	excluded := 0
	for _, i := range dropped {
		if sel.fits(i) {
			sel.add(i)
			continue
		}
		excluded++
	}
	return excluded
}

func (sel *selection) picks() []scoring.ScoredCandidate {
	picks := make([]scoring.ScoredCandidate, len(sel.order))
	for j, i := range sel.order {
		picks[j] = sel.candidates[i]
	}
	return picks
}
