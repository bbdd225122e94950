package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/spec"
)

var testNow = time.Date(2024, 11, 25, 12, 0, 0, 0, time.UTC)

func sportsProfile(t *testing.T) *profile.Profile {
	t.Helper()
	r, err := profile.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.Get(spec.ModeSportsHighlight)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func video(id, title string, minutes int) candidate.Video {
	return candidate.Video{
		ID:                id,
		Title:             title,
		ChannelID:         "ch",
		ChannelReputation: 0.5,
		DurationSeconds:   minutes * 60,
		PublishedAt:       testNow.Add(-24 * time.Hour),
		ViewCount:         1000,
	}
}

func TestScorer_SpoilerFilterFollowsSportsMode(t *testing.T) {
	p := sportsProfile(t)
	videos := []candidate.Video{
		video("clean", "Packers vs Bears Highlights", 10),
		video("spoiler", "Final Score: Packers vs Bears", 10),
	}
	videos[1].ViewCount = 10_000_000

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl week 12", Teams: []string{"bears", "packers"}, SportsMode: true}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].ID != "clean" {
		t.Errorf("Expected spoiler to be excluded despite its score, got %+v", result.Candidates)
	}
	if result.Filtered.Spoiler != 1 {
		t.Errorf("Expected 1 spoiler filtered, got %d", result.Filtered.Spoiler)
	}

	q.SportsMode = false
	result, err = NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("Expected spoiler to be included without sports mode, got %d candidates", len(result.Candidates))
	}
}

func TestScorer_ScoreLeakPattern(t *testing.T) {
	p := sportsProfile(t)
	videos := []candidate.Video{
		video("leak", "Packers 24-17 Bears | Week 12", 10),
		video("season", "2023-24 Packers season in review", 10),
	}

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "packers", SportsMode: true}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].ID != "season" {
		t.Errorf("Expected only the score line to be treated as a leak, got %+v", result.Candidates)
	}
}

func TestScorer_HardFilters(t *testing.T) {
	p := sportsProfile(t)

	nsfw := video("nsfw", "Highlights uncut", 10)
	nsfw.NSFW = true
	unknown := video("unknown", "Highlights", 0)

	videos := []candidate.Video{
		video("ok", "NFL highlights", 10),
		video("excluded", "NFL fantasy advice", 10),
		{ID: "excluded-desc", Title: "NFL", Description: "Betting odds inside", DurationSeconds: 600},
		nsfw,
		video("too-long", "NFL highlights", 13),
		video("too-short", "NFL highlights", 7),
		unknown,
		video("upper-edge", "NFL highlights", 12),
	}

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl", Exclusions: []string{"betting odds", "fantasy"}}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}

	want := FilterCounts{Exclusion: 2, NSFW: 1, Duration: 3}
	if result.Filtered != want {
		t.Errorf("Expected filter counts %+v, got %+v", want, result.Filtered)
	}
	if result.Total != len(videos) {
		t.Errorf("Expected total %d, got %d", len(videos), result.Total)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("Expected 2 survivors, got %d", len(result.Candidates))
	}
}

func TestScorer_ExclusionMatchingPerField(t *testing.T) {
	p := sportsProfile(t)

	videos := []candidate.Video{
		{ID: "wrapped", Title: "NFL week 12", Description: "Full POST\n  game press conference", DurationSeconds: 600},
		{ID: "fullwidth", Title: "ＰＯＳＴ GAME reactions", DurationSeconds: 600},
		{ID: "spanning", Title: "NFL highlights post", Description: "game recap with every drive", DurationSeconds: 600},
	}

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl", Exclusions: []string{"post game"}}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}

	if result.Filtered.Exclusion != 2 {
		t.Errorf("Expected 2 exclusions, got %d", result.Filtered.Exclusion)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].ID != "spanning" {
		t.Errorf("Expected a phrase split across title and description to survive, got %+v", result.Candidates)
	}
}

func TestScorer_ContentMixSegmentTargets(t *testing.T) {
	p := sportsProfile(t)
	videos := []candidate.Video{
		video("highlight", "NFL", 10),
		video("analysis", "NFL", 20),
		video("between", "NFL", 15),
	}

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl", ContentMix: []string{"analysis", "highlights"}}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Candidates) != 2 || result.Filtered.Duration != 1 {
		t.Errorf("Expected 10m and 20m clips to fit the mix, got %d kept, %d dropped", len(result.Candidates), result.Filtered.Duration)
	}
}

func TestScorer_InsufficientCandidates(t *testing.T) {
	p := sportsProfile(t)
	videos := []candidate.Video{video("long", "NFL", 90)}

	result, err := NewScorer(nil).Run(videos, spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl"}, p, testNow)
	if !errors.Is(err, ErrInsufficientCandidates) {
		t.Fatalf("Expected ErrInsufficientCandidates, got %v", err)
	}
	if result.Filtered.Duration != 1 {
		t.Errorf("Expected filter counts to survive, got %+v", result.Filtered)
	}

	if _, err := NewScorer(nil).Run(nil, spec.QuerySpec{}, p, testNow); !errors.Is(err, ErrInsufficientCandidates) {
		t.Errorf("Expected ErrInsufficientCandidates for empty pool, got %v", err)
	}
}

func TestScorer_OrderingAndTies(t *testing.T) {
	p := sportsProfile(t)
	videos := []candidate.Video{
		video("b", "NFL highlights", 10),
		video("a", "NFL highlights", 10),
		video("c", "NFL", 10),
	}
	videos[2].ChannelReputation = 0

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl"}
	result, err := NewScorer(nil).Run(videos, q, p, testNow)
	if err != nil {
		t.Fatal(err)
	}

	ids := []string{result.Candidates[0].ID, result.Candidates[1].ID, result.Candidates[2].ID}
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Expected order [a b c], got %v", ids)
	}
	for i := 1; i < len(result.Candidates); i++ {
		if result.Candidates[i].Scores.Final > result.Candidates[i-1].Scores.Final {
			t.Errorf("Expected non-increasing scores at %d", i)
		}
	}

	sc := result.Candidates[0].Scores
	want := p.Weights.Highlight*sc.Highlight + p.Weights.ChannelReputation*sc.ChannelReputation +
		p.Weights.ViewCount*sc.ViewCountNormalized + p.Weights.Freshness*sc.Freshness
	if math.Abs(sc.Final-want) > 1e-9 {
		t.Errorf("Expected final score to be the weighted sum %v, got %v", want, sc.Final)
	}
}

func TestViewCountScore(t *testing.T) {
	if got := viewCountScore(1000, 1000); got != 1 {
		t.Errorf("Expected pool max to score 1, got %v", got)
	}
	if got := viewCountScore(0, 1000); got != 0 {
		t.Errorf("Expected zero views to score 0, got %v", got)
	}
	low, high := viewCountScore(10, 1_000_000), viewCountScore(1000, 1_000_000)
	if !(low < high && high < 1) {
		t.Errorf("Expected monotonic scores below 1, got %v, %v", low, high)
	}
	if low < 0.1 {
		t.Errorf("Expected log scale to keep small channels visible, got %v", low)
	}
}

func TestFreshnessScore(t *testing.T) {
	f := profile.Freshness{Floor: 0.2, HalfLifeHours: 24}

	if got := freshnessScore(testNow, testNow, f); got != 1 {
		t.Errorf("Expected 1 at publish time, got %v", got)
	}
	if got := freshnessScore(testNow.Add(-24*time.Hour), testNow, f); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Expected half-way to the floor after one half-life, got %v", got)
	}
	if got := freshnessScore(testNow.Add(-1000*24*time.Hour), testNow, f); math.Abs(got-0.2) > 1e-6 {
		t.Errorf("Expected floor for old videos, got %v", got)
	}
	if got := freshnessScore(time.Time{}, testNow, f); got != 0.2 {
		t.Errorf("Expected floor for unknown dates, got %v", got)
	}
	if got := freshnessScore(testNow.Add(time.Hour), testNow, f); got != 1 {
		t.Errorf("Expected 1 for future dates, got %v", got)
	}
}
