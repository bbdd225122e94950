package profile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lysyi3m/reel-comb/app/spec"
)

func TestRegistryDefaults(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}

	sports, err := r.Get(spec.ModeSportsHighlight)
	if err != nil {
		t.Fatal(err)
	}
	general, err := r.Get(spec.ModeGeneralPlaylist)
	if err != nil {
		t.Fatal(err)
	}

	if sports.Weights.Freshness <= general.Weights.Freshness || sports.Weights.Highlight <= general.Weights.Highlight {
		t.Errorf("Expected sports profile to weigh freshness and highlights higher, got %+v vs %+v", sports.Weights, general.Weights)
	}
	if general.Weights.ChannelReputation <= sports.Weights.ChannelReputation || general.Weights.ViewCount <= sports.Weights.ViewCount {
		t.Errorf("Expected general profile to weigh reputation and views higher, got %+v vs %+v", general.Weights, sports.Weights)
	}
	if len(sports.SpoilerTerms) == 0 || !sports.ScoreLeakPattern {
		t.Error("Expected sports profile to carry spoiler terms")
	}
	if sports.Mode != spec.ModeSportsHighlight {
		t.Errorf("Expected mode to be set, got %q", sports.Mode)
	}
	if sports.DurationTolerance != 0.2 {
		t.Errorf("Expected 20%% tolerance, got %v", sports.DurationTolerance)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}

	p, _ := r.Get(spec.ModeSportsHighlight)
	p.SegmentMinutes["highlights"] = 99
	p.SpoilerTerms[0] = "changed"

	again, _ := r.Get(spec.ModeSportsHighlight)
	if again.SegmentMinutes["highlights"] == 99 || again.SpoilerTerms[0] == "changed" {
		t.Error("Expected registry profile to be unaffected by caller mutation")
	}
}

func TestRegistryOverride(t *testing.T) {
	tempDir := t.TempDir()

	content := `
weights:
  highlight: 0.25
  channel_reputation: 0.25
  view_count: 0.25
  freshness: 0.25
segment_minutes:
  highlights: 6
  mixtape: 30
spoiler_terms:
  - "result"
`
	if err := os.WriteFile(filepath.Join(tempDir, "sports_highlight.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(tempDir)
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}

	p, err := r.Get(spec.ModeSportsHighlight)
	if err != nil {
		t.Fatal(err)
	}
	if p.Weights.Highlight != 0.25 {
		t.Errorf("Expected overridden weight 0.25, got %v", p.Weights.Highlight)
	}
	if p.SegmentMinutes["highlights"] != 6 || p.SegmentMinutes["mixtape"] != 30 {
		t.Errorf("Expected merged segment minutes, got %v", p.SegmentMinutes)
	}
	if p.SegmentMinutes["interviews"] != 8 {
		t.Errorf("Expected untouched default segment, got %v", p.SegmentMinutes["interviews"])
	}
	if !reflect.DeepEqual(p.SpoilerTerms, []string{"result"}) {
		t.Errorf("Expected spoiler list replaced, got %v", p.SpoilerTerms)
	}
	if p.Freshness.HalfLifeHours != 72 {
		t.Errorf("Expected default half life kept, got %v", p.Freshness.HalfLifeHours)
	}
}

func TestRegistryRejectsInvalidOverride(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"weights do not sum", "weights:\n  highlight: 0.9\n", "sum to 1"},
		{"negative weight", "weights:\n  highlight: -0.1\n  channel_reputation: 0.6\n  view_count: 0.3\n  freshness: 0.2\n", "between 0 and 1"},
		{"bad floor", "freshness:\n  floor: 1.5\n", "freshness floor"},
		{"bad tolerance", "duration_tolerance: 1.2\n", "duration tolerance"},
		{"bad segment", "segment_minutes:\n  highlights: 0\n", "segment minutes"},
		{"bad yaml", "weights: [\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tempDir, "general_playlist.yml"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			err := NewRegistry(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %v", tt.errText, err)
			}
		})
	}
}

func TestRegistryMissingDirUsesDefaults(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	if err := r.Run(); err != nil {
		t.Fatalf("Expected missing directory to be ignored, got %v", err)
	}
	if _, err := r.Get(spec.ModeGeneralPlaylist); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(spec.Mode("unknown")); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestSegmentTargets(t *testing.T) {
	p := &Profile{
		DefaultSegmentMinutes: 10,
		SegmentMinutes:        map[string]int{"highlights": 10, "analysis": 20},
	}

	tests := []struct {
		mix  []string
		want []int
	}{
		{nil, []int{10}},
		{[]string{"analysis"}, []int{20}},
		{[]string{"analysis", "highlights"}, []int{20, 10}},
		{[]string{"analysis", "mystery"}, []int{20, 10}},
	}

	for _, tt := range tests {
		if got := p.SegmentTargets(tt.mix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SegmentTargets(%v) = %v, want %v", tt.mix, got, tt.want)
		}
	}
}
