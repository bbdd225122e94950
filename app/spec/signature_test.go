package spec

import (
	"testing"
)

func TestSignature_EquivalentRequestsCollide(t *testing.T) {
	n := NewNormalizer()

	a, _, err := n.Normalize(Request{
		Text:           "NFL  Week 12 Highlights",
		Mode:           "sports_highlight",
		Teams:          []string{"Packers", "Bears"},
		Exclusions:     []string{"fantasy", "Betting"},
		ContentMix:     []string{"highlights", "interviews"},
		DurationBucket: "60_180",
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := n.Normalize(Request{
		Text:           "nfl week 12 highlights",
		Mode:           "SPORTS_HIGHLIGHT",
		Teams:          []string{"bears", "packers", "Bears"},
		Exclusions:     []string{"betting", "FANTASY"},
		ContentMix:     []string{"Interviews", "Highlights"},
		DurationBucket: "60_180",
	})
	if err != nil {
		t.Fatal(err)
	}

	sigA, err := a.Signature()
	if err != nil {
		t.Fatal(err)
	}
	sigB, err := b.Signature()
	if err != nil {
		t.Fatal(err)
	}

	if sigA != sigB {
		t.Errorf("Expected equivalent specs to share a signature, got %s != %s", sigA, sigB)
	}
	if len(sigA) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(sigA))
	}

	canonA, _ := a.Canonical()
	canonB, _ := b.Canonical()
	if string(canonA) != string(canonB) {
		t.Errorf("Expected byte-identical canonical forms:\n%s\n%s", canonA, canonB)
	}
}

func TestSignature_FieldDifferencesDiverge(t *testing.T) {
	base := QuerySpec{
		Mode:           ModeSportsHighlight,
		TopicOrSport:   "nba finals",
		Leagues:        []string{"nba"},
		DurationBucket: Bucket30To60,
		Language:       "en",
	}
	baseSig, _ := base.Signature()

	variants := map[string]func(q *QuerySpec){
		"mode":        func(q *QuerySpec) { q.Mode = ModeGeneralPlaylist },
		"topic":       func(q *QuerySpec) { q.TopicOrSport = "nba draft" },
		"teams":       func(q *QuerySpec) { q.Teams = []string{"celtics"} },
		"bucket":      func(q *QuerySpec) { q.DurationBucket = Bucket60To180 },
		"sports mode": func(q *QuerySpec) { q.SportsMode = true },
		"language":    func(q *QuerySpec) { q.Language = "es" },
		"exclusions":  func(q *QuerySpec) { q.Exclusions = []string{"dunks"} },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			q := base
			mutate(&q)
			sig, err := q.Signature()
			if err != nil {
				t.Fatal(err)
			}
			if sig == baseSig {
				t.Errorf("Expected %s change to alter the signature", name)
			}
		})
	}
}

func TestSignature_UnsortedHandBuiltSpec(t *testing.T) {
	a := QuerySpec{Mode: ModeGeneralPlaylist, TopicOrSport: "jazz", Subtopics: []string{"bebop", "cool"}, DurationBucket: Bucket5To15}
	b := QuerySpec{Mode: ModeGeneralPlaylist, TopicOrSport: "jazz", Subtopics: []string{"cool", "bebop", "cool"}, DurationBucket: Bucket5To15}

	sigA, _ := a.Signature()
	sigB, _ := b.Signature()
	if sigA != sigB {
		t.Error("Expected set order and duplicates to be irrelevant")
	}
}

func TestParseCanonical_RoundTripsSignature(t *testing.T) {
	n := NewNormalizer()
	q, _, err := n.Normalize(Request{Text: "world cup 2022", DateFrom: "2022-11-20", DateTo: "2022-12-18", DurationBucket: "600_plus", EndingDelay: "surprise"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := q.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := ParseCanonical(data)
	if err != nil {
		t.Fatal(err)
	}

	want, _ := q.Signature()
	got, _ := restored.Signature()
	if got != want {
		t.Errorf("Expected restored spec to keep signature %s, got %s", want, got)
	}
	if restored.EndingDelay != EndingDelaySurprise {
		t.Errorf("Expected surprise ending delay, got %q", restored.EndingDelay)
	}
}
