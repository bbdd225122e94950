package staleness

import (
	"testing"
	"time"

	"github.com/lysyi3m/reel-comb/app/spec"
)

func TestPolicy_StaleAfterBoundaries(t *testing.T) {
	p := NewPolicy(1)
	anchor := time.Date(2024, 11, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		age     time.Duration
		wantTTL time.Duration // zero means never expires
	}{
		{"same day", 3 * time.Hour, 6 * time.Hour},
		{"just under 2 days", 48*time.Hour - time.Second, 6 * time.Hour},
		{"exactly 2 days", 48 * time.Hour, 72 * time.Hour},
		{"just over 2 days", 48*time.Hour + time.Second, 72 * time.Hour},
		{"just under 30 days", 30*24*time.Hour - time.Second, 72 * time.Hour},
		{"exactly 30 days", 30 * 24 * time.Hour, 0},
		{"a year", 365 * 24 * time.Hour, 0},
		{"future anchor", -24 * time.Hour, 6 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			createdAt := anchor.Add(tt.age)
			got := p.StaleAfter(anchor, createdAt)

			if tt.wantTTL == 0 {
				if got != nil {
					t.Errorf("Expected no expiry, got %v", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Expected expiry after %v, got none", tt.wantTTL)
			}
			if want := createdAt.Add(tt.wantTTL); !got.Equal(want) {
				t.Errorf("Expected stale_after %v, got %v", want, *got)
			}
		})
	}
}

func TestPolicy_IsStale(t *testing.T) {
	p := NewPolicy(3)
	now := time.Date(2024, 11, 24, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{"never expires", Record{SchemaVersion: 3}, false},
		{"expires later", Record{StaleAfter: &future, SchemaVersion: 3}, false},
		{"expired", Record{StaleAfter: &past, SchemaVersion: 3}, true},
		{"expires exactly now", Record{StaleAfter: &now, SchemaVersion: 3}, true},
		{"old schema, never expires", Record{SchemaVersion: 2}, true},
		{"old schema, expires later", Record{StaleAfter: &future, SchemaVersion: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsStale(tt.record, now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnchor(t *testing.T) {
	now := time.Date(2024, 11, 24, 18, 30, 0, 0, time.UTC)
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	if got := Anchor(spec.QuerySpec{}, now); !got.Equal(time.Date(2024, 11, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected evergreen anchor at today's midnight, got %v", got)
	}
	if got := Anchor(spec.QuerySpec{DateRange: &spec.DateRange{Start: &start, End: &end}}, now); !got.Equal(end) {
		t.Errorf("Expected range end anchor, got %v", got)
	}
	if got := Anchor(spec.QuerySpec{DateRange: &spec.DateRange{Start: &start}}, now); !got.Equal(time.Date(2024, 11, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected open-ended range to anchor on today, got %v", got)
	}
}
