package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalVersion is bumped whenever the canonical layout below changes.
const canonicalVersion = 1

// canonicalSpec fixes field order and representation for hashing. encoding/json
// emits struct fields in declaration order, so the layout is stable.
type canonicalSpec struct {
	Version        int      `json:"v"`
	Mode           string   `json:"mode"`
	TopicOrSport   string   `json:"topic"`
	Leagues        []string `json:"leagues"`
	Teams          []string `json:"teams"`
	Subtopics      []string `json:"subtopics"`
	DateFrom       string   `json:"date_from"`
	DateTo         string   `json:"date_to"`
	DurationBucket string   `json:"duration_bucket"`
	ContentMix     []string `json:"content_mix"`
	Exclusions     []string `json:"exclusions"`
	SportsMode     bool     `json:"sports_mode"`
	EndingDelay    string   `json:"ending_delay"`
	Language       string   `json:"language"`
}

// Canonical returns the byte-stable serialization of q. Set fields are
// re-sorted here as well so hand-built specs hash the same as normalized ones.
func (q QuerySpec) Canonical() ([]byte, error) {
	c := canonicalSpec{
		Version:        canonicalVersion,
		Mode:           string(q.Mode),
		TopicOrSport:   q.TopicOrSport,
		Leagues:        nonNil(dedupeSorted(q.Leagues)),
		Teams:          nonNil(dedupeSorted(q.Teams)),
		Subtopics:      nonNil(dedupeSorted(q.Subtopics)),
		DurationBucket: string(q.DurationBucket),
		ContentMix:     nonNil(dedupeSorted(q.ContentMix)),
		Exclusions:     nonNil(dedupeSorted(q.Exclusions)),
		SportsMode:     q.SportsMode,
		EndingDelay:    string(q.EndingDelay),
		Language:       q.Language,
	}
	if q.DateRange != nil {
		if q.DateRange.Start != nil {
			c.DateFrom = q.DateRange.Start.UTC().Format(dateLayout)
		}
		if q.DateRange.End != nil {
			c.DateTo = q.DateRange.End.UTC().Format(dateLayout)
		}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query spec: %w", err)
	}
	return data, nil
}

// Signature returns the 64-character hex SHA-256 of the canonical serialization.
func (q QuerySpec) Signature() (string, error) {
	data, err := q.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ParseCanonical restores a spec from its canonical serialization, as stored
// alongside query records.
func ParseCanonical(data []byte) (QuerySpec, error) {
	var c canonicalSpec
	if err := json.Unmarshal(data, &c); err != nil {
		return QuerySpec{}, fmt.Errorf("failed to parse canonical spec: %w", err)
	}

	q := QuerySpec{
		Mode:           Mode(c.Mode),
		TopicOrSport:   c.TopicOrSport,
		Leagues:        c.Leagues,
		Teams:          c.Teams,
		Subtopics:      c.Subtopics,
		DurationBucket: DurationBucket(c.DurationBucket),
		ContentMix:     c.ContentMix,
		Exclusions:     c.Exclusions,
		SportsMode:     c.SportsMode,
		EndingDelay:    EndingDelay(c.EndingDelay),
		Language:       c.Language,
	}
	dateRange, err := parseDateRange(c.DateFrom, c.DateTo)
	if err != nil {
		return QuerySpec{}, err
	}
	q.DateRange = dateRange
	return q, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
