// Package guardrail screens free-text requests against content policy before
// any curation work is done.
package guardrail

import (
	"context"
	"log/slog"
	"strings"
)

type Verdict struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// TermList blocks text containing any configured term, case-insensitively.
type TermList struct {
	terms []string
}

func NewTermList(terms []string) *TermList {
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			normalized = append(normalized, term)
		}
	}
	return &TermList{terms: normalized}
}

func (l *TermList) Classify(ctx context.Context, text string) (Verdict, error) {
	lower := strings.ToLower(text)

	var verdict Verdict
	for _, term := range l.terms {
		if strings.Contains(lower, term) {
			verdict.Blocked = true
			verdict.Reasons = append(verdict.Reasons, "blocked term: "+term)
		}
	}
	return verdict, nil
}

// Chain runs classifiers in order and returns the first blocking verdict.
// A classifier that errors is logged and skipped, so policy checks fail open.
type Chain struct {
	classifiers []Classifier
}

func NewChain(classifiers ...Classifier) *Chain {
	return &Chain{classifiers: classifiers}
}

func (c *Chain) Classify(ctx context.Context, text string) (Verdict, error) {
	for _, classifier := range c.classifiers {
		verdict, err := classifier.Classify(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return Verdict{}, ctx.Err()
			}
			slog.Warn("Content classifier failed, skipping", "error", err)
			continue
		}
		if verdict.Blocked {
			return verdict, nil
		}
	}
	return Verdict{}, nil
}
