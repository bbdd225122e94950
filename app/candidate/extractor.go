package candidate

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
)

const maxDescriptionLength = 2000

// DescriptionExtractor pulls readable text out of a video's watch page, for
// feeds that ship entries without a description.
type DescriptionExtractor struct{}

func NewDescriptionExtractor() *DescriptionExtractor {
	return &DescriptionExtractor{}
}

func (e *DescriptionExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract description: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		text = strings.TrimSpace(article.Excerpt)
	}
	if text == "" {
		return "", fmt.Errorf("no description extracted from HTML data")
	}

	if runes := []rune(text); len(runes) > maxDescriptionLength {
		text = string(runes[:maxDescriptionLength])
	}

	slog.Debug("Description extracted", "title", article.Title, "length", len(text))

	return text, nil
}
