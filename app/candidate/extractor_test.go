package candidate

import (
	"strings"
	"testing"
)

func TestDescriptionExtractorValidHTML(t *testing.T) {
	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head><title>Week 12 Recap</title></head>
	<body>
		<nav>Home | Videos | Shop</nav>
		<main>
			<article>
				<h1>Week 12 Recap</h1>
				<p>The Packers held on for a narrow road result after a late defensive stand. This recap walks through each scoring drive and the adjustments made at halftime.</p>
				<p>Both offenses leaned on the run game early before opening things up in the second half. Several long completions set up short touchdown runs on either side.</p>
				<p>Special teams also played a part, with a blocked field goal swinging momentum in the final quarter of a tightly contested divisional game.</p>
				<p>Looking ahead, both teams face difficult schedules down the stretch, and the tiebreaker implications of this result will be discussed at length over the coming weeks by analysts and fans alike.</p>
			</article>
		</main>
		<footer><p>Copyright 2024</p></footer>
	</body>
	</html>`

	result, err := NewDescriptionExtractor().Run([]byte(htmlContent))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result, "walks through each scoring drive") {
		t.Errorf("Expected article text, got %q", result)
	}
	if strings.Contains(result, "\n") {
		t.Error("Expected whitespace to be collapsed")
	}
}

func TestDescriptionExtractorEmptyInput(t *testing.T) {
	if _, err := NewDescriptionExtractor().Run(nil); err == nil {
		t.Error("Expected error for empty input")
	}
}
