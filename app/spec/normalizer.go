package spec

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	MinTopicLength  = 3
	DefaultLanguage = "en"
	DefaultBucket   = Bucket30To60
	dateLayout      = "2006-01-02"
)

var (
	lengthPhrase  = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)
	spoilerPhrase = regexp.MustCompile(`\b(no[ -]spoilers?|spoiler[ -]free|without spoilers)\b`)
)

// Known league names, longest first so multi-word names win over substrings.
var knownLeagues = []string{
	"champions league", "premier league", "formula 1", "la liga", "serie a",
	"bundesliga", "ligue 1", "wnba", "ncaa", "uefa", "fifa", "nfl", "nba",
	"mlb", "nhl", "mls", "ufc", "pga", "atp", "wta", "ipl", "afl", "nrl", "f1",
}

var sportWords = map[string]bool{
	"football": true, "soccer": true, "basketball": true, "baseball": true,
	"hockey": true, "tennis": true, "golf": true, "cricket": true, "rugby": true,
	"boxing": true, "mma": true, "racing": true, "playoffs": true, "playoff": true,
	"touchdown": true, "touchdowns": true, "goals": true, "dunks": true,
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"all": true, "best": true, "of": true, "to": true, "in": true, "on": true,
}

// Normalizer turns raw requests into canonical QuerySpecs. It is pure and safe
// for concurrent use.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates and canonicalizes req. The returned assumptions describe
// every value that was inferred rather than supplied.
func (n *Normalizer) Normalize(req Request) (QuerySpec, []string, error) {
	var assumptions []string
	text := normalizeText(req.Text)

	bucket := DurationBucket(normalizeText(req.DurationBucket))
	if bucket != "" && !bucket.Valid() {
		return QuerySpec{}, nil, invalid("duration_bucket", "%q is not one of 5_15, 15_30, 30_60, 60_180, 180_600, 600_plus", req.DurationBucket)
	}
	if loc := lengthPhrase.FindStringSubmatchIndex(text); loc != nil {
		if bucket == "" {
			minutes := phraseMinutes(text[loc[2]:loc[3]], text[loc[4]:loc[5]])
			bucket = bucketForMinutes(minutes)
			assumptions = append(assumptions, fmt.Sprintf("duration bucket %s inferred from %q", bucket, text[loc[0]:loc[1]]))
		}
		text = collapseSpaces(text[:loc[0]] + " " + text[loc[1]:])
	}
	if bucket == "" {
		bucket = DefaultBucket
		assumptions = append(assumptions, fmt.Sprintf("duration bucket defaulted to %s", bucket))
	}

	sportsMode := req.SportsMode
	if loc := spoilerPhrase.FindStringIndex(text); loc != nil {
		if !sportsMode {
			sportsMode = true
			assumptions = append(assumptions, "spoiler filtering enabled from request text")
		}
		text = collapseSpaces(text[:loc[0]] + " " + text[loc[1]:])
	}

	if len([]rune(text)) < MinTopicLength {
		return QuerySpec{}, nil, invalid("text", "topic must be at least %d characters", MinTopicLength)
	}

	mode := Mode(normalizeText(req.Mode))
	switch {
	case mode == "":
		mode = inferMode(text)
		assumptions = append(assumptions, fmt.Sprintf("mode inferred as %s", mode))
	case !mode.Valid():
		return QuerySpec{}, nil, invalid("mode", "%q is not one of sports_highlight, general_playlist", req.Mode)
	}

	delay := EndingDelay(normalizeText(req.EndingDelay))
	if delay != "" && !delay.Valid() {
		return QuerySpec{}, nil, invalid("ending_delay", "%q is not one of 1h, 2h, 3h, 5h, surprise", req.EndingDelay)
	}
	if delay != "" && bucket != Bucket600Plus {
		assumptions = append(assumptions, fmt.Sprintf("ending delay %s ignored: only applies to %s playlists", delay, Bucket600Plus))
		delay = ""
	}

	dateRange, err := parseDateRange(req.DateFrom, req.DateTo)
	if err != nil {
		return QuerySpec{}, nil, err
	}

	lang, err := normalizeLanguage(req.Language)
	if err != nil {
		return QuerySpec{}, nil, err
	}

	leagues := normalizeSet(req.Leagues)
	if len(leagues) == 0 && mode == ModeSportsHighlight {
		if found := findLeagues(text); len(found) > 0 {
			leagues = found
			assumptions = append(assumptions, fmt.Sprintf("leagues inferred from text: %s", strings.Join(found, ", ")))
		}
	}

	q := QuerySpec{
		Mode:           mode,
		TopicOrSport:   text,
		Leagues:        leagues,
		Teams:          normalizeSet(req.Teams),
		Subtopics:      normalizeSet(req.Subtopics),
		DateRange:      dateRange,
		DurationBucket: bucket,
		ContentMix:     normalizeSet(req.ContentMix),
		Exclusions:     normalizeSet(req.Exclusions),
		SportsMode:     sportsMode,
		EndingDelay:    delay,
		Language:       lang,
	}
	if req.Language == "" {
		assumptions = append(assumptions, fmt.Sprintf("language defaulted to %s", DefaultLanguage))
	}

	return q, assumptions, nil
}

// NormalizeTerm applies the free-text rules to a single term or phrase.
func NormalizeTerm(s string) string {
	return normalizeText(s)
}

func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Lower(language.Und).String(s)
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalizeText(v); v != "" {
			out = append(out, v)
		}
	}
	return dedupeSorted(out)
}

// dedupeSorted sorts by byte order, which does not depend on the process locale.
func dedupeSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '-' || r == '\'' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r > 127)
	})
}

func phraseMinutes(amount, unit string) float64 {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(unit, "h") {
		return v * 60
	}
	return v
}

func bucketForMinutes(minutes float64) DurationBucket {
	switch {
	case minutes <= 15:
		return Bucket5To15
	case minutes <= 30:
		return Bucket15To30
	case minutes <= 60:
		return Bucket30To60
	case minutes <= 180:
		return Bucket60To180
	case minutes <= 600:
		return Bucket180To600
	default:
		return Bucket600Plus
	}
}

func inferMode(text string) Mode {
	if len(findLeagues(text)) > 0 {
		return ModeSportsHighlight
	}
	for _, word := range splitWords(text) {
		if sportWords[word] {
			return ModeSportsHighlight
		}
	}
	return ModeGeneralPlaylist
}

func findLeagues(text string) []string {
	padded := " " + strings.Join(splitWords(text), " ") + " "
	var found []string
	for _, league := range knownLeagues {
		if strings.Contains(padded, " "+league+" ") {
			found = append(found, league)
			padded = strings.ReplaceAll(padded, " "+league+" ", " ")
		}
	}
	return dedupeSorted(found)
}

func parseDateRange(from, to string) (*DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}

	r := &DateRange{}
	if from != "" {
		t, err := time.ParseInLocation(dateLayout, from, time.UTC)
		if err != nil {
			return nil, invalid("date_from", "%q is not a YYYY-MM-DD date", from)
		}
		r.Start = &t
	}
	if to != "" {
		t, err := time.ParseInLocation(dateLayout, to, time.UTC)
		if err != nil {
			return nil, invalid("date_to", "%q is not a YYYY-MM-DD date", to)
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return nil, invalid("date_range", "end %s is before start %s", to, from)
	}
	return r, nil
}

func normalizeLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", invalid("language", "%q is not a BCP 47 language tag", raw)
	}
	return strings.ToLower(tag.String()), nil
}
