package candidate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/reel-comb/app/spec"
)

const watchPage = `<html><head><title>Recap</title></head><body><article>
<h1>Bears at Packers</h1>
<p>A full recap of the divisional matchup with commentary on every scoring drive and the key defensive stops that decided the contest late in the fourth quarter.</p>
<p>The game featured several momentum swings, including a blocked kick and a goal line stand, making it one of the more memorable meetings between these two rivals.</p>
<p>Coaches on both sidelines praised the physical play afterwards, and the rematch later in the season now carries playoff seeding implications for each team in a crowded conference race.</p>
</article></body></html>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/nfl.xml", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent to be sent, got %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/DTDs/PodCast-1.0.dtd"><channel><title>NFL</title>
<item><title>Packers vs Bears Highlights</title><guid>a</guid><link>http://%[1]s/watch/a</link><description>Week 12</description><itunes:duration>10:00</itunes:duration></item>
<item><title>Cooking with chefs</title><guid>b</guid><description>Pasta</description></item>
<item><title>Bears defense breakdown</title><guid>c</guid><link>http://%[1]s/watch/c</link><itunes:duration>9:00</itunes:duration></item>
</channel></rss>`, r.Host)
	})
	mux.HandleFunc("/mirror.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Mirror</title>
<item><title>Packers vs Bears Highlights (mirror)</title><guid>a</guid></item>
</channel></rss>`)
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/watch/c", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, watchPage)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSource(t *testing.T, channels ...*ChannelConfig) *FeedSource {
	t.Helper()
	registry := NewChannelRegistry(t.TempDir())
	for _, c := range channels {
		if err := registry.Add(c); err != nil {
			t.Fatal(err)
		}
	}
	return NewFeedSource(registry, &http.Client{Timeout: 5 * time.Second}, rate.NewLimiter(rate.Inf, 1), "test-agent")
}

func TestFeedSourceSearch(t *testing.T) {
	server := newFeedServer(t)

	source := newTestSource(t,
		&ChannelConfig{Name: "a-nfl", URL: server.URL + "/nfl.xml", Settings: ChannelSettings{Enabled: true, Reputation: 0.8, ExtractDescription: true}},
		&ChannelConfig{Name: "b-mirror", URL: server.URL + "/mirror.xml", Settings: ChannelSettings{Enabled: true}},
		&ChannelConfig{Name: "c-broken", URL: server.URL + "/broken.xml", Settings: ChannelSettings{Enabled: true}},
		&ChannelConfig{Name: "d-general", URL: server.URL + "/nfl.xml", Settings: ChannelSettings{Enabled: true, Modes: []spec.Mode{spec.ModeGeneralPlaylist}}},
	)

	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl week 12", Teams: []string{"bears", "packers"}}
	videos, err := source.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Expected partial channel failure to be tolerated, got %v", err)
	}

	if len(videos) != 2 {
		t.Fatalf("Expected 2 matching, de-duplicated videos, got %d: %+v", len(videos), videos)
	}
	if videos[0].ID != "a" || videos[0].ChannelReputation != 0.8 {
		t.Errorf("Expected first channel's copy of video a, got %+v", videos[0])
	}
	if videos[1].ID != "c" {
		t.Fatalf("Expected video c, got %s", videos[1].ID)
	}
	if videos[1].Description == "" {
		t.Error("Expected empty description to be filled from the watch page")
	}
	if videos[0].Description != "Week 12" {
		t.Errorf("Expected existing description kept, got %q", videos[0].Description)
	}
}

func TestFeedSourceAllChannelsFail(t *testing.T) {
	server := newFeedServer(t)

	source := newTestSource(t,
		&ChannelConfig{Name: "broken", URL: server.URL + "/broken.xml", Settings: ChannelSettings{Enabled: true}},
	)

	_, err := source.Search(context.Background(), spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nfl"})
	if err == nil {
		t.Fatal("Expected error when every channel fails")
	}
}

func TestFeedSourceNoChannels(t *testing.T) {
	source := newTestSource(t)

	videos, err := source.Search(context.Background(), spec.QuerySpec{Mode: spec.ModeGeneralPlaylist, TopicOrSport: "jazz"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(videos) != 0 {
		t.Errorf("Expected empty pool, got %d", len(videos))
	}
}

func TestFeedSourceDateRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title>
<item><title>NBA finals game 1</title><guid>in</guid><pubDate>Thu, 06 Jun 2024 23:00:00 GMT</pubDate></item>
<item><title>NBA finals preview</title><guid>old</guid><pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate></item>
</channel></rss>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	source := newTestSource(t, &ChannelConfig{Name: "nba", URL: server.URL + "/feed.xml", Settings: ChannelSettings{Enabled: true}})

	start := time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	q := spec.QuerySpec{Mode: spec.ModeSportsHighlight, TopicOrSport: "nba finals", DateRange: &spec.DateRange{Start: &start, End: &end}}

	videos, err := source.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 || videos[0].ID != "in" {
		t.Errorf("Expected only the in-range video, got %+v", videos)
	}
}
