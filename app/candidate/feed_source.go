package candidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/reel-comb/app/spec"
)

const maxConcurrentFetches = 4

// FeedSource searches the configured channel feeds. Every outbound request
// waits on one shared rate limiter.
type FeedSource struct {
	channels   *ChannelRegistry
	httpClient *http.Client
	parser     *FeedParser
	extractor  *DescriptionExtractor
	limiter    *rate.Limiter
	userAgent  string
}

func NewFeedSource(channels *ChannelRegistry, httpClient *http.Client, limiter *rate.Limiter, userAgent string) *FeedSource {
	return &FeedSource{
		channels:   channels,
		httpClient: httpClient,
		parser:     NewFeedParser(),
		extractor:  NewDescriptionExtractor(),
		limiter:    limiter,
		userAgent:  userAgent,
	}
}

func (s *FeedSource) Search(ctx context.Context, q spec.QuerySpec) ([]Video, error) {
	channels := s.channels.ForMode(q.Mode)
	if len(channels) == 0 {
		slog.Warn("No channels configured for mode", "mode", q.Mode)
		return nil, nil
	}

	results := make([][]Video, len(channels))
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, channel := range channels {
		g.Go(func() error {
			videos, err := s.searchChannel(gctx, channel, q)
			if err != nil {
				slog.Warn("Channel fetch failed", "channel", channel.Name, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", channel.Name, err))
				mu.Unlock()
				return nil
			}
			results[i] = videos
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(failures) == len(channels) {
		return nil, fmt.Errorf("all %d channels failed: %w", len(channels), errors.Join(failures...))
	}

	seen := make(map[string]bool)
	var pool []Video
	for _, videos := range results {
		for _, v := range videos {
			if seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			pool = append(pool, v)
		}
	}

	slog.Debug("Feed search completed", "mode", q.Mode, "channels", len(channels), "failed", len(failures), "candidates", len(pool))

	return pool, nil
}

func (s *FeedSource) searchChannel(ctx context.Context, channel *ChannelConfig, q spec.QuerySpec) ([]Video, error) {
	timeout := time.Duration(channel.Settings.Timeout) * time.Second

	data, err := s.fetch(ctx, channel.URL, timeout)
	if err != nil {
		return nil, err
	}

	videos, err := s.parser.Run(data, channel)
	if err != nil {
		return nil, err
	}

	terms := q.Terms()
	matched := videos[:0]
	for _, v := range videos {
		if q.DateRange != nil && !publishedWithin(v.PublishedAt, q.DateRange.Start, q.DateRange.End) {
			continue
		}
		if !matchesTerms(v, terms) {
			continue
		}
		matched = append(matched, v)
	}

	if channel.Settings.ExtractDescription {
		for i := range matched {
			if matched[i].Description != "" || matched[i].URL == "" {
				continue
			}
			page, err := s.fetch(ctx, matched[i].URL, timeout)
			if err != nil {
				slog.Debug("Watch page fetch failed", "url", matched[i].URL, "error", err)
				continue
			}
			if description, err := s.extractor.Run(page); err == nil {
				matched[i].Description = description
			}
		}
	}

	return matched, nil
}

func (s *FeedSource) fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func matchesTerms(v Video, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(v.Title + " " + v.Description + " " + strings.Join(v.Tags, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
