package candidate

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// FeedParser maps channel feed entries (RSS with iTunes/Media RSS extensions,
// or YouTube-style Atom) onto Videos.
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *FeedParser) Run(data []byte, channel *ChannelConfig) ([]Video, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	videos := make([]Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if channel.Settings.MaxItems > 0 && len(videos) >= channel.Settings.MaxItems {
			break
		}
		videos = append(videos, p.normalizeItem(item, channel))
	}

	return videos, nil
}

func (p *FeedParser) normalizeItem(item *gofeed.Item, channel *ChannelConfig) Video {
	group := firstExtension(item.Extensions, "media", "group")

	video := Video{
		ID:                cmp.Or(extensionValue(item.Extensions, "yt", "videoId"), item.GUID, item.Link),
		Title:             strings.TrimSpace(item.Title),
		Description:       strings.TrimSpace(cmp.Or(item.Description, childValue(group, "description"))),
		ChannelID:         cmp.Or(extensionValue(item.Extensions, "yt", "channelId"), channel.Name),
		ChannelReputation: channel.Settings.Reputation,
		URL:               item.Link,
	}

	switch {
	case item.PublishedParsed != nil:
		video.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		video.PublishedAt = item.UpdatedParsed.UTC()
	}

	if item.ITunesExt != nil {
		video.DurationSeconds = parseDuration(item.ITunesExt.Duration)
		video.NSFW = isExplicit(item.ITunesExt.Explicit)
	}
	if video.DurationSeconds == 0 {
		content := firstExtension(item.Extensions, "media", "content")
		if content == nil {
			content = firstChild(group, "content")
		}
		if content != nil {
			video.DurationSeconds = parseDuration(content.Attrs["duration"])
		}
	}

	community := firstExtension(item.Extensions, "media", "community")
	if community == nil {
		community = firstChild(group, "community")
	}
	if stats := firstChild(community, "statistics"); stats != nil {
		if views, err := strconv.ParseInt(stats.Attrs["views"], 10, 64); err == nil {
			video.ViewCount = views
		}
	}

	rating := firstExtension(item.Extensions, "media", "rating")
	if rating == nil {
		rating = firstChild(group, "rating")
	}
	if rating != nil && strings.EqualFold(strings.TrimSpace(rating.Value), "adult") {
		video.NSFW = true
	}

	video.Tags = p.extractTags(item, group)

	return video
}

func (p *FeedParser) extractTags(item *gofeed.Item, group *ext.Extension) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, c := range item.Categories {
		add(c)
	}
	if item.ITunesExt != nil {
		for _, k := range strings.Split(item.ITunesExt.Keywords, ",") {
			add(k)
		}
	}
	if keywords := childValue(group, "keywords"); keywords != "" {
		for _, k := range strings.Split(keywords, ",") {
			add(k)
		}
	}

	return tags
}

// parseDuration accepts plain seconds, MM:SS and HH:MM:SS.
func parseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	total := 0
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
				return int(secs)
			}
			return 0
		}
		total = total*60 + n
	}
	return total
}

func isExplicit(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "explicit":
		return true
	}
	return false
}

func firstExtension(extensions ext.Extensions, prefix, name string) *ext.Extension {
	if extensions == nil {
		return nil
	}
	values := extensions[prefix][name]
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

func extensionValue(extensions ext.Extensions, prefix, name string) string {
	if e := firstExtension(extensions, prefix, name); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}

func firstChild(e *ext.Extension, name string) *ext.Extension {
	if e == nil || len(e.Children[name]) == 0 {
		return nil
	}
	return &e.Children[name][0]
}

func childValue(e *ext.Extension, name string) string {
	if c := firstChild(e, name); c != nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// publishedWithin reports whether t falls inside an inclusive date range,
// allowing one extra day after the end for next-day uploads.
func publishedWithin(t time.Time, start, end *time.Time) bool {
	if t.IsZero() {
		return true
	}
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && !t.Before(end.AddDate(0, 0, 2)) {
		return false
	}
	return true
}
