package candidate

import (
	"context"
	"time"

	"github.com/lysyi3m/reel-comb/app/spec"
)

// Video is one externally sourced playlist candidate. It is never mutated
// after it leaves a Source.
type Video struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	ChannelID         string    `json:"channel_id"`
	ChannelReputation float64   `json:"channel_reputation"`
	DurationSeconds   int       `json:"duration_seconds"`
	PublishedAt       time.Time `json:"published_at"`
	ViewCount         int64     `json:"view_count"`
	Tags              []string  `json:"tags,omitempty"`
	NSFW              bool      `json:"nsfw,omitempty"`
	URL               string    `json:"url,omitempty"`
}

// Source returns the raw candidate pool for a spec. An empty pool is not an
// error; an error means the source could not be reached.
type Source interface {
	Search(ctx context.Context, q spec.QuerySpec) ([]Video, error)
}

// Channel configuration types

type ChannelConfig struct {
	Name     string          // Derived from filename (without .yml extension)
	URL      string          `yaml:"url"`
	Settings ChannelSettings `yaml:"settings"`
}

type ChannelSettings struct {
	Enabled            bool        `yaml:"enabled"`
	Reputation         float64     `yaml:"reputation"` // 0..1
	Modes              []spec.Mode `yaml:"modes"`      // empty means every mode
	MaxItems           int         `yaml:"max_items"`
	Timeout            int         `yaml:"timeout"`             // seconds
	ExtractDescription bool        `yaml:"extract_description"` // fill empty descriptions from the watch page
}

func (c *ChannelConfig) ServesMode(mode spec.Mode) bool {
	if len(c.Settings.Modes) == 0 {
		return true
	}
	for _, m := range c.Settings.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

type bypassKey struct{}

// WithCacheBypass marks ctx so caching sources fetch upstream and overwrite
// what they hold.
func WithCacheBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}
