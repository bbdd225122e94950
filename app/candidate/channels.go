package candidate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/reel-comb/app/spec"
)

// ChannelRegistry holds the channel feeds loaded from a directory of YAML files.
type ChannelRegistry struct {
	channelsDir string
	cache       map[string]*ChannelConfig
	mu          sync.RWMutex
}

func NewChannelRegistry(channelsDir string) *ChannelRegistry {
	return &ChannelRegistry{
		channelsDir: channelsDir,
		cache:       make(map[string]*ChannelConfig),
	}
}

func (r *ChannelRegistry) Run() error {
	if _, err := os.Stat(r.channelsDir); os.IsNotExist(err) {
		slog.Warn("Channels directory not found", "dir", r.channelsDir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.channelsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		channelName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := r.LoadConfig(channelName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Channel loaded", "channel", channelName, "enabled", config.Settings.Enabled, "reputation", config.Settings.Reputation)
	}

	return nil
}

func (r *ChannelRegistry) LoadConfig(channelName string) (*ChannelConfig, error) {
	configFile := filepath.Join(r.channelsDir, channelName+".yml")
	channelConfig, err := r.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	channelConfig.Name = channelName

	if err := r.validateConfig(channelConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[channelConfig.Name] = channelConfig

	return channelConfig, nil
}

// Add registers a channel directly, bypassing the file system.
func (r *ChannelRegistry) Add(channelConfig *ChannelConfig) error {
	applyDefaults(channelConfig)
	if err := r.validateConfig(channelConfig); err != nil {
		return fmt.Errorf("invalid channel %s: %w", channelConfig.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[channelConfig.Name] = channelConfig
	return nil
}

// ForMode returns the enabled channels serving mode, ordered by name.
func (r *ChannelRegistry) ForMode(mode spec.Mode) []*ChannelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]*ChannelConfig, 0, len(r.cache))
	for _, c := range r.cache {
		if c.Settings.Enabled && c.ServesMode(mode) {
			channels = append(channels, c)
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

// All returns every loaded channel, enabled or not, ordered by name.
func (r *ChannelRegistry) All() []*ChannelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]*ChannelConfig, 0, len(r.cache))
	for _, c := range r.cache {
		channels = append(channels, c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

func (r *ChannelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *ChannelRegistry) parseConfig(configFile string) (*ChannelConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var channelConfig ChannelConfig
	if err := yaml.Unmarshal(data, &channelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&channelConfig)
	return &channelConfig, nil
}

func applyDefaults(c *ChannelConfig) {
	if c.Settings.MaxItems == 0 {
		c.Settings.MaxItems = 50
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = 30
	}
	if c.Settings.Reputation == 0 {
		c.Settings.Reputation = 0.5
	}
}

func (r *ChannelRegistry) validateConfig(channelConfig *ChannelConfig) error {
	if channelConfig.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if channelConfig.URL == "" {
		return fmt.Errorf("channel URL is required")
	}

	nonNegativeFields := map[string]int{
		"max items": channelConfig.Settings.MaxItems,
		"timeout":   channelConfig.Settings.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if channelConfig.Settings.Reputation < 0 || channelConfig.Settings.Reputation > 1 {
		return fmt.Errorf("reputation must be between 0 and 1")
	}

	for i, mode := range channelConfig.Settings.Modes {
		if !mode.Valid() {
			return fmt.Errorf("invalid mode at index %d: %s", i, mode)
		}
	}

	return nil
}
