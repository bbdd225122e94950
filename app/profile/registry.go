package profile

import (
	"embed"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/reel-comb/app/spec"
)

//go:embed defaults/*.yml
var defaultFiles embed.FS

var modes = []spec.Mode{spec.ModeSportsHighlight, spec.ModeGeneralPlaylist}

// Registry holds one Profile per mode: the built-in defaults, overridden
// field by field by <mode>.yml files in the profiles directory.
type Registry struct {
	profilesDir string
	profiles    map[spec.Mode]*Profile
	mu          sync.RWMutex
}

func NewRegistry(profilesDir string) *Registry {
	return &Registry{
		profilesDir: profilesDir,
		profiles:    make(map[spec.Mode]*Profile),
	}
}

// Defaults returns a registry holding only the built-in profiles.
func Defaults() (*Registry, error) {
	r := NewRegistry("")
	if err := r.Run(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Run() error {
	loaded := make(map[spec.Mode]*Profile, len(modes))

	for _, mode := range modes {
		p, err := r.loadProfile(mode)
		if err != nil {
			return err
		}
		loaded[mode] = p

		slog.Debug("Profile loaded", "mode", mode, "weights", p.Weights, "segment_targets", len(p.SegmentMinutes))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = loaded

	return nil
}

// Get returns a copy of the profile for mode, so callers may not alter the
// registry's state.
func (r *Registry) Get(mode spec.Mode) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[mode]
	if !ok {
		return nil, fmt.Errorf("profile for mode '%s' not found", mode)
	}
	return p.clone(), nil
}

func (r *Registry) loadProfile(mode spec.Mode) (*Profile, error) {
	data, err := defaultFiles.ReadFile("defaults/" + string(mode) + ".yml")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in profile %s: %w", mode, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse built-in profile %s: %w", mode, err)
	}

	if r.profilesDir != "" {
		overrideFile := filepath.Join(r.profilesDir, string(mode)+".yml")
		data, err := os.ReadFile(overrideFile)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read file %s: %w", overrideFile, err)
		default:
			if err := yaml.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("failed to parse YAML %s: %w", overrideFile, err)
			}
			slog.Info("Profile override applied", "mode", mode, "file", overrideFile)
		}
	}

	p.Mode = mode
	if p.InterspersalMinutes == 0 {
		p.InterspersalMinutes = 90
	}
	if p.DurationTolerance == 0 {
		p.DurationTolerance = float64(spec.DurationTolerancePercent) / 100
	}

	if err := validateProfile(&p); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", mode, err)
	}
	return &p, nil
}

func validateProfile(p *Profile) error {
	weights := map[string]float64{
		"highlight weight":          p.Weights.Highlight,
		"channel reputation weight": p.Weights.ChannelReputation,
		"view count weight":         p.Weights.ViewCount,
		"freshness weight":          p.Weights.Freshness,
	}
	for fieldName, fieldValue := range weights {
		if fieldValue < 0 || fieldValue > 1 {
			return fmt.Errorf("%s must be between 0 and 1", fieldName)
		}
	}
	if math.Abs(p.Weights.Sum()-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.4f", p.Weights.Sum())
	}

	if p.Freshness.Floor < 0 || p.Freshness.Floor > 1 {
		return fmt.Errorf("freshness floor must be between 0 and 1")
	}
	if p.Freshness.HalfLifeHours <= 0 {
		return fmt.Errorf("freshness half life must be positive")
	}
	if p.DurationTolerance <= 0 || p.DurationTolerance >= 1 {
		return fmt.Errorf("duration tolerance must be between 0 and 1")
	}

	positiveFields := map[string]int{
		"default segment minutes": p.DefaultSegmentMinutes,
		"interspersal minutes":    p.InterspersalMinutes,
	}
	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}
	for mix, minutes := range p.SegmentMinutes {
		if minutes <= 0 {
			return fmt.Errorf("segment minutes for %q must be positive", mix)
		}
	}

	return nil
}
