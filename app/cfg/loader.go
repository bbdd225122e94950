package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./reel-comb.db" description:"SQLite database file"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the candidate pool cache (optional)"`
	CandidateCacheTTL int    `long:"candidate-cache-ttl" env:"CANDIDATE_CACHE_TTL" default:"900" description:"Candidate pool cache TTL in seconds"`

	// Curation configuration
	ProfilesDir       string   `long:"profiles-dir" env:"PROFILES_DIR" default:"./profiles" description:"Directory containing mode profile overrides"`
	ChannelsDir       string   `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing channel feed configuration files"`
	BuildTimeout      int      `long:"build-timeout" env:"BUILD_TIMEOUT" default:"120" description:"Playlist build timeout in seconds"`
	SourceAttempts    int      `long:"source-attempts" env:"SOURCE_ATTEMPTS" default:"3" description:"Candidate search attempts per build"`
	SourceRate        float64  `long:"source-rate" env:"SOURCE_RATE" default:"5" description:"Channel feed requests per second"`
	SourceBurst       int      `long:"source-burst" env:"SOURCE_BURST" default:"5" description:"Channel feed request burst"`
	DisableServeStale bool     `long:"disable-serve-stale" env:"DISABLE_SERVE_STALE" description:"Fail instead of serving a stored playlist when candidate search fails"`
	GuardrailURL      string   `long:"guardrail-url" env:"GUARDRAIL_URL" description:"Content moderation endpoint (optional)"`
	BlockedTerms      []string `long:"blocked-term" env:"BLOCKED_TERMS" env-delim:"," description:"Terms that reject a request outright"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for playlist refreshes"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Stale playlist sweep interval in seconds"`
	PrewarmWindow     int    `long:"prewarm-window" env:"PREWARM_WINDOW" default:"72" description:"Refresh stale playlists used within this many hours"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Reel Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		RedisAddr:         raw.RedisAddr,
		CandidateCacheTTL: raw.CandidateCacheTTL,
		ProfilesDir:       raw.ProfilesDir,
		ChannelsDir:       raw.ChannelsDir,
		BuildTimeout:      raw.BuildTimeout,
		SourceAttempts:    raw.SourceAttempts,
		SourceRate:        raw.SourceRate,
		SourceBurst:       raw.SourceBurst,
		ServeStaleOnError: !raw.DisableServeStale,
		GuardrailURL:      raw.GuardrailURL,
		BlockedTerms:      raw.BlockedTerms,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		PrewarmWindow:     raw.PrewarmWindow,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	switch {
	case cfg.BuildTimeout <= 0:
		return fmt.Errorf("build timeout must be positive, got %d", cfg.BuildTimeout)
	case cfg.SourceAttempts < 1:
		return fmt.Errorf("source attempts must be at least 1, got %d", cfg.SourceAttempts)
	case cfg.SourceRate <= 0:
		return fmt.Errorf("source rate must be positive, got %v", cfg.SourceRate)
	case cfg.SchedulerInterval <= 0:
		return fmt.Errorf("scheduler interval must be positive, got %d", cfg.SchedulerInterval)
	case cfg.CandidateCacheTTL < 0:
		return fmt.Errorf("candidate cache TTL must not be negative, got %d", cfg.CandidateCacheTTL)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
