package cfg

type Cfg struct {
	// Storage configuration
	DBPath            string
	RedisAddr         string
	CandidateCacheTTL int

	// Curation configuration
	ProfilesDir       string
	ChannelsDir       string
	BuildTimeout      int
	SourceAttempts    int
	SourceRate        float64
	SourceBurst       int
	ServeStaleOnError bool
	GuardrailURL      string
	BlockedTerms      []string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	PrewarmWindow     int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
