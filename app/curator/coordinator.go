// Package curator ties request normalization, the playlist store and the
// build pipeline together behind a per-signature single-flight lock.
package curator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/database"
	"github.com/lysyi3m/reel-comb/app/guardrail"
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/scoring"
	"github.com/lysyi3m/reel-comb/app/sequencer"
	"github.com/lysyi3m/reel-comb/app/spec"
	"github.com/lysyi3m/reel-comb/app/staleness"
)

const fallbackLookupTimeout = 5 * time.Second

type ProfileProvider interface {
	Get(mode spec.Mode) (*profile.Profile, error)
}

type Settings struct {
	BuildTimeout      time.Duration
	SourceAttempts    int
	SourceBackoff     time.Duration // doubled after every failed attempt
	ServeStaleOnError bool
}

type Dependencies struct {
	Profiles  ProfileProvider
	Source    candidate.Source
	Store     database.PlaylistRepository
	Policy    staleness.Policy
	Guardrail guardrail.Classifier // optional
	Scorer    *scoring.Scorer      // optional
	Sequencer *sequencer.Sequencer // optional
	Locks     *LockTable           // optional
}

type Coordinator struct {
	normalizer *spec.Normalizer
	profiles   ProfileProvider
	source     candidate.Source
	store      database.PlaylistRepository
	policy     staleness.Policy
	guardrail  guardrail.Classifier
	scorer     *scoring.Scorer
	sequencer  *sequencer.Sequencer
	locks      *LockTable
	settings   Settings
	now        func() time.Time
}

func NewCoordinator(deps Dependencies, settings Settings) *Coordinator {
	if settings.BuildTimeout <= 0 {
		settings.BuildTimeout = 2 * time.Minute
	}
	if settings.SourceAttempts < 1 {
		settings.SourceAttempts = 1
	}

	c := &Coordinator{
		normalizer: spec.NewNormalizer(),
		profiles:   deps.Profiles,
		source:     deps.Source,
		store:      deps.Store,
		policy:     deps.Policy,
		guardrail:  deps.Guardrail,
		scorer:     deps.Scorer,
		sequencer:  deps.Sequencer,
		locks:      deps.Locks,
		settings:   settings,
		now:        func() time.Time { return time.Now().UTC() },
	}

	if c.scorer == nil {
		c.scorer = scoring.NewScorer(nil)
	}
	if c.sequencer == nil {
		c.sequencer = sequencer.New(nil)
	}
	if c.locks == nil {
		c.locks = NewLockTable(settings.BuildTimeout)
	}

	return c
}

// job carries everything one build needs.
type job struct {
	spec        spec.QuerySpec
	signature   string
	profile     *profile.Profile
	assumptions []string
	lastUsedAt  time.Time
	force       bool
}

// GetOrBuild returns the stored playlist for the request when it is still
// fresh, and builds a new one otherwise. ForceRefresh skips the freshness
// check but still shares an in-flight build for the same signature.
func (c *Coordinator) GetOrBuild(ctx context.Context, req spec.Request, opts Options) (*Result, error) {
	if err := c.screen(ctx, req.Text); err != nil {
		return nil, err
	}

	q, assumptions, err := c.normalizer.Normalize(req)
	if err != nil {
		recordOutcome("invalid")
		return nil, err
	}

	res, err := c.resolve(ctx, q, assumptions, opts.ForceRefresh, true)
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		recordOutcome("unavailable")
	case err != nil:
		recordOutcome("error")
	default:
		recordOutcome(string(res.CacheStatus))
	}
	return res, err
}

// Refresh rebuilds the playlist for a stored spec if it has gone stale. It
// does not count as usage of the query.
func (c *Coordinator) Refresh(ctx context.Context, q spec.QuerySpec) (*Result, error) {
	if !q.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", q.Mode)
	}
	return c.resolve(ctx, q, nil, false, false)
}

// Get returns a previously built playlist by ID.
func (c *Coordinator) Get(ctx context.Context, playlistID string) (*Result, error) {
	query, playlist, err := c.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		return nil, ErrNotFound
	}
	return decodeResult(query, playlist)
}

func (c *Coordinator) screen(ctx context.Context, text string) error {
	if c.guardrail == nil {
		return nil
	}

	verdict, err := c.guardrail.Classify(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Content policy check failed, allowing request", "error", err)
		return nil
	}
	if verdict.Blocked {
		recordOutcome("rejected")
		slog.Info("Request rejected by content policy", "reasons", verdict.Reasons)
		return &GuardrailRejection{Reasons: verdict.Reasons}
	}
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, q spec.QuerySpec, assumptions []string, force, fromRequest bool) (*Result, error) {
	signature, err := q.Signature()
	if err != nil {
		return nil, err
	}

	p, err := c.profiles.Get(q.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	j := &job{
		spec:        q,
		signature:   signature,
		profile:     p,
		assumptions: assumptions,
		lastUsedAt:  c.now(),
		force:       force,
	}

	query, playlist := c.lookup(ctx, signature, q.Mode)
	if query != nil && !fromRequest {
		j.lastUsedAt = query.LastUsedAt
	}

	if playlist != nil && !force && !c.isStale(playlist) {
		res, err := decodeResult(query, playlist)
		if err == nil {
			if fromRequest {
				c.touch(ctx, query.ID)
				res.Explanation.Assumptions = nonNil(assumptions)
			}
			return res, nil
		}
		slog.Warn("Stored playlist is unreadable, rebuilding", "signature", signature, "playlist_id", playlist.ID, "error", err)
	}

	res, err := c.buildShared(ctx, j)
	if err != nil {
		return nil, err
	}
	if fromRequest {
		if res.CacheStatus == StatusCached {
			c.touch(ctx, res.QueryID)
		}
		res.Explanation.Assumptions = nonNil(assumptions)
	}
	return res, nil
}

// buildShared runs the build through the lock table. A caller that joined a
// build which then failed tries the lock table once more and finally builds on
// its own.
func (c *Coordinator) buildShared(ctx context.Context, j *job) (*Result, error) {
	build := func(ctx context.Context) (*Result, error) {
		return c.build(ctx, j)
	}

	res, leader, err := c.locks.Do(ctx, j.signature, build)
	if err == nil || leader || ctx.Err() != nil {
		return res, err
	}

	slog.Warn("Shared build failed, retrying", "signature", j.signature, "error", err)
	res, leader, err = c.locks.Do(ctx, j.signature, build)
	if err == nil || leader || ctx.Err() != nil {
		return res, err
	}

	slog.Warn("Shared build failed again, building without lock", "signature", j.signature, "error", err)
	buildCtx, cancel := context.WithTimeout(ctx, c.settings.BuildTimeout)
	defer cancel()
	return runBuild(buildCtx, j.signature, build)
}

func (c *Coordinator) build(ctx context.Context, j *job) (*Result, error) {
	// A build for this signature may have finished between the caller's
	// lookup and taking the lock.
	if !j.force {
		if res := c.storedFresh(ctx, j); res != nil {
			slog.Debug("Playlist built concurrently, skipping search", "signature", j.signature, "playlist_id", res.PlaylistID)
			return res, nil
		}
	}

	start := time.Now()
	slog.Debug("Building playlist", "signature", j.signature, "mode", j.spec.Mode, "force", j.force)

	videos, err := c.search(ctx, j)
	if err != nil {
		buildsTotal.WithLabelValues("failure").Inc()
		if c.settings.ServeStaleOnError {
			if res := c.fallback(ctx, j, err); res != nil {
				return res, nil
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	now := c.now()

	var notes []string
	scored, err := c.scorer.Run(videos, j.spec, j.profile, now)
	if errors.Is(err, scoring.ErrInsufficientCandidates) {
		notes = append(notes, fmt.Sprintf("none of %d candidates survived filtering", scored.Total))
	} else if err != nil {
		buildsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	seq := c.sequencer.Run(scored.Candidates, j.spec, j.profile)

	items := seq.Segments
	if items == nil {
		items = []sequencer.Segment{}
	}

	res := &Result{
		PlaylistID:           uuid.NewString(),
		Signature:            j.signature,
		Items:                items,
		TotalDurationSeconds: seq.TotalDurationSeconds,
		CoverageShortfall:    seq.CoverageShortfall,
		Explanation:          explain(j, scored, seq, notes),
		CreatedAt:            now,
		StaleAfter:           c.policy.StaleAfter(staleness.Anchor(j.spec, now), now),
		CacheStatus:          StatusFresh,
	}
	res.QueryID = c.persist(ctx, j, res)

	buildsTotal.WithLabelValues("success").Inc()
	buildDuration.Observe(time.Since(start).Seconds())

	slog.Info("Playlist built",
		"signature", j.signature,
		"playlist_id", res.PlaylistID,
		"candidates", scored.Total,
		"selected", len(res.Items),
		"duration_seconds", res.TotalDurationSeconds,
		"shortfall", res.CoverageShortfall)

	return res, nil
}

func (c *Coordinator) search(ctx context.Context, j *job) ([]candidate.Video, error) {
	if j.force {
		ctx = candidate.WithCacheBypass(ctx)
	}

	backoff := c.settings.SourceBackoff
	var lastErr error

	for attempt := 1; attempt <= c.settings.SourceAttempts; attempt++ {
		videos, err := c.source.Search(ctx, j.spec)
		if err == nil {
			return videos, nil
		}
		lastErr = err
		sourceFailuresTotal.Inc()

		if ctx.Err() != nil || attempt == c.settings.SourceAttempts {
			break
		}

		slog.Warn("Candidate search failed, retrying", "signature", j.signature, "attempt", attempt, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}

// storedFresh returns the latest stored playlist for the job when it is still
// fresh, or nil.
func (c *Coordinator) storedFresh(ctx context.Context, j *job) *Result {
	query, playlist := c.lookup(ctx, j.signature, j.spec.Mode)
	if playlist == nil || c.isStale(playlist) {
		return nil
	}

	res, err := decodeResult(query, playlist)
	if err != nil {
		slog.Warn("Stored playlist is unreadable", "signature", j.signature, "playlist_id", playlist.ID, "error", err)
		return nil
	}
	return res
}

// fallback returns the latest stored playlist for the job when it is not
// stale, or nil. Expired records and records from an older schema are never
// served.
func (c *Coordinator) fallback(ctx context.Context, j *job, cause error) *Result {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackLookupTimeout)
	defer cancel()

	res := c.storedFresh(lookupCtx, j)
	if res == nil {
		return nil
	}

	servedStoredTotal.Inc()
	slog.Warn("Candidate source unavailable, serving stored playlist",
		"signature", j.signature,
		"playlist_id", res.PlaylistID,
		"built_at", res.CreatedAt,
		"error", cause)

	res.Explanation.CoverageNotes = append(res.Explanation.CoverageNotes,
		fmt.Sprintf("candidate source unavailable, serving playlist built at %s", res.CreatedAt.Format(time.RFC3339)))
	return res
}

func (c *Coordinator) lookup(ctx context.Context, signature string, mode spec.Mode) (*database.QueryRecord, *database.PlaylistRecord) {
	query, playlist, err := c.store.GetLatest(ctx, signature, string(mode))
	if err != nil {
		persistenceFailuresTotal.WithLabelValues("lookup").Inc()
		slog.Error("Failed to look up stored playlist", "signature", signature, "error", err)
		return nil, nil
	}
	return query, playlist
}

func (c *Coordinator) touch(ctx context.Context, queryID string) {
	if err := c.store.TouchLastUsed(ctx, queryID, c.now()); err != nil {
		persistenceFailuresTotal.WithLabelValues("touch").Inc()
		slog.Error("Failed to update query usage", "query_id", queryID, "error", err)
	}
}

// persist stores the result and returns its query ID. Failures are logged and
// the result stays usable under a query ID that was never stored.
func (c *Coordinator) persist(ctx context.Context, j *job, res *Result) string {
	query := database.QueryRecord{
		ID:            uuid.NewString(),
		Signature:     j.signature,
		Mode:          string(j.spec.Mode),
		SchemaVersion: c.policy.SchemaVersion,
		CreatedAt:     res.CreatedAt,
		LastUsedAt:    j.lastUsedAt,
	}

	queryID, err := c.put(ctx, j, query, res)
	if err != nil {
		persistenceFailuresTotal.WithLabelValues("put").Inc()
		slog.Error("Failed to persist playlist", "signature", j.signature, "playlist_id", res.PlaylistID, "error", err)
		return query.ID
	}
	return queryID
}

func (c *Coordinator) put(ctx context.Context, j *job, query database.QueryRecord, res *Result) (string, error) {
	canonical, err := j.spec.Canonical()
	if err != nil {
		return "", err
	}
	items, err := json.Marshal(res.Items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	explanation, err := json.Marshal(res.Explanation)
	if err != nil {
		return "", fmt.Errorf("failed to encode explanation: %w", err)
	}

	query.CanonicalSpec = canonical
	return c.store.Put(ctx, query, database.PlaylistRecord{
		ID:                   res.PlaylistID,
		Items:                items,
		Explanation:          explanation,
		TotalDurationSeconds: res.TotalDurationSeconds,
		CoverageShortfall:    res.CoverageShortfall,
		SchemaVersion:        c.policy.SchemaVersion,
		CreatedAt:            res.CreatedAt,
		StaleAfter:           res.StaleAfter,
	})
}

func (c *Coordinator) isStale(playlist *database.PlaylistRecord) bool {
	return c.policy.IsStale(staleness.Record{
		StaleAfter:    playlist.StaleAfter,
		SchemaVersion: playlist.SchemaVersion,
	}, c.now())
}

func decodeResult(query *database.QueryRecord, playlist *database.PlaylistRecord) (*Result, error) {
	res := &Result{
		PlaylistID:           playlist.ID,
		QueryID:              playlist.QueryID,
		Signature:            query.Signature,
		TotalDurationSeconds: playlist.TotalDurationSeconds,
		CoverageShortfall:    playlist.CoverageShortfall,
		CreatedAt:            playlist.CreatedAt,
		StaleAfter:           playlist.StaleAfter,
		CacheStatus:          StatusCached,
	}
	if err := json.Unmarshal(playlist.Items, &res.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if err := json.Unmarshal(playlist.Explanation, &res.Explanation); err != nil {
		return nil, fmt.Errorf("failed to decode explanation: %w", err)
	}
	return res, nil
}

func explain(j *job, scored scoring.Result, seq sequencer.Sequence, notes []string) Explanation {
	actual := math.Round(float64(seq.TotalDurationSeconds)/6) / 10

	if seq.CoverageShortfall {
		lower, _ := j.spec.DurationBucket.Bounds()
		notes = append(notes, fmt.Sprintf("only %.1f minutes found, below the %d minute minimum", actual, lower/60))
	}
	if seq.LockMinutes != nil && seq.ExcludedEndings == 0 {
		notes = append(notes, fmt.Sprintf("ending segments held until minute %d", *seq.LockMinutes))
	}
	if seq.ExcludedEndings > 0 {
		notes = append(notes, fmt.Sprintf("%d ending segments left out, not enough runtime before minute %d",
			seq.ExcludedEndings, *seq.LockMinutes))
	}
	if removed := scored.Filtered.Total(); removed > 0 {
		notes = append(notes, fmt.Sprintf("%d of %d candidates removed by filters", removed, scored.Total))
	}

	return Explanation{
		Assumptions: nonNil(j.assumptions),
		FiltersApplied: FiltersApplied{
			Exclusions:        nonNil(j.spec.Exclusions),
			SpoilerFilter:     j.spec.SportsMode,
			NSFWFilter:        j.profile.FilterNSFW,
			DurationTolerance: j.profile.DurationTolerance,
			Removed:           scored.Filtered,
		},
		RankingFactors:  j.profile.Weights,
		CoverageNotes:   nonNil(notes),
		TotalCandidates: scored.Total,
		SelectedVideos:  len(seq.Segments),
		ActualVsTargetMinutes: MinutesComparison{
			Actual: actual,
			Target: seq.TargetMinutes,
		},
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
