package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/reel-comb/app/api"
	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/cfg"
	"github.com/lysyi3m/reel-comb/app/curator"
	"github.com/lysyi3m/reel-comb/app/database"
	"github.com/lysyi3m/reel-comb/app/guardrail"
	"github.com/lysyi3m/reel-comb/app/profile"
	"github.com/lysyi3m/reel-comb/app/scoring"
	"github.com/lysyi3m/reel-comb/app/sequencer"
	"github.com/lysyi3m/reel-comb/app/staleness"
	"github.com/lysyi3m/reel-comb/app/tasks"
)

// schemaVersion is bumped whenever the stored playlist layout or the build
// pipeline changes in a way that invalidates earlier results.
const schemaVersion = 1

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Reel Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	profiles := profile.NewRegistry(appCfg.ProfilesDir)
	if err := profiles.Run(); err != nil {
		slog.Error("Failed to load mode profiles", "dir", appCfg.ProfilesDir, "error", err)
		os.Exit(1)
	}

	channels := candidate.NewChannelRegistry(appCfg.ChannelsDir)
	if err := channels.Run(); err != nil {
		slog.Error("Failed to load channel configurations", "dir", appCfg.ChannelsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Channel configurations loaded", "count", channels.Count())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	limiter := rate.NewLimiter(rate.Limit(appCfg.SourceRate), appCfg.SourceBurst)

	var source candidate.Source = candidate.NewFeedSource(channels, httpClient, limiter, appCfg.UserAgent)
	if appCfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: appCfg.RedisAddr})
		defer redisClient.Close()

		source = candidate.NewRedisPoolCache(source, redisClient, time.Duration(appCfg.CandidateCacheTTL)*time.Second)
		slog.Info("Candidate pool cache enabled", "addr", appCfg.RedisAddr, "ttl_seconds", appCfg.CandidateCacheTTL)
	}

	classifiers := []guardrail.Classifier{guardrail.NewTermList(appCfg.BlockedTerms)}
	if appCfg.GuardrailURL != "" {
		classifiers = append(classifiers, guardrail.NewHTTPClassifier(appCfg.GuardrailURL, httpClient, appCfg.UserAgent))
	}

	store := database.NewRepository(db)
	buildTimeout := time.Duration(appCfg.BuildTimeout) * time.Second

	coordinator := curator.NewCoordinator(curator.Dependencies{
		Profiles:  profiles,
		Source:    source,
		Store:     store,
		Policy:    staleness.NewPolicy(schemaVersion),
		Guardrail: guardrail.NewChain(classifiers...),
		Scorer:    scoring.NewScorer(scoring.NewPatternClassifier()),
		Sequencer: sequencer.New(nil),
		Locks:     curator.NewLockTable(buildTimeout),
	}, curator.Settings{
		BuildTimeout:      buildTimeout,
		SourceAttempts:    appCfg.SourceAttempts,
		SourceBackoff:     time.Second,
		ServeStaleOnError: appCfg.ServeStaleOnError,
	})

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(store, coordinator, tasks.Settings{
		Interval:      time.Duration(appCfg.SchedulerInterval) * time.Second,
		PrewarmWindow: time.Duration(appCfg.PrewarmWindow) * time.Hour,
		WorkerCount:   appCfg.WorkerCount,
		SchemaVersion: schemaVersion,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(coordinator, store, scheduler, channels, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	// A cold build may hold the response for the whole build timeout.
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: buildTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "auth_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Reel Comb server shutdown complete")
}
