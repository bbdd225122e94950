package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/curator"
	"github.com/lysyi3m/reel-comb/app/spec"
)

func NewHandler(curator CuratorInterface, stats StatsInterface, scheduler HealthInterface,
	channels *candidate.ChannelRegistry, version string) *Handler {
	return &Handler{
		curator:   curator,
		stats:     stats,
		scheduler: scheduler,
		channels:  channels,
		version:   version,
	}
}

func (h *Handler) CreatePlaylist(c *gin.Context) {
	h.curate(c, curator.Options{})
}

func (h *Handler) RegeneratePlaylist(c *gin.Context) {
	h.curate(c, curator.Options{ForceRefresh: true})
}

func (h *Handler) curate(c *gin.Context, opts curator.Options) {
	var req spec.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	res, err := h.curator.GetOrBuild(c.Request.Context(), req, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Cache-Status", string(res.CacheStatus))
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPlaylist(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing playlist id parameter"})
		return
	}

	res, err := h.curator.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if stats, err := h.stats.GetStats(c.Request.Context()); err == nil {
		health["queries"] = stats.Queries
		health["playlists"] = stats.Playlists
	} else {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		health["database"] = "unavailable"
	}

	health["loaded_channels"] = h.channels.Count()
	health["scheduler"] = h.scheduler.Health()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queries":       stats.Queries,
		"playlists":     stats.Playlists,
		"last_built_at": stats.LastBuiltAt,
		"channels":      h.channels.Count(),
	})
}

func (h *Handler) APIListChannels(c *gin.Context) {
	configs := h.channels.All()

	channels := make([]map[string]any, 0, len(configs))
	for _, channelConfig := range configs {
		channels = append(channels, map[string]any{
			"name":                channelConfig.Name,
			"url":                 channelConfig.URL,
			"enabled":             channelConfig.Settings.Enabled,
			"reputation":          channelConfig.Settings.Reputation,
			"modes":               channelConfig.Settings.Modes,
			"max_items":           channelConfig.Settings.MaxItems,
			"timeout":             (time.Duration(channelConfig.Settings.Timeout) * time.Second).String(),
			"extract_description": channelConfig.Settings.ExtractDescription,
		})
	}

	c.JSON(http.StatusOK, map[string]any{
		"channels": channels,
		"total":    len(channels),
	})
}

func (h *Handler) APIReloadChannel(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing channel name parameter"})
		return
	}

	channelConfig, err := h.channels.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading channel configuration", "channel", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Failed to reload channel configuration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Channel configuration reloaded",
		"channel": gin.H{
			"name":    channelConfig.Name,
			"url":     channelConfig.URL,
			"enabled": channelConfig.Settings.Enabled,
		},
	})
}

// writeError maps curation errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var invalid *spec.ValidationError
	var rejection *curator.GuardrailRejection

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"field":   invalid.Field,
			"message": invalid.Reason,
		})
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Request rejected by content policy",
			"reasons": rejection.Reasons,
		})
	case errors.Is(err, curator.ErrSourceUnavailable):
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Candidate source unavailable",
			"message": "No stored playlist could be served, try again later",
		})
	case errors.Is(err, curator.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Playlist not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Warn("Request ended before the playlist was ready", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Playlist build did not finish in time"})
	default:
		slog.Error("Curation failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
