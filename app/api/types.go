package api

import (
	"context"

	"github.com/lysyi3m/reel-comb/app/candidate"
	"github.com/lysyi3m/reel-comb/app/curator"
	"github.com/lysyi3m/reel-comb/app/database"
	"github.com/lysyi3m/reel-comb/app/spec"
	"github.com/lysyi3m/reel-comb/app/tasks"
)

type CuratorInterface interface {
	GetOrBuild(ctx context.Context, req spec.Request, opts curator.Options) (*curator.Result, error)
	Get(ctx context.Context, playlistID string) (*curator.Result, error)
}

type StatsInterface interface {
	GetStats(ctx context.Context) (database.Stats, error)
}

type HealthInterface interface {
	Health() map[string]any
}

var (
	_ CuratorInterface = (*curator.Coordinator)(nil)
	_ StatsInterface   = (*database.Repository)(nil)
	_ HealthInterface  = (*tasks.Scheduler)(nil)
)

type Handler struct {
	curator   CuratorInterface
	stats     StatsInterface
	scheduler HealthInterface
	channels  *candidate.ChannelRegistry
	version   string
}
