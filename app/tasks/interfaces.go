package tasks

import (
	"context"

	"github.com/lysyi3m/reel-comb/app/curator"
	"github.com/lysyi3m/reel-comb/app/spec"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and by tasks that fan out follow-up work.
//
//	scheduler := NewScheduler(store, coordinator, settings)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSweepStaleTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Refresher rebuilds a stored query's playlist when it has gone stale.
type Refresher interface {
	Refresh(ctx context.Context, q spec.QuerySpec) (*curator.Result, error)
}
