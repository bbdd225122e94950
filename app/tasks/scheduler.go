package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/reel-comb/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrTaskQueued is returned when a task with the same key is already queued or running.
var ErrTaskQueued = errors.New("task already queued")

const (
	queueSize   = 300
	taskTimeout = 5 * time.Minute
	maxRetryGap = 30 * time.Second
)

type Settings struct {
	Interval      time.Duration
	PrewarmWindow time.Duration
	WorkerCount   int
	SweepLimit    int
	SchemaVersion int
}

type Stats struct {
	Workers        int   `json:"workers"`
	QueueSize      int   `json:"queue_size"`
	TotalProcessed int64 `json:"total_processed"`
	TotalErrors    int64 `json:"total_errors"`
}

type Scheduler struct {
	store     database.PlaylistRepository
	refresher Refresher
	settings  Settings
	retryBase time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu     sync.Mutex
	queued map[string]bool
	stats  Stats
}

func NewScheduler(store database.PlaylistRepository, refresher Refresher, settings Settings) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.WorkerCount < 1 {
		settings.WorkerCount = 1
	}
	if settings.SweepLimit < 1 {
		settings.SweepLimit = 100
	}

	return &Scheduler{
		store:     store,
		refresher: refresher,
		settings:  settings,
		retryBase: time.Second,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, queueSize),
		queued:    make(map[string]bool),
		stats:     Stats{Workers: settings.WorkerCount},
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.settings.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.settings.Interval)
		defer ticker.Stop()

		s.enqueueSweep()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSweep()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers and pending retries to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if !s.claim(task.GetKey()) {
		return fmt.Errorf("%w: %s", ErrTaskQueued, task.GetKey())
	}
	if err := s.push(task); err != nil {
		s.unclaim(task.GetKey())
		return err
	}
	return nil
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.QueueSize = len(s.taskQueue)
	return stats
}

// Health summarizes the task error rate: above 10% is degraded, above 50% unhealthy.
func (s *Scheduler) Health() map[string]any {
	stats := s.Stats()

	errorRate := 0.0
	if stats.TotalProcessed > 0 {
		errorRate = float64(stats.TotalErrors) / float64(stats.TotalProcessed)
	}

	status := "healthy"
	switch {
	case errorRate > 0.5:
		status = "unhealthy"
	case errorRate > 0.1:
		status = "degraded"
	}

	return map[string]any{
		"status":          status,
		"workers":         stats.Workers,
		"queue_size":      stats.QueueSize,
		"total_processed": stats.TotalProcessed,
		"total_errors":    stats.TotalErrors,
		"error_rate":      errorRate,
	}
}

func (s *Scheduler) push(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued[key] {
		return false
	}
	s.queued[key] = true
	return true
}

func (s *Scheduler) unclaim(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, key)
}

func (s *Scheduler) enqueueSweep() {
	task := NewSweepStaleTask(s.store, s.refresher, s, s.settings.PrewarmWindow, s.settings.SweepLimit, s.settings.SchemaVersion)
	if err := s.EnqueueTask(task); err != nil {
		slog.Debug("Skipping stale playlist sweep", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			if s.ctx.Err() != nil {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	s.mu.Lock()
	s.stats.TotalProcessed++
	if err != nil {
		s.stats.TotalErrors++
	}
	s.mu.Unlock()

	if err == nil {
		slog.Debug("Task completed", "worker_id", workerID, "type", string(task.GetType()), "key", task.GetKey(), "duration", task.GetDuration())
		s.unclaim(task.GetKey())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.unclaim(task.GetKey())
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(s.retryBase<<(task.GetRetryCount()-1), maxRetryGap)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "key", task.GetKey(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.unclaim(task.GetKey())
		case <-timer.C:
			if retryErr := s.push(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.unclaim(task.GetKey())
			}
		}
	}()
}
