package curator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LockTable allows at most one build per key at a time. Concurrent callers for
// the same key wait for the running build and share its outcome.
//
// A build runs detached from the cancellation of whichever caller started it,
// bounded by the table's timeout, so a caller that gives up does not abort work
// other callers (and the store) still want.
type LockTable struct {
	group   singleflight.Group
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]int
}

func NewLockTable(timeout time.Duration) *LockTable {
	return &LockTable{
		timeout: timeout,
		pending: make(map[string]int),
	}
}

// Do runs build for key unless one is already running, in which case it waits
// for that one. leader reports whether this call's build function ran. A
// cancelled ctx abandons the wait but not the build.
func (t *LockTable) Do(ctx context.Context, key string, build func(context.Context) (*Result, error)) (res *Result, leader bool, err error) {
	t.acquire(key)
	defer t.release(key)

	ran := false
	ch := t.group.DoChan(key, func() (any, error) {
		ran = true
		buildsInFlight.Inc()
		defer buildsInFlight.Dec()

		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		return runBuild(buildCtx, key, build)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, ran, r.Err
		}
		shared := *r.Val.(*Result)
		return &shared, ran, nil
	}
}

// Pending returns how many callers are currently waiting on or running a
// build for key.
func (t *LockTable) Pending(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[key]
}

func (t *LockTable) acquire(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[key]++
}

func (t *LockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[key]--; t.pending[key] <= 0 {
		delete(t.pending, key)
	}
}

// runBuild converts a panic into an error so singleflight releases the key.
func runBuild(ctx context.Context, key string, build func(context.Context) (*Result, error)) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Playlist build panicked", "signature", key, "panic", r)
			res, err = nil, fmt.Errorf("build panicked: %v", r)
		}
	}()
	return build(ctx)
}
