package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// Syncer runs one sync cycle
type Syncer interface {
	SyncAndMerge(ctx context.Context) ([]domain.MergedSnippet, error)
}

// SyncLoop runs sync cycles on a ticker and on demand. It owns the cycle
// lock: no two cycles, and no cycle and scope mutation, ever overlap.
type SyncLoop struct {
	syncer        Syncer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	cycle   sync.Mutex
	running atomic.Bool
	lastRun atomic.Pointer[time.Time]
}

// NewSyncLoop creates a new sync loop
func NewSyncLoop(syncer Syncer, log logger.Logger, interval time.Duration) *SyncLoop {
	return &SyncLoop{
		syncer:        syncer,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start runs a first cycle, then keeps syncing until Stop or ctx is done.
// A failing first cycle is logged; the next tick tries again.
func (sl *SyncLoop) Start(ctx context.Context) error {
	if err := sl.Reload(ctx); err != nil {
		sl.logger.Warn("initial sync failed", logger.Error(err))
	}

	ticker := time.NewTicker(sl.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sl.Reload(ctx); err != nil {
					sl.logger.Error("sync cycle failed", logger.Error(err))
				}
			case <-sl.manualTrigger:
				sl.logger.Info("manual sync triggered")
				if err := sl.Reload(ctx); err != nil {
					sl.logger.Error("sync cycle failed", logger.Error(err))
				}
			case <-sl.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the loop. Safe to call more than once.
func (sl *SyncLoop) Stop() {
	sl.stopOnce.Do(func() { close(sl.stopCh) })
}

// Reload runs one cycle now, waiting for any cycle in progress.
func (sl *SyncLoop) Reload(ctx context.Context) error {
	return sl.Exclusive(func() error {
		_, err := sl.syncer.SyncAndMerge(ctx)
		now := time.Now()
		sl.lastRun.Store(&now)
		return err
	})
}

// Trigger queues a cycle for the loop goroutine. It returns false when one
// is already queued.
func (sl *SyncLoop) Trigger() bool {
	select {
	case sl.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Exclusive runs fn under the cycle lock. Scope mutations that re-sync go
// through here.
func (sl *SyncLoop) Exclusive(fn func() error) error {
	sl.cycle.Lock()
	defer sl.cycle.Unlock()
	sl.running.Store(true)
	defer sl.running.Store(false)
	return fn()
}

// Running reports whether a cycle or mutation holds the lock right now.
func (sl *SyncLoop) Running() bool { return sl.running.Load() }

// LastRun returns when the last cycle finished, zero if none has.
func (sl *SyncLoop) LastRun() time.Time {
	if t := sl.lastRun.Load(); t != nil {
		return *t
	}
	return time.Time{}
}
