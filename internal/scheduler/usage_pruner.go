package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/snip/internal/logger"
)

// UsageStore drops counters of triggers not in keep
type UsageStore interface {
	PruneUsage(ctx context.Context, keep []string) (int, error)
}

// TriggerLister returns the triggers currently indexed
type TriggerLister interface {
	Triggers() []string
}

// UsagePruner periodically removes usage counters of triggers that left the
// merged set.
type UsagePruner struct {
	store    UsageStore
	triggers func() TriggerLister
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewUsagePruner creates a new usage pruner. triggers is called on every
// run so it always sees the latest index snapshot.
func NewUsagePruner(
	store UsageStore,
	triggers func() TriggerLister,
	log logger.Logger,
	interval time.Duration,
) *UsagePruner {
	return &UsagePruner{
		store:    store,
		triggers: triggers,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic pruning process
func (up *UsagePruner) Start(ctx context.Context) error {
	ticker := time.NewTicker(up.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := up.Collect(ctx); err != nil {
					up.logger.Error("usage pruning failed",
						logger.Error(err))
				}
			case <-up.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the pruner
func (up *UsagePruner) Stop() {
	up.stopOnce.Do(func() { close(up.stopCh) })
}

// Collect removes stale counters. An empty index is skipped so a cold start
// never wipes every counter.
func (up *UsagePruner) Collect(ctx context.Context) (int, error) {
	keep := up.triggers().Triggers()
	if len(keep) == 0 {
		up.logger.Debug("trigger index empty, skipping usage pruning")
		return 0, nil
	}

	removed, err := up.store.PruneUsage(ctx, keep)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		up.logger.Info("usage counters pruned",
			logger.Int("removed", removed),
			logger.Int("kept", len(keep)))
	} else {
		up.logger.Debug("no usage counters to prune")
	}
	return removed, nil
}
