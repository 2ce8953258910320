package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/retry"
)

// Restorer loads the cached merged set into the trigger index
type Restorer interface {
	RestoreFromCache(ctx context.Context) (int, error)
}

// CacheWarmer fills the index from the local cache on startup so expansion
// works before the first sync cycle completes.
type CacheWarmer struct {
	restorer Restorer
	policy   retry.Policy
	logger   logger.Logger
}

// NewCacheWarmer creates a new cache warmer
func NewCacheWarmer(restorer Restorer, policy retry.Policy, log logger.Logger) *CacheWarmer {
	return &CacheWarmer{
		restorer: restorer,
		policy:   policy,
		logger:   log,
	}
}

// Warm loads the cache, retrying under the configured policy
func (cw *CacheWarmer) Warm(ctx context.Context) error {
	cw.logger.Info("warming trigger index from cache")

	var count int
	err := retry.Do(ctx, cw.policy, func(ctx context.Context, _ int) error {
		n, err := cw.restorer.RestoreFromCache(ctx)
		if err != nil {
			return err
		}
		count = n
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		cw.logger.Warn("cache load failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err))
	})
	if err != nil {
		return err
	}

	if count == 0 {
		cw.logger.Info("no snippets found in cache")
		return nil
	}
	cw.logger.Info("trigger index warmed from cache", logger.Int("count", count))
	return nil
}
