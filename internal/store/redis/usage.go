package redis

import (
	"context"
	"fmt"
	"strconv"
)

// IncrementUsage bumps the expansion counter of a trigger and records when
// it was last used.
func (s *Store) IncrementUsage(ctx context.Context, trigger string) error {
	field := UsageField(trigger)
	if field == "" {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, UsageKey(), field, 1)
	pipe.HSet(ctx, KeyUsageLastUsed, field, s.now().UTC().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// GetUsageStats returns the expansion counters keyed by trigger
func (s *Store) GetUsageStats(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, UsageKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	stats := make(map[string]int64, len(raw))
	for trigger, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		stats[trigger] = n
	}
	return stats, nil
}

// PruneUsage drops counters of triggers that are not in keep and returns
// how many were removed.
func (s *Store) PruneUsage(ctx context.Context, keep []string) (int, error) {
	fields, err := s.client.HKeys(ctx, UsageKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list usage fields: %w", err)
	}

	live := make(map[string]struct{}, len(keep))
	for _, t := range keep {
		live[UsageField(t)] = struct{}{}
	}

	var stale []string
	for _, f := range fields {
		if _, ok := live[f]; !ok {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, UsageKey(), stale...)
	pipe.HDel(ctx, KeyUsageLastUsed, stale...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune usage: %w", err)
	}
	return len(stale), nil
}
