package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// SaveSources replaces the persisted source registry
func (s *Store) SaveSources(ctx context.Context, sources []domain.ScopedSource) error {
	if sources == nil {
		sources = []domain.ScopedSource{}
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := s.client.Set(ctx, SourcesKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sources: %w", err)
	}
	return nil
}

// LoadSources returns the persisted source registry
func (s *Store) LoadSources(ctx context.Context) ([]domain.ScopedSource, error) {
	data, err := s.client.Get(ctx, SourcesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.ScopedSource{}, nil
		}
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	// Decode entry by entry so one bad handle does not hide the rest.
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	sources := make([]domain.ScopedSource, 0, len(raw))
	for i, r := range raw {
		var src domain.ScopedSource
		if err := json.Unmarshal(r, &src); err != nil {
			s.log.Warn("skipping undecodable source",
				logger.Int("position", i),
				logger.Error(err))
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}
