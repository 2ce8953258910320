package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// SetSnippets replaces the cached merged set. The whole set is written in a
// single SET so readers never observe a half-replaced list.
func (s *Store) SetSnippets(ctx context.Context, snippets []domain.Snippet) error {
	data, err := domain.EncodeSnippets(snippets)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, MergedSnippetsKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache snippets: %w", err)
	}
	return nil
}

// GetSnippets returns the cached merged set, or an empty list on a cold cache.
// Timestamps that fail to parse are replaced with the current time.
func (s *Store) GetSnippets(ctx context.Context) ([]domain.Snippet, error) {
	data, err := s.client.Get(ctx, MergedSnippetsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Snippet{}, nil // Cold cache
		}
		return nil, fmt.Errorf("failed to get cached snippets: %w", err)
	}

	snippets, repairs, err := domain.DecodeSnippets(data, s.now())
	if err != nil {
		return nil, err
	}
	for _, r := range repairs {
		s.log.Warn("repaired cached snippet timestamp",
			logger.String("snippet", r.SnippetID),
			logger.String("field", r.Field))
	}
	return snippets, nil
}
