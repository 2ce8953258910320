// Package memory is an in-process store with the same surface as the redis
// store. Values are kept in their encoded form so a round trip behaves like
// the real cache.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	snippets []byte
	sources  []byte
	usage    map[string]int64
	now      func() time.Time

	// FailSetSnippets, when set, is returned by SetSnippets.
	FailSetSnippets error
	// FailSaveSources, when set, is returned by SaveSources.
	FailSaveSources error
}

func New() *Store {
	return &Store{usage: make(map[string]int64), now: time.Now}
}

func (s *Store) SetSnippets(_ context.Context, snippets []domain.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetSnippets != nil {
		return s.FailSetSnippets
	}
	data, err := domain.EncodeSnippets(snippets)
	if err != nil {
		return err
	}
	s.snippets = data
	return nil
}

func (s *Store) GetSnippets(_ context.Context) ([]domain.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snippets == nil {
		return []domain.Snippet{}, nil
	}
	out, _, err := domain.DecodeSnippets(s.snippets, s.now())
	return out, err
}

// RawSnippets returns the encoded cache document, nil on a cold cache.
func (s *Store) RawSnippets() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.snippets...)
}

func (s *Store) SaveSources(_ context.Context, sources []domain.ScopedSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaveSources != nil {
		return s.FailSaveSources
	}
	if sources == nil {
		sources = []domain.ScopedSource{}
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	s.sources = data
	return nil
}

func (s *Store) LoadSources(_ context.Context) ([]domain.ScopedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sources == nil {
		return []domain.ScopedSource{}, nil
	}
	var out []domain.ScopedSource
	if err := json.Unmarshal(s.sources, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return out, nil
}

func (s *Store) IncrementUsage(_ context.Context, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[trigger]++
	return nil
}

func (s *Store) GetUsageStats(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out, nil
}

func (s *Store) PruneUsage(_ context.Context, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[string]struct{}, len(keep))
	for _, t := range keep {
		live[t] = struct{}{}
	}
	n := 0
	for t := range s.usage {
		if _, ok := live[t]; !ok {
			delete(s.usage, t)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }
