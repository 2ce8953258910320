package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

func TestSnippetsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.GetSnippets(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	require.NoError(t, s.SetSnippets(ctx, []domain.Snippet{
		{ID: "a", Trigger: ";a", Content: "A", CreatedAt: ts, UpdatedAt: ts},
	}))

	got, err = s.GetSnippets(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.Equal(ts))
}

func TestFailedSetKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SetSnippets(ctx, []domain.Snippet{{ID: "a", Trigger: ";a"}}))

	s.FailSetSnippets = errors.New("disk full")
	require.Error(t, s.SetSnippets(ctx, nil))

	got, err := s.GetSnippets(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSourcesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	src := domain.ScopedSource{
		Scope:    domain.ScopeTeam,
		Provider: domain.ProviderMemory,
		Name:     "eng",
		Handle:   domain.MemoryHandle{Bucket: "eng"},
	}
	require.NoError(t, s.SaveSources(ctx, []domain.ScopedSource{src}))

	got, err := s.LoadSources(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, src.Key(), got[0].Key())
	assert.Equal(t, src.Handle, got[0].Handle)
}

func TestPruneUsage(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.IncrementUsage(ctx, ";a")
	_ = s.IncrementUsage(ctx, ";b")

	n, err := s.PruneUsage(ctx, []string{";a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, _ := s.GetUsageStats(ctx)
	assert.Equal(t, map[string]int64{";a": 1}, stats)
}
