// Package engine fetches every configured source, merges their snippets by
// trigger and publishes the result to the cache and the trigger index.
//
// The engine does not serialize its own cycles. Callers that may overlap
// (the scheduler, HTTP mutations) share one lock around SyncAndMerge and the
// scope mutations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/events"
	"github.com/MrSnakeDoc/snip/internal/index"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
)

var (
	// ErrCachePersist fails a cycle whose merged set could not be cached.
	// The previous cache and index stay in place.
	ErrCachePersist = errors.New("failed to persist merged snippets")

	ErrNoSourceForScope = errors.New("no source configured for scope")
	ErrInvalidSnippet   = errors.New("invalid snippet")
)

// Sources is the part of the registry the engine reads.
type Sources interface {
	List() []domain.ScopedSource
	ListScope(scope domain.Scope) []domain.ScopedSource
	Get(scope domain.Scope, name string) (domain.ScopedSource, error)
	TouchLastSync(ctx context.Context, keys []domain.SourceKey, at time.Time) error
}

// Adapters hands out the binding of a source.
type Adapters interface {
	Get(source domain.ScopedSource) (provider.Binding, error)
}

// Cache is the local store of the merged set.
type Cache interface {
	GetSnippets(ctx context.Context) ([]domain.Snippet, error)
	SetSnippets(ctx context.Context, snippets []domain.Snippet) error
}

type Config struct {
	Priority     domain.ScopePriority
	FetchTimeout time.Duration
}

type Engine struct {
	sources  Sources
	adapters Adapters
	cache    Cache
	index    *index.Index
	events   events.Publisher
	log      logger.Logger

	priority     domain.ScopePriority
	fetchTimeout time.Duration

	now   func() time.Time
	newID func() string

	mu   sync.RWMutex
	last Report
}

func New(
	cfg Config,
	sources Sources,
	adapters Adapters,
	cache Cache,
	idx *index.Index,
	pub events.Publisher,
	log logger.Logger,
) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Priority.IsZero() {
		cfg.Priority = domain.PersonalFirst
		log.Warn("no scope priority configured, using the default",
			logger.String("priority", cfg.Priority.String()))
	}
	return &Engine{
		sources:      sources,
		adapters:     adapters,
		cache:        cache,
		index:        idx,
		events:       pub,
		log:          log,
		priority:     cfg.Priority,
		fetchTimeout: cfg.FetchTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Priority returns the scope table merges use.
func (e *Engine) Priority() domain.ScopePriority { return e.priority }

// SyncAndMerge runs one full cycle. Individual source failures only cost
// that source's snippets; the returned error is non-nil only when the merged
// set could not be cached.
func (e *Engine) SyncAndMerge(ctx context.Context) ([]domain.MergedSnippet, error) {
	start := e.now()
	e.events.Publish(events.Event{Kind: events.SyncStarted})

	results := e.fetchAll(ctx, e.sources.List())
	merged := Merge(results, e.priority)
	report := newReport(start, results, len(merged))

	if err := e.cache.SetSnippets(ctx, domain.Snippets(merged)); err != nil {
		report.Duration = e.now().Sub(start)
		report.Err = err
		e.setReport(report)
		e.log.Error("sync cycle failed, keeping previous snippets", logger.Error(err))
		e.events.Publish(events.Event{Kind: events.SyncFailed, Message: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrCachePersist, err)
	}

	e.index.Rebuild(merged)

	synced := report.succeeded()
	if len(synced) > 0 {
		if err := e.sources.TouchLastSync(ctx, synced, e.now()); err != nil {
			e.log.Warn("failed to record last sync", logger.Error(err))
		}
	}

	report.Duration = e.now().Sub(start)
	e.setReport(report)

	e.log.Info("sync cycle completed",
		logger.Int("sources", len(results)),
		logger.Int("failed", report.Failed()),
		logger.Int("snippets", len(merged)),
		logger.Duration("duration", report.Duration))
	e.events.Publish(events.Event{
		Kind:     events.SyncCompleted,
		Snippets: len(merged),
		Failed:   report.Failed(),
		Duration: report.Duration,
	})
	return merged, nil
}

// RestoreFromCache loads the cached merged set into the index, e.g. at
// startup before the first cycle has run.
func (e *Engine) RestoreFromCache(ctx context.Context) (int, error) {
	snippets, err := e.cache.GetSnippets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read cached snippets: %w", err)
	}
	e.index.Rebuild(domain.AsMerged(snippets))
	return len(snippets), nil
}

// LastReport returns the outcome of the most recent cycle.
func (e *Engine) LastReport() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last.clone()
}

func (e *Engine) setReport(r Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = r
}
