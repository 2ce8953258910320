// Package registry holds the configured snippet sources.
//
// The Registry is an explicit instance owned by the application. Every
// mutation persists the full source set through the injected Store before it
// returns; readers only ever receive copies.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

var (
	ErrInvalidSource = errors.New("invalid source")
	ErrNotFound      = errors.New("source not found")
)

// Store persists the source set. Implementations replace the stored set as a
// whole.
type Store interface {
	LoadSources(ctx context.Context) ([]domain.ScopedSource, error)
	SaveSources(ctx context.Context, sources []domain.ScopedSource) error
}

// InvalidateFunc is called after a source is removed or rebound to another
// handle so anything cached for that key can be dropped.
type InvalidateFunc func(key domain.SourceKey)

type Registry struct {
	mu      sync.Mutex
	sources []domain.ScopedSource
	store   Store
	log     logger.Logger
	hooks   []InvalidateFunc
}

// New creates an empty registry backed by store.
func New(store Store, log logger.Logger) *Registry {
	return &Registry{store: store, log: log}
}

// OnInvalidate registers a hook run for every removed or rebound source.
func (r *Registry) OnInvalidate(fn InvalidateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Load replaces the in-memory set with the persisted one. Invalid persisted
// entries are skipped and logged.
func (r *Registry) Load(ctx context.Context) error {
	loaded, err := r.store.LoadSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	valid := make([]domain.ScopedSource, 0, len(loaded))
	seen := make(map[domain.SourceKey]int, len(loaded))
	for _, s := range loaded {
		if err := s.Validate(); err != nil {
			r.log.Warn("skipping invalid persisted source",
				logger.String("source", s.Key().String()),
				logger.Error(err))
			continue
		}
		if i, dup := seen[s.Key()]; dup {
			valid[i] = s.Clone()
			continue
		}
		seen[s.Key()] = len(valid)
		valid = append(valid, s.Clone())
	}

	r.mu.Lock()
	r.sources = valid
	r.mu.Unlock()

	r.log.Info("sources loaded", logger.Int("count", len(valid)))
	return nil
}

// Add inserts source or overwrites the one with the same (scope, name). An
// overwrite keeps the original position so merge order stays stable, and
// keeps the recorded lastSync unless source carries its own.
func (r *Registry) Add(ctx context.Context, source domain.ScopedSource) error {
	if err := source.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	rebind := false
	replaced := false
	for i := range next {
		if next[i].Key() != source.Key() {
			continue
		}
		incoming := source.Clone()
		if incoming.LastSync == nil {
			incoming.LastSync = next[i].LastSync
		}
		rebind = next[i].Provider != incoming.Provider || next[i].Handle != incoming.Handle
		next[i] = incoming
		replaced = true
		break
	}
	if !replaced {
		next = append(next, source.Clone())
	}

	if err := r.persistLocked(ctx, next); err != nil {
		return err
	}
	r.sources = next
	if rebind {
		r.invalidateLocked(source.Key())
	}
	return nil
}

// Remove deletes the source with the given key.
func (r *Registry) Remove(ctx context.Context, scope domain.Scope, name string) error {
	key := domain.SourceKey{Scope: scope, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]domain.ScopedSource, 0, len(r.sources))
	found := false
	for _, s := range r.sources {
		if s.Key() == key {
			found = true
			continue
		}
		next = append(next, s.Clone())
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err := r.persistLocked(ctx, next); err != nil {
		return err
	}
	r.sources = next
	r.invalidateLocked(key)
	return nil
}

// Get returns a copy of the source with the given key.
func (r *Registry) Get(scope domain.Scope, name string) (domain.ScopedSource, error) {
	key := domain.SourceKey{Scope: scope, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sources {
		if s.Key() == key {
			return s.Clone(), nil
		}
	}
	return domain.ScopedSource{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// List returns a copy of every source in insertion order.
func (r *Registry) List() []domain.ScopedSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

// ListScope returns a copy of the sources of one scope in insertion order.
func (r *Registry) ListScope(scope domain.Scope) []domain.ScopedSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ScopedSource, 0)
	for _, s := range r.sources {
		if s.Scope == scope {
			out = append(out, s.Clone())
		}
	}
	return out
}

// TouchLastSync stamps lastSync on the given sources and persists the set.
// Keys that were removed in the meantime are ignored.
func (r *Registry) TouchLastSync(ctx context.Context, keys []domain.SourceKey, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	wanted := make(map[domain.SourceKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	for i := range next {
		if _, ok := wanted[next[i].Key()]; ok {
			stamp := at
			next[i].LastSync = &stamp
		}
	}

	if err := r.persistLocked(ctx, next); err != nil {
		return err
	}
	r.sources = next
	return nil
}

func (r *Registry) copyLocked() []domain.ScopedSource {
	out := make([]domain.ScopedSource, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Clone()
	}
	return out
}

func (r *Registry) persistLocked(ctx context.Context, sources []domain.ScopedSource) error {
	if err := r.store.SaveSources(ctx, sources); err != nil {
		return fmt.Errorf("failed to persist sources: %w", err)
	}
	return nil
}

func (r *Registry) invalidateLocked(key domain.SourceKey) {
	for _, fn := range r.hooks {
		fn(key)
	}
}
