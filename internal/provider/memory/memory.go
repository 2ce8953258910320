// Package memory is an in-process provider. Buckets live in a Backend that
// outlives individual adapters, so evicting an adapter from the pool loses
// nothing.
package memory

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/provider"
)

type Backend struct {
	mu      sync.RWMutex
	buckets map[string][]domain.Snippet
}

func NewBackend() *Backend {
	return &Backend{buckets: make(map[string][]domain.Snippet)}
}

// Seed replaces the contents of bucket.
func (b *Backend) Seed(bucket string, snippets []domain.Snippet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[bucket] = cloneAll(snippets)
}

// Snapshot returns a copy of bucket.
func (b *Backend) Snapshot(bucket string) []domain.Snippet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneAll(b.buckets[bucket])
}

func cloneAll(in []domain.Snippet) []domain.Snippet {
	out := make([]domain.Snippet, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

type Adapter struct {
	backend *Backend
	bucket  string
}

func New(backend *Backend, handle domain.MemoryHandle) *Adapter {
	return &Adapter{backend: backend, bucket: handle.Bucket}
}

// Constructor plugs the adapter into a provider.Factory. An empty bucket
// name falls back to the source name.
func Constructor(backend *Backend) provider.Constructor {
	return func(source domain.ScopedSource) (provider.Adapter, error) {
		h, _ := source.Handle.(domain.MemoryHandle)
		if h.Bucket == "" {
			h.Bucket = source.Key().String()
		}
		return New(backend, h), nil
	}
}

// Download ignores folderID unless snippets carry a matching sourceFolder.
func (a *Adapter) Download(ctx context.Context, folderID string) ([]domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := a.backend.Snapshot(a.bucket)
	if folderID == "" {
		return all, nil
	}
	out := all[:0]
	for _, s := range all {
		if s.SourceFolder == folderID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Adapter) Upload(ctx context.Context, snippets []domain.Snippet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.backend.Seed(a.bucket, snippets)
	return nil
}

func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	current := a.backend.buckets[a.bucket]
	keep := make([]domain.Snippet, 0, len(current))
	for _, s := range current {
		if _, gone := drop[s.ID]; !gone {
			keep = append(keep, s)
		}
	}
	a.backend.buckets[a.bucket] = keep
	return nil
}

func (a *Adapter) IsAuthenticated(context.Context) (bool, error) { return true, nil }

var _ provider.Adapter = (*Adapter)(nil)
