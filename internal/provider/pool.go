package provider

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// Pool caches bindings by source key so adapters (and the clients inside
// them) survive across sync cycles.
type Pool struct {
	factory *Factory
	cache   *lru.Cache[domain.SourceKey, Binding]
	log     logger.Logger
}

// NewPool creates a pool holding at most size bindings.
func NewPool(factory *Factory, size int, log logger.Logger) (*Pool, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[domain.SourceKey, Binding](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter cache: %w", err)
	}
	return &Pool{factory: factory, cache: cache, log: log}, nil
}

// Get returns the cached binding for source, building one on a miss.
func (p *Pool) Get(source domain.ScopedSource) (Binding, error) {
	key := source.Key()
	if b, ok := p.cache.Get(key); ok {
		return b, nil
	}

	b, err := p.factory.Build(source)
	if err != nil {
		return Binding{}, err
	}
	p.cache.Add(key, b)
	p.log.Debug("adapter bound",
		logger.String("source", key.String()),
		logger.String("provider", string(source.Provider)),
		logger.Bool("files", b.SupportsFiles()))
	return b, nil
}

// Invalidate drops the binding of key. Registered as a registry hook.
func (p *Pool) Invalidate(key domain.SourceKey) {
	if p.cache.Remove(key) {
		p.log.Debug("adapter invalidated", logger.String("source", key.String()))
	}
}

// Len returns the number of cached bindings.
func (p *Pool) Len() int { return p.cache.Len() }
