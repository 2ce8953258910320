package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Constructor builds an adapter for one configured source. The source has
// already been validated, so its Handle matches the registered kind.
type Constructor func(source domain.ScopedSource) (Adapter, error)

// Factory maps provider kinds to constructors. Provider packages do not
// register themselves; the application decides which kinds are available.
type Factory struct {
	mu           sync.RWMutex
	constructors map[domain.ProviderKind]Constructor
}

func NewFactory() *Factory {
	return &Factory{constructors: make(map[domain.ProviderKind]Constructor)}
}

// Register installs ctor for kind, replacing any previous one.
func (f *Factory) Register(kind domain.ProviderKind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

// Kinds lists the registered provider kinds, sorted.
func (f *Factory) Kinds() []domain.ProviderKind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]domain.ProviderKind, 0, len(f.constructors))
	for k := range f.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Build validates source and binds a fresh adapter for it.
func (f *Factory) Build(source domain.ScopedSource) (Binding, error) {
	if err := source.Validate(); err != nil {
		return Binding{}, err
	}

	f.mu.RLock()
	ctor, ok := f.constructors[source.Provider]
	f.mu.RUnlock()
	if !ok {
		return Binding{}, fmt.Errorf("%w: %q", ErrUnknownProvider, source.Provider)
	}

	adapter, err := ctor(source)
	if err != nil {
		return Binding{}, fmt.Errorf("failed to build %s adapter for %s: %w", source.Provider, source.Key(), err)
	}
	return Bind(adapter), nil
}
