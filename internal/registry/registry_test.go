package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []domain.ScopedSource
	saves   int
	saveErr error
}

func (f *fakeStore) LoadSources(context.Context) ([]domain.ScopedSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ScopedSource(nil), f.saved...), nil
}

func (f *fakeStore) SaveSources(_ context.Context, sources []domain.ScopedSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.saved = append([]domain.ScopedSource(nil), sources...)
	return nil
}

func memSource(scope domain.Scope, name string) domain.ScopedSource {
	return domain.ScopedSource{
		Scope:    scope,
		Provider: domain.ProviderMemory,
		Name:     name,
		Handle:   domain.MemoryHandle{Bucket: name},
	}
}

func newRegistry(store Store) *Registry {
	return New(store, logger.Nop())
}

func TestAddPersistsBeforeReturning(t *testing.T) {
	store := &fakeStore{}
	r := newRegistry(store)

	require.NoError(t, r.Add(context.Background(), memSource(domain.ScopeTeam, "eng")))

	assert.Equal(t, 1, store.saves)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "eng", store.saved[0].Name)
}

func TestAddOverwritesByKeyInPlace(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(&fakeStore{})

	require.NoError(t, r.Add(ctx, memSource(domain.ScopeOrg, "acme")))
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "eng")))

	updated := memSource(domain.ScopeOrg, "acme")
	updated.DisplayName = "Acme Corp"
	require.NoError(t, r.Add(ctx, updated))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "acme", list[0].Name, "overwrite keeps insertion position")
	assert.Equal(t, "Acme Corp", list[0].DisplayName)
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(&fakeStore{})
	invalidated := 0
	r.OnInvalidate(func(domain.SourceKey) { invalidated++ })

	src := memSource(domain.ScopePersonal, "me")
	require.NoError(t, r.Add(ctx, src))
	require.NoError(t, r.Add(ctx, src))

	assert.Len(t, r.List(), 1)
	assert.Zero(t, invalidated, "identical re-add must not drop the bound adapter")
}

func TestAddRejectsInvalidHandle(t *testing.T) {
	r := newRegistry(&fakeStore{})

	bad := domain.ScopedSource{
		Scope:    domain.ScopeTeam,
		Provider: domain.ProviderLocalFS,
		Name:     "eng",
		Handle:   domain.S3Handle{Bucket: "b"},
	}
	err := r.Add(context.Background(), bad)

	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.Empty(t, r.List())
}

func TestAddPersistFailureLeavesRegistryUnchanged(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	r := newRegistry(store)

	err := r.Add(context.Background(), memSource(domain.ScopeTeam, "eng"))

	require.Error(t, err)
	assert.Empty(t, r.List())
}

func TestRemoveInvalidatesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	r := newRegistry(store)

	var invalidated []domain.SourceKey
	r.OnInvalidate(func(k domain.SourceKey) { invalidated = append(invalidated, k) })

	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "eng")))
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeOrg, "acme")))
	require.NoError(t, r.Remove(ctx, domain.ScopeTeam, "eng"))

	assert.Equal(t, []domain.SourceKey{{Scope: domain.ScopeTeam, Name: "eng"}}, invalidated)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "acme", store.saved[0].Name)

	err := r.Remove(ctx, domain.ScopeTeam, "eng")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(&fakeStore{})
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "eng")))

	list := r.List()
	list[0].Name = "mutated"

	assert.Equal(t, "eng", r.List()[0].Name)
}

func TestListScope(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(&fakeStore{})
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "a")))
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeOrg, "b")))
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "c")))

	team := r.ListScope(domain.ScopeTeam)
	require.Len(t, team, 2)
	assert.Equal(t, "a", team[0].Name)
	assert.Equal(t, "c", team[1].Name)
	assert.Empty(t, r.ListScope(domain.ScopeDepartment))
}

func TestTouchLastSync(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(&fakeStore{})
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "a")))
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeOrg, "b")))

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, r.TouchLastSync(ctx, []domain.SourceKey{{Scope: domain.ScopeTeam, Name: "a"}}, at))

	a, err := r.Get(domain.ScopeTeam, "a")
	require.NoError(t, err)
	require.NotNil(t, a.LastSync)
	assert.True(t, a.LastSync.Equal(at))

	b, err := r.Get(domain.ScopeOrg, "b")
	require.NoError(t, err)
	assert.Nil(t, b.LastSync, "failed sources keep their previous lastSync")

	// A plain re-add keeps the recorded lastSync.
	require.NoError(t, r.Add(ctx, memSource(domain.ScopeTeam, "a")))
	a, _ = r.Get(domain.ScopeTeam, "a")
	require.NotNil(t, a.LastSync)
}

func TestLoadRestoresPersistedSet(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	require.NoError(t, newRegistry(store).Add(ctx, memSource(domain.ScopeTeam, "eng")))

	invalid := memSource(domain.ScopeOrg, "broken")
	invalid.Handle = nil
	store.saved = append(store.saved, invalid)

	r := newRegistry(store)
	require.NoError(t, r.Load(ctx))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "eng", list[0].Name)
}
