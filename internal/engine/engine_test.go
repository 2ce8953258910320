package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/index"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
	"github.com/MrSnakeDoc/snip/internal/provider/localfs"
	memprovider "github.com/MrSnakeDoc/snip/internal/provider/memory"
	"github.com/MrSnakeDoc/snip/internal/registry"
	memstore "github.com/MrSnakeDoc/snip/internal/store/memory"
)

var stamp = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type failingAdapter struct {
	err   error
	panic string
	block bool
}

func (f failingAdapter) Download(ctx context.Context, _ string) ([]domain.Snippet, error) {
	if f.panic != "" {
		panic(f.panic)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, f.err
}
func (f failingAdapter) Upload(context.Context, []domain.Snippet) error { return f.err }
func (f failingAdapter) Delete(context.Context, []string) error         { return f.err }
func (f failingAdapter) IsAuthenticated(context.Context) (bool, error)  { return false, f.err }

// adapters serves overrides by key and falls back to the factory.
type adapters struct {
	factory   *provider.Factory
	overrides map[domain.SourceKey]provider.Adapter
}

func (a *adapters) Get(src domain.ScopedSource) (provider.Binding, error) {
	if ad, ok := a.overrides[src.Key()]; ok {
		return provider.Bind(ad), nil
	}
	return a.factory.Build(src)
}

type fixture struct {
	engine   *Engine
	registry *registry.Registry
	backend  *memprovider.Backend
	store    *memstore.Store
	index    *index.Index
	adapters *adapters
}

func newFixture(t *testing.T, priority domain.ScopePriority) *fixture {
	t.Helper()
	log := logger.Nop()
	backend := memprovider.NewBackend()
	factory := provider.NewFactory()
	factory.Register(domain.ProviderMemory, memprovider.Constructor(backend))
	factory.Register(domain.ProviderLocalFS, localfs.Constructor(log))

	store := memstore.New()
	reg := registry.New(store, log)
	ad := &adapters{factory: factory, overrides: map[domain.SourceKey]provider.Adapter{}}
	idx := index.New()

	eng := New(Config{Priority: priority, FetchTimeout: 200 * time.Millisecond}, reg, ad, store, idx, nil, log)
	eng.now = func() time.Time { return stamp }

	return &fixture{engine: eng, registry: reg, backend: backend, store: store, index: idx, adapters: ad}
}

func (f *fixture) addMemorySource(t *testing.T, scope domain.Scope, name string, snippets ...domain.Snippet) domain.SourceKey {
	t.Helper()
	src := domain.ScopedSource{
		Scope:    scope,
		Provider: domain.ProviderMemory,
		Name:     name,
		Handle:   domain.MemoryHandle{Bucket: string(scope) + "-" + name},
	}
	require.NoError(t, f.registry.Add(context.Background(), src))
	f.backend.Seed(string(scope)+"-"+name, snippets)
	return src.Key()
}

func (f *fixture) addFailingSource(t *testing.T, scope domain.Scope, name string, ad failingAdapter) {
	t.Helper()
	key := f.addMemorySource(t, scope, name)
	f.adapters.overrides[key] = ad
}

func snip(id, trigger, content string) domain.Snippet {
	return domain.Snippet{ID: id, Trigger: trigger, Content: content, CreatedAt: stamp, UpdatedAt: stamp}
}

func byTrigger(merged []domain.MergedSnippet) map[string]domain.MergedSnippet {
	out := make(map[string]domain.MergedSnippet, len(merged))
	for _, m := range merged {
		out[m.Trigger] = m
	}
	return out
}

func TestZeroPriorityFallsBackToPersonalFirst(t *testing.T) {
	f := newFixture(t, domain.ScopePriority{})
	assert.Equal(t, domain.PersonalFirst.String(), f.engine.Priority().String())

	f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";sig", "Greetings."))
	f.addMemorySource(t, domain.ScopePersonal, "me", snip("p1", ";sig", "Hi!"))

	merged, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, domain.ScopePersonal, merged[0].Scope)
}

func TestPriorityDecidesCollisions(t *testing.T) {
	tests := []struct {
		name     string
		priority domain.ScopePriority
		want     string
		winner   domain.Scope
	}{
		{"personal first", domain.PersonalFirst, "Hi!", domain.ScopePersonal},
		{"org first", domain.OrgFirst, "Greetings.", domain.ScopeOrg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.priority)
			f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";hi", "Greetings."))
			f.addMemorySource(t, domain.ScopePersonal, "me", snip("p1", ";hi", "Hi!"))

			merged, err := f.engine.SyncAndMerge(context.Background())
			require.NoError(t, err)
			require.Len(t, merged, 1)
			assert.Equal(t, tt.want, merged[0].Content)
			assert.Equal(t, tt.winner, merged[0].Scope)

			got, ok := f.index.Lookup(";hi")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Content)
		})
	}
}

func TestMergeEqualPriorityFirstSeenWins(t *testing.T) {
	results := []SourceResult{
		{Source: domain.ScopedSource{Scope: domain.ScopeTeam, Name: "a"}, Snippets: []domain.Snippet{snip("1", ";x", "from a")}},
		{Source: domain.ScopedSource{Scope: domain.ScopeTeam, Name: "b"}, Snippets: []domain.Snippet{snip("2", ";x", "from b"), snip("3", ";y", "y")}},
	}
	merged := Merge(results, domain.PersonalFirst)
	require.Len(t, merged, 2)
	assert.Equal(t, "from a", merged[0].Content)
	assert.Equal(t, "a", merged[0].SourceName)
	assert.Equal(t, ";y", merged[1].Trigger)
}

func TestMergeKeepsFirstAppearanceOrder(t *testing.T) {
	results := []SourceResult{
		{Source: domain.ScopedSource{Scope: domain.ScopeOrg, Name: "org"}, Snippets: []domain.Snippet{snip("1", ";a", "org a"), snip("2", ";b", "org b")}},
		{Source: domain.ScopedSource{Scope: domain.ScopePersonal, Name: "me"}, Snippets: []domain.Snippet{snip("3", ";c", "c"), snip("4", ";a", "mine")}},
	}
	merged := Merge(results, domain.PersonalFirst)
	require.Len(t, merged, 3)
	assert.Equal(t, []string{";a", ";b", ";c"}, []string{merged[0].Trigger, merged[1].Trigger, merged[2].Trigger})
	assert.Equal(t, "mine", merged[0].Content)
}

func TestScopeComesFromSource(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	s := snip("1", ";x", "x")
	s.Scope = domain.ScopeOrg
	f.addMemorySource(t, domain.ScopePersonal, "me", s)

	merged, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, domain.ScopePersonal, merged[0].Scope)
}

func TestPartialFailure(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeTeam, "eng", snip("t1", ";team", "team"))
	f.addFailingSource(t, domain.ScopeDepartment, "ops", failingAdapter{err: errors.New("connection refused")})
	f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";org", "org"), snip("o2", ";team", "shadowed"))

	merged, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)

	got := byTrigger(merged)
	assert.Len(t, got, 2)
	assert.Equal(t, "team", got[";team"].Content)
	assert.Equal(t, "org", got[";org"].Content)

	report := f.engine.LastReport()
	assert.Equal(t, 1, report.Failed())
	assert.ErrorContains(t, report.SourceErrors(), "connection refused")
}

func TestPanickingAndHangingSourcesAreIsolated(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addFailingSource(t, domain.ScopeOrg, "boom", failingAdapter{panic: "adapter bug"})
	f.addFailingSource(t, domain.ScopeDepartment, "slow", failingAdapter{block: true})
	f.addMemorySource(t, domain.ScopePersonal, "me", snip("p1", ";ok", "ok"))

	start := time.Now()
	merged, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, merged, 1)
	assert.Equal(t, ";ok", merged[0].Trigger)
	assert.Equal(t, 2, f.engine.LastReport().Failed())
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";a", "A"), snip("o2", ";b", "B"))
	f.addMemorySource(t, domain.ScopePersonal, "me", snip("p1", ";b", "mine"))

	ctx := context.Background()
	first, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)
	firstRaw := f.store.RawSnippets()

	second, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstRaw, f.store.RawSnippets())
}

func TestSyncIsIdempotentForFilesWithoutTimestamps(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "team.json"),
		[]byte(`[{"id":"1","trigger":";hi","content":"Hi!"}]`), 0o644))
	require.NoError(t, f.registry.Add(context.Background(), domain.ScopedSource{
		Scope:    domain.ScopeTeam,
		Provider: domain.ProviderLocalFS,
		Name:     "files",
		Handle:   domain.LocalFSHandle{Dir: dir},
	}))

	ctx := context.Background()
	first, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)
	firstRaw := f.store.RawSnippets()

	time.Sleep(5 * time.Millisecond)

	second, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, string(firstRaw), string(f.store.RawSnippets()))
	assert.True(t, second[0].CreatedAt.IsZero())
}

func TestCachePersistFailureKeepsPreviousState(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";a", "A"))

	ctx := context.Background()
	_, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)
	before := f.store.RawSnippets()

	f.backend.Seed("org-acme", []domain.Snippet{snip("o9", ";z", "Z")})
	f.store.FailSetSnippets = errors.New("redis down")

	merged, err := f.engine.SyncAndMerge(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCachePersist))
	assert.Nil(t, merged)

	assert.Equal(t, before, f.store.RawSnippets())
	_, ok := f.index.Lookup(";a")
	assert.True(t, ok, "index must keep the previous set")
	_, ok = f.index.Lookup(";z")
	assert.False(t, ok)
}

func TestLastSyncOnlyForSuccessfulSources(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeTeam, "eng", snip("t1", ";t", "t"))
	f.addFailingSource(t, domain.ScopeOrg, "down", failingAdapter{err: errors.New("401")})

	_, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)

	ok, err := f.registry.Get(domain.ScopeTeam, "eng")
	require.NoError(t, err)
	require.NotNil(t, ok.LastSync)
	assert.True(t, ok.LastSync.Equal(stamp))

	down, err := f.registry.Get(domain.ScopeOrg, "down")
	require.NoError(t, err)
	assert.Nil(t, down.LastSync)
}

func TestMalformedFileContributesNothing(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"),
		[]byte(`[{"id":"g1","trigger":";good","content":"good"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"),
		[]byte(`[{"id":"b1","trigger":";bad"`), 0o644))
	require.NoError(t, f.registry.Add(context.Background(), domain.ScopedSource{
		Scope:    domain.ScopePersonal,
		Provider: domain.ProviderLocalFS,
		Name:     "local",
		Handle:   domain.LocalFSHandle{Dir: dir},
	}))

	merged, err := f.engine.SyncAndMerge(context.Background())
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, ";good", merged[0].Trigger)

	report := f.engine.LastReport()
	require.Len(t, report.Sources, 1)
	assert.NoError(t, report.Sources[0].Err)
	assert.Equal(t, 1, report.Sources[0].FailedFiles)
}

func TestAllTriggersIsPreMergeUnion(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeOrg, "acme", snip("o1", ";b", "b"), snip("o2", ";a", "a"))
	f.addMemorySource(t, domain.ScopePersonal, "me", snip("p1", ";a", "mine"), snip("p2", ";c", "c"))
	f.addFailingSource(t, domain.ScopeTeam, "down", failingAdapter{err: errors.New("offline")})

	assert.Equal(t, []string{";a", ";b", ";c"}, f.engine.AllTriggers(context.Background()))
}

func TestAddSnippetToScope(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.engine.newID = func() string { return "generated" }
	f.addMemorySource(t, domain.ScopeTeam, "first", snip("t1", ";t", "t"))
	f.addMemorySource(t, domain.ScopeTeam, "second")

	stored, err := f.engine.AddSnippetToScope(context.Background(), domain.Snippet{Trigger: ";new", Content: "fresh"}, domain.ScopeTeam)
	require.NoError(t, err)
	assert.Equal(t, "generated", stored.ID)
	assert.Equal(t, domain.ScopeTeam, stored.Scope)
	assert.True(t, stored.CreatedAt.Equal(stamp))

	assert.Len(t, f.backend.Snapshot("team-first"), 2)
	assert.Empty(t, f.backend.Snapshot("team-second"))

	got, ok := f.index.Lookup(";new")
	require.True(t, ok, "re-sync must publish the new snippet")
	assert.Equal(t, "fresh", got.Content)
}

func TestAddSnippetToScopeErrors(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeTeam, "eng")

	_, err := f.engine.AddSnippetToScope(context.Background(), domain.Snippet{Trigger: ";x"}, domain.ScopeOrg)
	assert.True(t, errors.Is(err, ErrNoSourceForScope))

	_, err = f.engine.AddSnippetToScope(context.Background(), domain.Snippet{Trigger: "  "}, domain.ScopeTeam)
	assert.True(t, errors.Is(err, ErrInvalidSnippet))
}

func TestDeleteSnippets(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeTeam, "eng", snip("s1", ";one", "1"), snip("s2", ";two", "2"))

	ctx := context.Background()
	_, err := f.engine.SyncAndMerge(ctx)
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteSnippets(ctx, domain.ScopeTeam, "eng", []string{"s1"}))

	left := f.backend.Snapshot("team-eng")
	require.Len(t, left, 1)
	assert.Equal(t, "s2", left[0].ID)

	_, ok := f.index.Lookup(";one")
	assert.False(t, ok)

	err = f.engine.DeleteSnippets(ctx, domain.ScopeTeam, "missing", []string{"s2"})
	assert.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestSyncStatusReportsZeroForFailures(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	f.addMemorySource(t, domain.ScopeTeam, "eng", snip("t1", ";a", "a"), snip("t2", ";b", "b"))
	f.addFailingSource(t, domain.ScopeOrg, "down", failingAdapter{err: errors.New("timeout")})

	status := f.engine.SyncStatus(context.Background())
	require.Len(t, status, 2)

	assert.Equal(t, "eng", status[0].Name)
	assert.Equal(t, 2, status[0].SnippetCount)
	assert.Empty(t, status[0].Error)

	assert.Equal(t, "down", status[1].Name)
	assert.Equal(t, 0, status[1].SnippetCount)
	assert.Equal(t, "timeout", status[1].Error)
}

func TestRestoreFromCache(t *testing.T) {
	f := newFixture(t, domain.PersonalFirst)
	ctx := context.Background()
	require.NoError(t, f.store.SetSnippets(ctx, []domain.Snippet{snip("c1", ";cached", "from cache")}))

	n, err := f.engine.RestoreFromCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok := f.index.Lookup(";cached")
	require.True(t, ok)
	assert.Equal(t, "from cache", got.Content)
}
