package localfs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	return New(domain.LocalFSHandle{Dir: dir}, logger.Nop()), dir
}

func ids(snippets []domain.Snippet) []string {
	out := make([]string, 0, len(snippets))
	for _, s := range snippets {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}

func TestBindResolvesFileDiscovery(t *testing.T) {
	a, _ := newAdapter(t)
	b := provider.Bind(a)
	assert.True(t, b.SupportsFiles())
}

func TestDownloadMixedFormatsSkipsMalformedFile(t *testing.T) {
	a, dir := newAdapter(t)
	writeFile(t, dir, "a.json", `[{"id":"j1","trigger":";json","content":"from json"}]`)
	writeFile(t, dir, "b.yaml", "- id: y1\n  trigger: \";yaml\"\n  content: from yaml\n")
	writeFile(t, dir, "nested/c.toml", "[[snippets]]\nid = \"t1\"\ntrigger = \";toml\"\ncontent = \"from toml\"\n")
	writeFile(t, dir, "broken.json", `[{"id":"x1","trigger":";x"`)
	writeFile(t, dir, "notes.txt", "ignored")

	snippets, err := a.Download(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "t1", "y1"}, ids(snippets))

	for _, s := range snippets {
		if s.ID == "t1" {
			assert.Equal(t, "nested", s.SourceFolder)
		}
	}
}

func TestDownloadFolder(t *testing.T) {
	a, dir := newAdapter(t)
	writeFile(t, dir, "root.json", `[{"id":"r","trigger":";r","content":"r"}]`)
	writeFile(t, dir, "team/t.json", `[{"id":"t","trigger":";t","content":"t"}]`)

	snippets, err := a.Download(context.Background(), "team")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, ids(snippets))

	_, err = a.Download(context.Background(), "../outside")
	assert.Error(t, err)
}

func TestDownloadMissingDirIsEmpty(t *testing.T) {
	a := New(domain.LocalFSHandle{Dir: filepath.Join(t.TempDir(), "missing")}, logger.Nop())
	snippets, err := a.Download(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestUploadKeepsSnippetsInTheirFiles(t *testing.T) {
	ctx := context.Background()
	a, dir := newAdapter(t)
	writeFile(t, dir, "team.yaml", "snippets:\n  - id: y1\n    trigger: \";a\"\n    content: A\n  - id: y2\n    trigger: \";b\"\n    content: B\n")

	current, err := a.Download(ctx, "")
	require.NoError(t, err)

	// Edit y1, drop y2, add n1.
	var next []domain.Snippet
	for _, s := range current {
		if s.ID == "y1" {
			s.Content = "A2"
			next = append(next, s)
		}
	}
	next = append(next, domain.Snippet{ID: "n1", Trigger: ";new", Content: "N", CreatedAt: time.Now(), UpdatedAt: time.Now()})

	require.NoError(t, a.Upload(ctx, next))

	refs, err := a.ListFiles(ctx, "")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	yamlOnly, err := a.DownloadFile(ctx, provider.FileRef{ID: "team.yaml", Name: "team.yaml"})
	require.NoError(t, err)
	require.Len(t, yamlOnly, 1)
	assert.Equal(t, "A2", yamlOnly[0].Content)

	managed, err := a.DownloadFile(ctx, a.ManagedRef())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids(managed))
}

func TestDeleteSnippets(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	now := time.Now()

	require.NoError(t, a.Upload(ctx, []domain.Snippet{
		{ID: "s1", Trigger: ";one", Content: "1", CreatedAt: now, UpdatedAt: now},
		{ID: "s2", Trigger: ";two", Content: "2", CreatedAt: now, UpdatedAt: now},
	}))

	require.NoError(t, a.Delete(ctx, []string{"s1"}))

	snippets, err := a.Download(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(snippets))
}

func TestIsAuthenticated(t *testing.T) {
	a, _ := newAdapter(t)
	ok, err := a.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	missing := New(domain.LocalFSHandle{Dir: filepath.Join(t.TempDir(), "nope")}, logger.Nop())
	ok, err = missing.IsAuthenticated(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32

	w, err := NewWatcher(200*time.Millisecond, func(string) { fired.Add(1) }, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Sync([]string{dir})
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		writeFile(t, dir, "burst.json", `[]`)
	}
	writeFile(t, dir, "ignored.txt", "x")

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}
