package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// AllTriggers returns every trigger defined by any reachable source, before
// priorities are applied. Unreachable sources are skipped.
func (e *Engine) AllTriggers(ctx context.Context) []string {
	seen := make(map[string]struct{})
	for _, r := range e.fetchAll(ctx, e.sources.List()) {
		if r.Err != nil {
			continue
		}
		for _, s := range r.Snippets {
			if s.Trigger != "" {
				seen[s.Trigger] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// AddSnippetToScope appends snippet to the first source of scope and runs a
// full cycle. A snippet whose id already exists in that source replaces it.
// The stored snippet is returned even when the follow-up cycle fails.
func (e *Engine) AddSnippetToScope(ctx context.Context, snippet domain.Snippet, scope domain.Scope) (domain.Snippet, error) {
	if strings.TrimSpace(snippet.Trigger) == "" {
		return domain.Snippet{}, fmt.Errorf("%w: trigger is required", ErrInvalidSnippet)
	}
	targets := e.sources.ListScope(scope)
	if len(targets) == 0 {
		return domain.Snippet{}, fmt.Errorf("%w: %s", ErrNoSourceForScope, scope)
	}
	target := targets[0]

	b, err := e.adapters.Get(target)
	if err != nil {
		return domain.Snippet{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	existing, err := b.Adapter.Download(fetchCtx, "")
	if err != nil {
		return domain.Snippet{}, fmt.Errorf("failed to read %s: %w", target.Key(), err)
	}

	now := e.now().UTC()
	snippet = snippet.Clone()
	if snippet.ID == "" {
		snippet.ID = e.newID()
	}
	if snippet.CreatedAt.IsZero() {
		snippet.CreatedAt = now
	}
	snippet.UpdatedAt = now
	snippet.Scope = scope

	replaced := false
	for i := range existing {
		if existing[i].ID == snippet.ID {
			existing[i] = snippet
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, snippet)
	}

	if err := b.Adapter.Upload(fetchCtx, existing); err != nil {
		return domain.Snippet{}, fmt.Errorf("failed to write %s: %w", target.Key(), err)
	}
	e.log.Info("snippet stored",
		logger.String("source", target.Key().String()),
		logger.String("trigger", snippet.Trigger),
		logger.String("id", snippet.ID))

	if _, err := e.SyncAndMerge(ctx); err != nil {
		return snippet, err
	}
	return snippet, nil
}

// DeleteSnippets removes ids from one source and runs a full cycle.
func (e *Engine) DeleteSnippets(ctx context.Context, scope domain.Scope, name string, ids []string) error {
	src, err := e.sources.Get(scope, name)
	if err != nil {
		return err
	}
	b, err := e.adapters.Get(src)
	if err != nil {
		return err
	}

	delCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	if err := b.Adapter.Delete(delCtx, ids); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", src.Key(), err)
	}
	e.log.Info("snippets deleted",
		logger.String("source", src.Key().String()),
		logger.Strings("ids", ids))

	_, err = e.SyncAndMerge(ctx)
	return err
}

// SourceStatus is the live state of one source.
type SourceStatus struct {
	Scope        domain.Scope
	Name         string
	DisplayName  string
	Provider     domain.ProviderKind
	LastSync     *time.Time
	SnippetCount int
	Error        string
}

// SyncStatus counts the snippets of every source right now. A source that
// cannot be read reports zero and its error.
func (e *Engine) SyncStatus(ctx context.Context) []SourceStatus {
	results := e.fetchAll(ctx, e.sources.List())

	out := make([]SourceStatus, 0, len(results))
	for _, r := range results {
		st := SourceStatus{
			Scope:       r.Source.Scope,
			Name:        r.Source.Name,
			DisplayName: r.Source.Label(),
			Provider:    r.Source.Provider,
			LastSync:    r.Source.LastSync,
		}
		if r.Err != nil {
			st.Error = r.Err.Error()
		} else {
			st.SnippetCount = len(r.Snippets)
		}
		out = append(out, st)
	}
	return out
}
