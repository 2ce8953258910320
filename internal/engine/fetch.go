package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/events"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
)

// SourceResult is what one source contributed to a cycle.
type SourceResult struct {
	Source      domain.ScopedSource
	Snippets    []domain.Snippet
	FailedFiles int
	Duration    time.Duration
	Err         error
}

// fetchAll downloads every source at once and returns the results in the
// order of sources.
func (e *Engine) fetchAll(ctx context.Context, sources []domain.ScopedSource) []SourceResult {
	if len(sources) == 0 {
		return nil
	}
	mapper := iter.Mapper[domain.ScopedSource, SourceResult]{MaxGoroutines: len(sources)}
	return mapper.Map(sources, func(src *domain.ScopedSource) SourceResult {
		return e.fetchOne(ctx, *src)
	})
}

func (e *Engine) fetchOne(ctx context.Context, src domain.ScopedSource) (res SourceResult) {
	res.Source = src
	start := time.Now()
	log := e.log.With(
		logger.String("source", src.Key().String()),
		logger.String("provider", string(src.Provider)))

	defer func() {
		if r := recover(); r != nil {
			res.Snippets = nil
			res.Err = fmt.Errorf("adapter panic: %v", r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Warn("source fetch failed", logger.Error(res.Err), logger.Duration("duration", res.Duration))
			e.events.Publish(events.Event{Kind: events.SourceFailed, Source: src.Key().String(), Message: res.Err.Error()})
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	b, err := e.adapters.Get(src)
	if err != nil {
		res.Err = err
		return res
	}

	if !b.SupportsFiles() {
		res.Snippets, res.Err = b.Adapter.Download(ctx, "")
		if res.Err != nil {
			res.Snippets = nil
		}
		return res
	}

	files, err := provider.DownloadFiles(ctx, b.Files, "")
	if err != nil {
		res.Err = err
		return res
	}
	for _, f := range files {
		if f.Err != nil {
			res.FailedFiles++
			log.Warn("skipping unreadable snippet file",
				logger.String("file", f.Ref.ID),
				logger.Error(f.Err))
			continue
		}
		res.Snippets = append(res.Snippets, f.Snippets...)
	}
	return res
}
