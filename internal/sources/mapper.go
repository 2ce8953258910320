package sources

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

// Map converts seed entries to sources. Invalid entries are skipped and
// reported together in the returned error; valid ones are still returned.
func Map(file File) ([]domain.ScopedSource, error) {
	var out []domain.ScopedSource
	var errs error

	for i, e := range file.Sources {
		src, err := mapEntry(e)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sources[%d] %q: %w", i, e.Name, err))
			continue
		}
		out = append(out, src)
	}

	return out, errs
}

func mapEntry(e Entry) (domain.ScopedSource, error) {
	scope, err := domain.ParseScope(e.Scope)
	if err != nil {
		return domain.ScopedSource{}, err
	}

	kind := domain.ProviderKind(strings.ToLower(strings.TrimSpace(e.Provider)))
	raw := e.Handle
	if raw == nil {
		raw = map[string]any{}
	}
	handle, err := domain.DecodeHandle(kind, raw)
	if err != nil {
		return domain.ScopedSource{}, err
	}

	src := domain.ScopedSource{
		Scope:       scope,
		Provider:    kind,
		Name:        strings.TrimSpace(e.Name),
		DisplayName: strings.TrimSpace(e.DisplayName),
		Handle:      handle,
	}
	if err := src.Validate(); err != nil {
		return domain.ScopedSource{}, err
	}
	return src, nil
}
