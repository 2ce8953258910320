package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/registry"
	"github.com/MrSnakeDoc/snip/internal/sources"
)

type sourceListResponse struct {
	Count   int                   `json:"count"`
	Sources []domain.ScopedSource `json:"sources"`
}

func ListSources(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := d.Registry.List()
		writeJSON(w, http.StatusOK, sourceListResponse{Count: len(list), Sources: list})
	}
}

// AddSource registers a source, or rebinds the one with the same scope and
// name, then queues a sync.
func AddSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entry sources.Entry
		if err := decodeJSON(w, r, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		mapped, err := sources.Map(sources.File{Sources: []sources.Entry{entry}})
		if err != nil {
			fail(d, w, r, fmt.Errorf("%w: %v", registry.ErrInvalidSource, err))
			return
		}
		src := mapped[0]

		if err := d.Sync.Exclusive(func() error {
			return d.Registry.Add(r.Context(), src)
		}); err != nil {
			fail(d, w, r, err)
			return
		}

		d.Logger.Info("source registered",
			logger.String("source", src.Key().String()),
			logger.String("provider", string(src.Provider)))
		d.Sync.Trigger()
		writeJSON(w, http.StatusCreated, src)
	}
}

// RemoveSource drops {scope}/{name} from the registry and queues a sync.
func RemoveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := domain.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		name := chi.URLParam(r, "name")

		if err := d.Sync.Exclusive(func() error {
			return d.Registry.Remove(r.Context(), scope, name)
		}); err != nil {
			fail(d, w, r, err)
			return
		}

		d.Logger.Info("source removed", logger.String("source", scope.String()+"/"+name))
		d.Sync.Trigger()
		w.WriteHeader(http.StatusNoContent)
	}
}
