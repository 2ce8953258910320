package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/snip/internal/httpserver/mw"
)

func init() { Register(registerSources) }

func registerSources(r chi.Router, d deps.Deps) {
	r.Get("/api/sources", handlers.ListSources(d))

	guarded := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	guarded.Post("/api/sources", handlers.AddSource(d))
	guarded.Delete("/api/sources/{scope}/{name}", handlers.RemoveSource(d))
}
