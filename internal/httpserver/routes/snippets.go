package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/snip/internal/httpserver/mw"
)

func init() { Register(registerSnippets) }

func registerSnippets(r chi.Router, d deps.Deps) {
	r.Get("/api/snippets", handlers.ListSnippets(d))
	r.Get("/api/snippets/lookup", handlers.GetSnippet(d))
	r.Get("/api/triggers", handlers.Triggers(d))
	r.Post("/api/expand", handlers.Expand(d))
	r.Get("/api/usage", handlers.Usage(d))

	guarded := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	guarded.Post("/api/scopes/{scope}/snippets", handlers.AddSnippet(d))
	guarded.Delete("/api/sources/{scope}/{name}/snippets", handlers.DeleteSnippets(d))
}
