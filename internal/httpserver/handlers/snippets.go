package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/resolver"
)

const usageTimeout = time.Second

type snippetView struct {
	domain.Record
	Source string `json:"source,omitempty"`
}

func viewOf(m domain.MergedSnippet) snippetView {
	return snippetView{Record: domain.ToRecord(m.Snippet), Source: m.SourceName}
}

type snippetListResponse struct {
	Count    int           `json:"count"`
	Snippets []snippetView `json:"snippets"`
}

// ListSnippets returns the merged set in merge order, optionally restricted
// to one scope.
func ListSnippets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter domain.Scope
		if raw := strings.TrimSpace(r.URL.Query().Get("scope")); raw != "" {
			scope, err := domain.ParseScope(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter = scope
		}

		all := d.Index.Current().All()
		out := make([]snippetView, 0, len(all))
		for _, m := range all {
			if filter != "" && m.Scope != filter {
				continue
			}
			out = append(out, viewOf(m))
		}
		writeJSON(w, http.StatusOK, snippetListResponse{Count: len(out), Snippets: out})
	}
}

// GetSnippet looks up ?trigger= in the merged set.
func GetSnippet(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trigger := r.URL.Query().Get("trigger")
		if strings.TrimSpace(trigger) == "" {
			writeError(w, http.StatusBadRequest, "trigger is required")
			return
		}
		m, ok := d.Index.Lookup(trigger)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no snippet for trigger %q", trigger))
			return
		}
		writeJSON(w, http.StatusOK, viewOf(m))
	}
}

type triggersResponse struct {
	Merged   bool     `json:"merged"`
	Triggers []string `json:"triggers"`
}

// Triggers lists the indexed triggers. With ?all=true it asks every source
// for the union of their triggers instead, before priorities apply.
func Triggers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("all") == "true" {
			writeJSON(w, http.StatusOK, triggersResponse{Merged: false, Triggers: d.Engine.AllTriggers(r.Context())})
			return
		}
		writeJSON(w, http.StatusOK, triggersResponse{Merged: true, Triggers: d.Index.Current().Triggers()})
	}
}

type expandRequest struct {
	Trigger   string            `json:"trigger"`
	Variables map[string]string `json:"variables,omitempty"`
	URL       string            `json:"url,omitempty"`
	Hostname  string            `json:"hostname,omitempty"`
}

type expandResponse struct {
	Trigger     string                `json:"trigger"`
	Source      string                `json:"source,omitempty"`
	Text        string                `json:"text"`
	Diagnostics []resolver.Diagnostic `json:"diagnostics,omitempty"`
	Unresolved  []string              `json:"unresolved,omitempty"`
}

// Expand resolves a trigger against the current snapshot. Usage is counted
// on a best effort basis.
func Expand(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req expandRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.Trigger) == "" {
			writeError(w, http.StatusBadRequest, "trigger is required")
			return
		}

		snap := d.Index.Current()
		m, ok := snap.Lookup(req.Trigger)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no snippet for trigger %q", req.Trigger))
			return
		}

		res := d.Resolver.
			WithEnv(resolver.Env{URL: req.URL, Hostname: req.Hostname}).
			ExpandWithVariables(m.Snippet, req.Variables, snap)

		for _, diag := range res.Diagnostics {
			d.Logger.Warn("expansion cut",
				logger.String("trigger", req.Trigger),
				logger.String("kind", string(diag.Kind)),
				logger.String("at", diag.Trigger),
				logger.Strings("path", diag.Path))
		}

		countUsage(r.Context(), d, m.Trigger)

		writeJSON(w, http.StatusOK, expandResponse{
			Trigger:     m.Trigger,
			Source:      m.SourceName,
			Text:        res.Text,
			Diagnostics: res.Diagnostics,
			Unresolved:  res.Unresolved,
		})
	}
}

func countUsage(ctx context.Context, d deps.Deps, trigger string) {
	if d.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, usageTimeout)
	defer cancel()
	if err := d.Store.IncrementUsage(ctx, trigger); err != nil {
		d.Logger.Debug("failed to count usage",
			logger.String("trigger", trigger),
			logger.Error(err))
	}
}

type addSnippetResponse struct {
	Snippet domain.Record `json:"snippet"`
	Warning string        `json:"warning,omitempty"`
}

// AddSnippet writes a snippet to the first source of {scope} and resyncs.
func AddSnippet(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := domain.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var rec domain.Record
		if err := decodeJSON(w, r, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		snippet, _ := domain.FromRecord(rec, d.Now())

		var stored domain.Snippet
		err = d.Sync.Exclusive(func() error {
			var addErr error
			stored, addErr = d.Engine.AddSnippetToScope(r.Context(), snippet, scope)
			return addErr
		})
		if err != nil && stored.ID == "" {
			fail(d, w, r, err)
			return
		}

		resp := addSnippetResponse{Snippet: domain.ToRecord(stored)}
		if err != nil {
			d.Logger.Warn("snippet stored but resync failed", logger.Error(err))
			resp.Warning = err.Error()
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

type deleteSnippetsRequest struct {
	IDs []string `json:"ids"`
}

type deleteSnippetsResponse struct {
	Deleted int `json:"deleted"`
}

// DeleteSnippets removes ids from the source {scope}/{name} and resyncs.
func DeleteSnippets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := domain.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		name := chi.URLParam(r, "name")

		var req deleteSnippetsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		if len(req.IDs) == 0 {
			writeError(w, http.StatusBadRequest, "ids is required")
			return
		}

		err = d.Sync.Exclusive(func() error {
			return d.Engine.DeleteSnippets(r.Context(), scope, name, req.IDs)
		})
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, deleteSnippetsResponse{Deleted: len(req.IDs)})
	}
}

type usageResponse struct {
	Usage map[string]int64 `json:"usage"`
}

// Usage returns the expansion counters per trigger.
func Usage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.Store.GetUsageStats(r.Context())
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, usageResponse{Usage: stats})
	}
}
