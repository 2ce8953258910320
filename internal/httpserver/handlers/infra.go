package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool   `json:"ok"`
	SnippetsLoaded *int   `json:"snippets_loaded,omitempty"`
	SourcesFailed  *int   `json:"sources_failed,omitempty"`
	LastSync       string `json:"last_sync,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Error          string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

const neverSynced = "never"

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snippetCount := d.Index.Count()
		lastRebuild := d.Index.LastRebuild()
		lastRebuildStr := neverSynced
		if snippetCount > 0 && !lastRebuild.IsZero() {
			lastRebuildStr = lastRebuild.Format("2006-01-02 15:04:05")
		}

		report := d.Engine.LastReport()
		failed := report.Failed()
		syncStatus := componentStatus{
			OK:            report.Err == nil && failed == 0,
			SourcesFailed: &failed,
			LastSync:      neverSynced,
			Mode:          "idle",
		}
		if !report.StartedAt.IsZero() {
			syncStatus.LastSync = report.StartedAt.Format("2006-01-02 15:04:05")
		}
		if d.Sync != nil && d.Sync.Running() {
			syncStatus.Mode = "syncing"
		}
		if err := report.SourceErrors(); err != nil {
			syncStatus.Impact = "partial-merge"
			syncStatus.Error = err.Error()
		}
		if report.Err != nil {
			syncStatus.Impact = "cycle-discarded"
			syncStatus.Error = report.Err.Error()
		}

		components := map[string]componentStatus{
			"index": {
				OK:             snippetCount > 0,
				SnippetsLoaded: &snippetCount,
				LastSync:       lastRebuildStr,
			},
			"store": checkStore(r.Context(), d),
			"sync":  syncStatus,
			"resolver": {
				OK:   true,
				Mode: "index-longest-match",
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Nothing to expand
	if idx, exists := components["index"]; exists {
		if !idx.OK || (idx.SnippetsLoaded != nil && *idx.SnippetsLoaded == 0) {
			return "critical"
		}
	}

	// Serving, but from stale or partial data
	if store, exists := components["store"]; exists && !store.OK {
		return "degraded"
	}
	if sync, exists := components["sync"]; exists && !sync.OK {
		return "degraded"
	}

	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreKind,
			Impact: "cache-disabled",
			Error:  "store not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreKind,
			Impact: "sync-results-not-persisted",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:   true,
		Mode: d.StoreKind,
	}
}
