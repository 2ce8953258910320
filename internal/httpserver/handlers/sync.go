package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/snip/internal/engine"
	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

// TriggerSync queues a sync cycle. A second request while one is already
// queued gets 429.
func TriggerSync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Sync.Trigger() {
			d.Logger.Warn("sync already pending",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Sync already pending, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		d.Logger.Info("manual sync triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusAccepted)
		if _, err := w.Write([]byte("✅ Sync triggered successfully\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}

type sourceReportView struct {
	Source      string `json:"source"`
	Snippets    int    `json:"snippets"`
	FailedFiles int    `json:"failedFiles,omitempty"`
	DurationMS  int64  `json:"durationMs"`
	Error       string `json:"error,omitempty"`
}

type reportView struct {
	StartedAt  *time.Time         `json:"startedAt,omitempty"`
	DurationMS int64              `json:"durationMs"`
	Merged     int                `json:"merged"`
	Failed     int                `json:"failed"`
	Sources    []sourceReportView `json:"sources"`
	Error      string             `json:"error,omitempty"`
}

func viewOfReport(rep engine.Report) reportView {
	v := reportView{
		DurationMS: rep.Duration.Milliseconds(),
		Merged:     rep.Merged,
		Failed:     rep.Failed(),
		Sources:    make([]sourceReportView, 0, len(rep.Sources)),
	}
	if !rep.StartedAt.IsZero() {
		t := rep.StartedAt
		v.StartedAt = &t
	}
	if rep.Err != nil {
		v.Error = rep.Err.Error()
	}
	for _, s := range rep.Sources {
		sv := sourceReportView{
			Source:      s.Key.String(),
			Snippets:    s.Snippets,
			FailedFiles: s.FailedFiles,
			DurationMS:  s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			sv.Error = s.Err.Error()
		}
		v.Sources = append(v.Sources, sv)
	}
	return v
}

type sourceStatusView struct {
	Scope        string     `json:"scope"`
	Name         string     `json:"name"`
	DisplayName  string     `json:"displayName"`
	Provider     string     `json:"provider"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
	SnippetCount int        `json:"snippetCount"`
	Error        string     `json:"error,omitempty"`
}

type syncStatusResponse struct {
	Running    bool               `json:"running"`
	LastRun    *time.Time         `json:"lastRun,omitempty"`
	LastReport reportView         `json:"lastReport"`
	Sources    []sourceStatusView `json:"sources"`
}

// SyncStatus reads every source live, next to the outcome of the last
// cycle.
func SyncStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := d.Engine.SyncStatus(r.Context())
		out := make([]sourceStatusView, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, sourceStatusView{
				Scope:        string(st.Scope),
				Name:         st.Name,
				DisplayName:  st.DisplayName,
				Provider:     string(st.Provider),
				LastSync:     st.LastSync,
				SnippetCount: st.SnippetCount,
				Error:        st.Error,
			})
		}

		resp := syncStatusResponse{
			Running:    d.Sync.Running(),
			LastReport: viewOfReport(d.Engine.LastReport()),
			Sources:    out,
		}
		if last := d.Sync.LastRun(); !last.IsZero() {
			resp.LastRun = &last
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
