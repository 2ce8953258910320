package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/engine"
)

type statusOut struct {
	Scope        string `json:"scope"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Provider     string `json:"provider"`
	LastSync     string `json:"lastSync,omitempty"`
	SnippetCount int    `json:"snippetCount"`
	Error        string `json:"error,omitempty"`
}

func statusLines(statuses []engine.SourceStatus) []statusOut {
	out := make([]statusOut, 0, len(statuses))
	for _, st := range statuses {
		line := statusOut{
			Scope:        string(st.Scope),
			Name:         st.Name,
			DisplayName:  st.DisplayName,
			Provider:     string(st.Provider),
			SnippetCount: st.SnippetCount,
			Error:        st.Error,
		}
		if st.LastSync != nil {
			line.LastSync = domain.FormatTimestamp(*st.LastSync)
		}
		out = append(out, line)
	}
	return out
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read every source now and report its snippet count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				lines := statusLines(core.Engine.SyncStatus(ctx))
				out := cmd.OutOrStdout()
				if GetOptions(cmd).JSONOutput {
					return printJSON(out, lines)
				}

				tw := newTable(out)
				fmt.Fprintln(tw, "SOURCE\tPROVIDER\tSNIPPETS\tLAST SYNC\tERROR")
				for _, l := range lines {
					last := l.LastSync
					if last == "" {
						last = "never"
					}
					fmt.Fprintf(tw, "%s/%s\t%s\t%d\t%s\t%s\n", l.Scope, l.Name, l.Provider, l.SnippetCount, last, l.Error)
				}
				return tw.Flush()
			})
		},
	}
}
