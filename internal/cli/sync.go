package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/engine"
)

type sourceReportOut struct {
	Source      string `json:"source"`
	Snippets    int    `json:"snippets"`
	FailedFiles int    `json:"failedFiles,omitempty"`
	DurationMS  int64  `json:"durationMs"`
	Error       string `json:"error,omitempty"`
}

type syncOut struct {
	Merged     int               `json:"merged"`
	Failed     int               `json:"failed"`
	DurationMS int64             `json:"durationMs"`
	Sources    []sourceReportOut `json:"sources"`
}

func reportOut(rep engine.Report) syncOut {
	out := syncOut{
		Merged:     rep.Merged,
		Failed:     rep.Failed(),
		DurationMS: rep.Duration.Milliseconds(),
		Sources:    make([]sourceReportOut, 0, len(rep.Sources)),
	}
	for _, s := range rep.Sources {
		line := sourceReportOut{
			Source:      s.Key.String(),
			Snippets:    s.Snippets,
			FailedFiles: s.FailedFiles,
			DurationMS:  s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			line.Error = s.Err.Error()
		}
		out.Sources = append(out.Sources, line)
	}
	return out
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and cache the merged set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				_, syncErr := core.Engine.SyncAndMerge(ctx)
				out := reportOut(core.Engine.LastReport())

				w := cmd.OutOrStdout()
				if GetOptions(cmd).JSONOutput {
					if err := printJSON(w, out); err != nil {
						return err
					}
					return syncErr
				}

				tw := newTable(w)
				fmt.Fprintln(tw, "SOURCE\tSNIPPETS\tFAILED FILES\tDURATION\tERROR")
				for _, s := range out.Sources {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%dms\t%s\n", s.Source, s.Snippets, s.FailedFiles, s.DurationMS, s.Error)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%d snippets merged, %d of %d sources failed\n", out.Merged, out.Failed, len(out.Sources))
				return syncErr
			})
		},
	}
}
