package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/config"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the HTTP API",
		Long: `Run the sync loop and the HTTP API until interrupted.

The trigger index is warmed from the local cache, then every configured
source is synced on SNIP_SYNC_INTERVAL and whenever a local snippet file
changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			level := cfg.LogLevel
			if GetOptions(cmd).Verbose {
				level = "debug"
			}
			log := logger.New(level, cfg.PrettyLog)
			defer func() { _ = log.Sync() }()

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
