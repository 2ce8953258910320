// Package cli wires the snip commands: the long-running server and the
// one-shot commands that drive the same sync stack from a terminal.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/config"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/version"
)

// CommandOptions holds the flags shared by every command.
type CommandOptions struct {
	Verbose    bool
	JSONOutput bool
}

// NewRootCmd builds the snip command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snip",
		Short:         "Sync, merge and expand text snippets from many sources",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf(`{{.Name}} {{.Version}}
  Commit:    %s
  Built:     %s
  Go:        %s
`, version.Commit, version.BuildDate, version.GoVersion))

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newExpandCmd(),
		newSourcesCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

// GetOptions extracts the shared flags of cmd.
func GetOptions(cmd *cobra.Command) CommandOptions {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return CommandOptions{Verbose: verbose, JSONOutput: jsonOutput}
}

// GetLogger returns a silent logger for one-shot commands unless --verbose
// is set, so only the result reaches stdout.
func GetLogger(cmd *cobra.Command, cfg *config.Config) logger.Logger {
	if GetOptions(cmd).Verbose {
		return logger.New("debug", cfg.PrettyLog)
	}
	return logger.Nop()
}

// withCore loads the configuration, builds the core and hands it to fn.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	cfg := config.Load()
	log := GetLogger(cmd, cfg)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	return fn(ctx, core)
}
