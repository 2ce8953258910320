package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/sources"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List, add and remove snippet sources",
	}
	cmd.AddCommand(newSourcesListCmd(), newSourcesAddCmd(), newSourcesRemoveCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources in merge order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, func(_ context.Context, core *app.Core) error {
				list := core.Registry.List()
				out := cmd.OutOrStdout()
				if GetOptions(cmd).JSONOutput {
					return printJSON(out, list)
				}

				tw := newTable(out)
				fmt.Fprintln(tw, "SCOPE\tNAME\tPROVIDER\tDISPLAY NAME\tLAST SYNC")
				for _, s := range list {
					last := "never"
					if s.LastSync != nil {
						last = domain.FormatTimestamp(*s.LastSync)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Scope, s.Name, s.Provider, s.Label(), last)
				}
				return tw.Flush()
			})
		},
	}
}

// parseHandle turns repeated key=value flags into a provider handle map.
func parseHandle(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --handle %q, want key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func newSourcesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <scope> <name>",
		Short: "Register a source, or rebind an existing one",
		Example: `  snip sources add team eng --provider localfs --handle dir=/srv/snippets/eng
  snip sources add org acme --provider s3 --handle bucket=acme --handle prefix=snippets/`,
		Args: cobra.ExactArgs(2),
	}
	cmd.Flags().String("provider", "", "Provider kind: localfs, s3, postgres or memory")
	cmd.Flags().String("display-name", "", "Human readable name")
	cmd.Flags().StringArray("handle", nil, "Provider handle field as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("provider")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		providerKind, _ := cmd.Flags().GetString("provider")
		displayName, _ := cmd.Flags().GetString("display-name")
		pairs, _ := cmd.Flags().GetStringArray("handle")
		handle, err := parseHandle(pairs)
		if err != nil {
			return err
		}

		mapped, err := sources.Map(sources.File{Sources: []sources.Entry{{
			Scope:       args[0],
			Provider:    providerKind,
			Name:        args[1],
			DisplayName: displayName,
			Handle:      handle,
		}}})
		if err != nil {
			return err
		}
		src := mapped[0]

		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Registry.Add(ctx, src); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", src.Key(), src.Provider)
			return nil
		})
	}
	return cmd
}

func newSourcesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <scope> <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a source from the registry",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := domain.ParseScope(args[0])
			if err != nil {
				return err
			}
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if err := core.Registry.Remove(ctx, scope, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s/%s\n", scope, args[1])
				return nil
			})
		},
	}
}
