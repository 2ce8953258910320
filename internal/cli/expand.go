package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/snip/internal/app"
	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/resolver"
)

// linePrompter asks for each missing variable on out and reads one line of
// in per answer. An empty line means no answer.
type linePrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{in: bufio.NewScanner(in), out: out}
}

func (p *linePrompter) Prompt(v domain.Variable) (string, bool) {
	label := v.Placeholder
	if label == "" {
		label = v.Name
	}
	if def, ok := v.DefaultValue(); ok {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.in.Scan() {
		return "", false
	}
	answer := strings.TrimSpace(p.in.Text())
	return answer, answer != ""
}

type expandOut struct {
	Trigger     string                `json:"trigger"`
	Source      string                `json:"source,omitempty"`
	Text        string                `json:"text"`
	Diagnostics []resolver.Diagnostic `json:"diagnostics,omitempty"`
	Unresolved  []string              `json:"unresolved,omitempty"`
}

func parseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, want name=value", p)
		}
		out[name] = value
	}
	return out, nil
}

func newExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <trigger>",
		Short: "Expand a trigger with its dependencies and variables",
		Long: `Expand a trigger against the cached merged set. When the cache is empty a
sync cycle runs first. Variables come from --var, then their defaults, then
an interactive prompt when --prompt is set.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringArray("var", nil, "Variable value as name=value (repeatable)")
	cmd.Flags().String("url", "", "URL reported by the {url} and {hostname} built-ins")
	cmd.Flags().Bool("prompt", false, "Prompt on stdin for variables nobody supplied")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("var")
		values, err := parseVars(pairs)
		if err != nil {
			return err
		}
		url, _ := cmd.Flags().GetString("url")
		prompt, _ := cmd.Flags().GetBool("prompt")

		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			n, err := core.Engine.RestoreFromCache(ctx)
			if err != nil || n == 0 {
				core.Logger.Debug("cache empty or unreadable, syncing", logger.Error(err))
				if _, err := core.Engine.SyncAndMerge(ctx); err != nil {
					return err
				}
			}

			snap := core.Index.Current()
			m, ok := snap.Lookup(args[0])
			if !ok {
				return fmt.Errorf("no snippet for trigger %q", args[0])
			}

			res := core.Resolver.WithEnv(resolver.Env{URL: url})
			if prompt {
				res = resolver.New(
					resolver.WithMaxDepth(core.Resolver.MaxDepth()),
					resolver.WithMaxExpansions(core.Resolver.MaxExpansions()),
					resolver.WithPrompter(newLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr())),
				).WithEnv(resolver.Env{URL: url})
			}
			result := res.ExpandWithVariables(m.Snippet, values, snap)

			if err := core.Store.IncrementUsage(ctx, m.Trigger); err != nil {
				core.Logger.Debug("failed to count usage", logger.Error(err))
			}

			out := cmd.OutOrStdout()
			if GetOptions(cmd).JSONOutput {
				return printJSON(out, expandOut{
					Trigger:     m.Trigger,
					Source:      m.SourceName,
					Text:        result.Text,
					Diagnostics: result.Diagnostics,
					Unresolved:  result.Unresolved,
				})
			}
			fmt.Fprintln(out, result.Text)
			for _, d := range result.Diagnostics {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s left as text (%s via %s)\n",
					d.Trigger, d.Kind, strings.Join(d.Path, " > "))
			}
			return nil
		})
	}
	return cmd
}
