package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/prefs"
	"github.com/spf13/cobra"
)

// NewPrefsCommand creates the prefs command.
func NewPrefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and change preferences",
		Long: `Show or change the preferences shared with the browser workbench.

Keys:
  ` + prefs.KeyLastModel + `      selected model id
  ` + prefs.KeyNotifications + `     true or false
  ` + prefs.KeyAutosave + `          true or false
  ` + prefs.KeyAnalytics + `         true or false`,
		Example: `  # Show everything
  pith prefs get

  # Turn off notifications
  pith prefs set pith-notifications false`,
	}

	cmd.AddCommand(newPrefsGetCommand())
	cmd.AddCommand(newPrefsSetCommand())

	return cmd
}

func completePrefKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return prefs.Keys(), cobra.ShellCompDirectiveNoFileComp
}

// prefValues reads every well-known preference with its default applied.
func prefValues(cmdCtx *CommandContext, cmd *cobra.Command) map[string]any {
	ctx := cmd.Context()
	st := cmdCtx.App.Prefs.Settings(ctx)
	return map[string]any{
		prefs.KeyLastModel:     cmdCtx.App.Prefs.String(ctx, prefs.KeyLastModel, ai.DefaultModel()),
		prefs.KeyNotifications: st.Notifications,
		prefs.KeyAutosave:      st.Autosave,
		prefs.KeyAnalytics:     st.Analytics,
	}
}

func newPrefsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "get [key]",
		Short:             "Show preferences",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePrefKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			values := prefValues(cmdCtx, cmd)
			r := cmdCtx.Renderer

			if len(args) == 1 {
				v, ok := values[args[0]]
				if !ok {
					return fmt.Errorf("unknown preference %q", args[0])
				}
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(v)
				}
				r.Println(fmt.Sprint(v))
				return nil
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(values)
			}
			r.Header(1, "Preferences")
			for _, key := range prefs.Keys() {
				r.KeyValue(key, fmt.Sprint(values[key]))
			}
			return nil
		},
	}
}

func newPrefsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             "Change a preference",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completePrefKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			if !prefs.IsKnown(key) {
				return fmt.Errorf("unknown preference %q", key)
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if key == prefs.KeyLastModel {
				if err := cmdCtx.App.AI.SetModel(ctx, raw); err != nil {
					return err
				}
			} else {
				v, err := strconv.ParseBool(raw)
				if err != nil {
					return fmt.Errorf("%s must be true or false", key)
				}
				if err := cmdCtx.App.Prefs.Set(ctx, key, v); err != nil {
					return err
				}
			}

			cmdCtx.Renderer.Success(fmt.Sprintf("%s = %s", key, raw))
			return nil
		},
	}
}
