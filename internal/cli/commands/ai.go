package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/cli/output"
	"github.com/leapstack-labs/pith/internal/insight"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/spf13/cobra"
)

// NewAICommand creates the ai command.
func NewAICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Manage the local language model",
		Long: `Pick, load and chat with the language model that writes SQL for you.

Models are served by an OpenAI-compatible server configured under ai.base_url.
The selected model is remembered between runs. Loaded models are marked in
the model cache so later loads skip the download.`,
		Example: `  # See which models exist and which are cached
  pith ai models

  # Select and load a model
  pith ai use Phi-3.5-mini-instruct-q4f16_1-MLC
  pith ai load

  # Ask a question about your data
  pith ai chat "Which region sold the most last month?"

  # Delete every cached model
  pith ai purge`,
	}

	cmd.AddCommand(newAIModelsCommand())
	cmd.AddCommand(newAIUseCommand())
	cmd.AddCommand(newAILoadCommand())
	cmd.AddCommand(newAIChatCommand())
	cmd.AddCommand(newAIStatusCommand())
	cmd.AddCommand(newAIPurgeCommand())

	return cmd
}

type modelRow struct {
	ai.Descriptor
	Current bool `json:"current"`
	Cached  bool `json:"cached"`
}

func newAIModelsCommand() *cobra.Command {
	var cachedOnly bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"list"},
		Short:   "List available models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			mgr := cmdCtx.App.AI
			current := mgr.CurrentModel()
			rows := make([]modelRow, 0, len(ai.Models))
			for _, d := range ai.Models {
				row := modelRow{Descriptor: d, Current: d.ID == current, Cached: mgr.CheckCached(ctx, d.ID)}
				if cachedOnly && !row.Cached {
					continue
				}
				rows = append(rows, row)
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(rows)
			}
			if len(rows) == 0 {
				r.Muted("No cached models")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(r.Writer())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"", "id", "name", "size", "speed", "quality", "cached"})
			for _, row := range rows {
				marker := ""
				if row.Current {
					marker = "*"
				}
				t.AppendRow(table.Row{marker, row.ID, row.Name, row.Size, row.Speed, row.Quality, yesNo(row.Cached)})
			}
			if r.EffectiveMode() == output.ModeMarkdown {
				t.RenderMarkdown()
			} else {
				t.Render()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cachedOnly, "cached", false, "Only list models in the local cache")
	return cmd
}

func modelIDs() []string {
	ids := make([]string, len(ai.Models))
	for i, d := range ai.Models {
		ids[i] = d.ID
	}
	return ids
}

func completeModelIDs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return modelIDs(), cobra.ShellCompDirectiveNoFileComp
}

func newAIUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "use <model-id>",
		Short:             "Select the model to load",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeModelIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.App.AI.SetModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			d, _ := ai.Lookup(args[0])
			cmdCtx.Renderer.Success(fmt.Sprintf("Selected %s (%s)", d.Name, d.ID))
			return nil
		},
	}
}

// loadModel initializes the selected model, or id when set, reporting
// progress on a spinner.
func loadModel(cmd *cobra.Command, cmdCtx *CommandContext, id string) error {
	mgr := cmdCtx.App.AI
	target := id
	if target == "" {
		target = mgr.CurrentModel()
	}

	spinner := cmdCtx.Renderer.NewSpinner("Loading " + target + "...")
	spinner.Start()
	_, err := mgr.Init(cmd.Context(), func(p ai.Progress) {
		spinner.Update(p.Text)
		cmdCtx.Logger.Debug("load progress", "model_id", target, "progress", p.Value, "text", p.Text)
	}, id)
	if err != nil {
		spinner.Fail("Failed to load " + target)
		return err
	}
	spinner.Success("Model loaded: " + target)
	return nil
}

func newAILoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "load [model-id]",
		Short:             "Load a model",
		Long:              "Load the selected model, or the one given. The model server must already serve it.",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeModelIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return loadModel(cmd, cmdCtx, id)
		},
	}
}

func newAIChatCommand() *cobra.Command {
	var noRun bool
	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question about your data",
		Long: `Ask the model a question. Table schemas are sent along so the model can
write SQL for them. When the reply contains a SQL block it is run and the
rows are printed below the answer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := loadModel(cmd, cmdCtx, ""); err != nil {
				return err
			}

			r := cmdCtx.Renderer
			streamed := 0
			stream := r.EffectiveMode() == output.ModeText
			msg, err := cmdCtx.App.Insight.Ask(cmd.Context(), strings.Join(args, " "), func(m insight.Message) {
				if !stream || len(m.Content) <= streamed {
					return
				}
				_, _ = fmt.Fprint(r.Writer(), m.Content[streamed:])
				streamed = len(m.Content)
			})
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(msg)
			}
			if stream {
				r.Println()
			} else {
				r.Println(msg.Content)
			}
			if msg.SQL == "" || noRun {
				return nil
			}
			r.Println()
			format := FormatTable
			if r.EffectiveMode() == output.ModeMarkdown {
				format = FormatMarkdown
			}
			return renderResults(r.Writer(), &query.Result{Rows: msg.Data, Columns: msg.Columns, Elapsed: msg.Elapsed}, format, cmdCtx.Cfg.Database.DefaultLimit)
		},
	}
	cmd.Flags().BoolVar(&noRun, "no-results", false, "Do not print the rows of the executed SQL")
	return cmd
}

func newAIStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the selected model and cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			mgr := cmdCtx.App.AI
			st := mgr.Status()
			cached := mgr.CheckCached(cmd.Context(), "")

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{"status": st, "current": mgr.CurrentModel(), "cached": cached})
			}
			r.Header(1, "Model")
			r.KeyValue("Selected", mgr.CurrentModel())
			r.KeyValue("State", string(st.State))
			r.KeyValue("Cached", yesNo(cached))
			r.KeyValue("Server", cmdCtx.Cfg.AI.BaseURL)
			return nil
		},
	}
}

func newAIPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every cached model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cmdCtx.App.AI.Purge(cmd.Context())
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(res)
			}
			if res.Count == 0 {
				r.Muted("No cached models to delete")
				return nil
			}
			r.Success(fmt.Sprintf("Deleted %d cached model(s): %s", res.Count, strings.Join(res.Models, ", ")))
			return nil
		},
	}
}
