// Package cli implements the ctl operator commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"meeting-continuity/internal/app"
	"meeting-continuity/internal/config"
	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/llm"
)

// options are the global flags shared by every command.
type options struct {
	configPath string
	format     string
}

// NewRootCommand builds the ctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ctl",
		Short: "Inspect and maintain the meeting task history",
		Long: `ctl works directly against the continuity store: list the task history,
check progress on a task, link a batch of tasks for a meeting and read the journal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatText, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&opts.format, "format", "o", formatText, "output format: text, json or yaml")

	root.AddCommand(
		newInitCommand(opts),
		newStatusCommand(opts),
		newTaskCommand(opts),
		newSessionCommand(opts),
		newContinuityCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCommand().Execute()
}

// env is what a command runs against.
type env struct {
	cfg    *config.Config
	stores *app.Stores
}

// withStores loads the config, opens the stores and closes them after fn.
func withStores(ctx context.Context, opts *options, fn func(*env) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(&env{cfg: cfg, stores: stores})
}

// engine builds a continuity engine. Without withLLM it can only compute
// progress.
func (e *env) engine(withLLM bool) (*continuity.Engine, error) {
	var gen llm.Generator
	if withLLM {
		if err := e.cfg.Validate(); err != nil {
			return nil, err
		}
		var err error
		if gen, err = app.NewGenerator(e.cfg); err != nil {
			return nil, err
		}
	}
	return continuity.New(e.stores.Tasks, gen,
		continuity.WithJournal(e.stores.Journal),
		continuity.WithAnalysisConcurrency(e.cfg.Continuity.AnalysisConcurrency),
	), nil
}

func newInitCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), opts, func(e *env) error {
				fmt.Fprintf(cmd.OutOrStdout(), "tables ready (%s)\n", e.cfg.Store.Driver)
				return nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show row counts and journal integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStores(ctx, opts, func(e *env) error {
				tasks, err := e.stores.Tasks.Count(ctx)
				if err != nil {
					return err
				}
				events, err := e.stores.Journal.Count(ctx)
				if err != nil {
					return err
				}
				chain := "ok"
				if err := e.stores.Journal.VerifyChain(ctx); err != nil {
					chain = err.Error()
				}
				st := statusView{Driver: e.cfg.Store.Driver, Tasks: tasks, Events: events, Chain: chain}
				return output(cmd, opts, st, func(r *renderer) { r.status(st) })
			})
		},
	}
}

type statusView struct {
	Driver string `json:"driver"`
	Tasks  int    `json:"tasks"`
	Events int    `json:"events"`
	Chain  string `json:"journal_chain"`
}
