package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"meeting-continuity/pkg/task"
)

func newTaskCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Read and update the task history",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "roots",
			Short: "List top-level tasks, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withStores(ctx, opts, func(e *env) error {
					roots, err := e.stores.Tasks.Roots(ctx)
					if err != nil {
						return err
					}
					return output(cmd, opts, roots, func(r *renderer) { r.tasks(roots) })
				})
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withStores(ctx, opts, func(e *env) error {
					t, err := e.stores.Tasks.Get(ctx, args[0])
					if err != nil {
						return err
					}
					return output(cmd, opts, t, func(r *renderer) { r.task(t) })
				})
			},
		},
		&cobra.Command{
			Use:   "history <id>",
			Short: "Show a task and every task linked beneath it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withStores(ctx, opts, func(e *env) error {
					history, err := e.stores.Tasks.Subtree(ctx, args[0])
					if err != nil {
						return err
					}
					if len(history) == 0 {
						return fmt.Errorf("task %s: %w", args[0], task.ErrNotFound)
					}
					return output(cmd, opts, history, func(r *renderer) { r.tasks(history) })
				})
			},
		},
		newProgressCommand(opts),
		&cobra.Command{
			Use:   "set-status <id> <status>",
			Short: `Set a task's status, e.g. "Completed" or "Blocked"`,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withStores(ctx, opts, func(e *env) error {
					t, err := e.stores.Tasks.Update(ctx, args[0], map[string]any{"status": args[1]})
					if err != nil {
						return err
					}
					return output(cmd, opts, t, func(r *renderer) { r.task(t) })
				})
			},
		},
		newBlockCommand(opts),
	)
	return cmd
}

func newProgressCommand(opts *options) *cobra.Command {
	var analyze bool
	cmd := &cobra.Command{
		Use:   "progress <id>",
		Short: "Show completion, velocity and projected finish for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStores(ctx, opts, func(e *env) error {
				engine, err := e.engine(analyze)
				if err != nil {
					return err
				}
				m, err := engine.Progress(ctx, args[0])
				if err != nil {
					return err
				}
				if m == nil {
					return fmt.Errorf("task %s: %w", args[0], task.ErrNotFound)
				}
				view := progressView{ProgressMetrics: m}
				if analyze {
					if view.AIAnalysis, err = engine.Analyze(ctx, m); err != nil {
						return err
					}
				}
				return output(cmd, opts, view, func(r *renderer) { r.progress(view) })
			})
		},
	}
	cmd.Flags().BoolVar(&analyze, "analyze", false, "also ask for a written status analysis")
	return cmd
}

func newBlockCommand(opts *options) *cobra.Command {
	var help bool
	cmd := &cobra.Command{
		Use:   "block <id> [entry...]",
		Short: "Replace a task's blockers; no entries clears them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			field := "blockers"
			if help {
				field = "help_needed"
			}
			var entries []task.Entry
			for _, name := range args[1:] {
				entries = append(entries, task.NewEntry(name))
			}
			return withStores(ctx, opts, func(e *env) error {
				t, err := e.stores.Tasks.Update(ctx, args[0], map[string]any{field: entries})
				if err != nil {
					return err
				}
				return output(cmd, opts, t, func(r *renderer) { r.task(t) })
			})
		},
	}
	cmd.Flags().BoolVar(&help, "help-needed", false, "set help-needed entries instead of blockers")
	return cmd
}
