package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"meeting-continuity/pkg/task"
)

func newContinuityCommand(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "continuity <session>",
		Short: "Link a meeting's tasks into the history and print the continuity report",
		Long: `Reads task drafts as JSON, either a list of {"title","description"} objects
or an object with a "tasks" list, from --file or standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			drafts, err := readDrafts(in)
			if err != nil {
				return err
			}

			return withStores(ctx, opts, func(e *env) error {
				engine, err := e.engine(true)
				if err != nil {
					return err
				}
				if _, err := e.stores.Sessions.Ensure(ctx, args[0]); err != nil {
					return err
				}
				report, err := engine.Generate(ctx, args[0], drafts)
				if err != nil {
					return err
				}
				return output(cmd, opts, report, func(r *renderer) { r.report(report) })
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file with the task drafts ("-" or empty reads stdin)`)
	return cmd
}

// readDrafts accepts either a bare list of drafts or {"tasks": [...]}.
func readDrafts(r io.Reader) ([]task.Draft, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read drafts: %w", err)
	}
	var list []task.Draft
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Tasks []task.Draft `json:"tasks"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse drafts: %w", err)
	}
	return wrapped.Tasks, nil
}
