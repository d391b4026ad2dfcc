package cli

import (
	"github.com/spf13/cobra"
)

func newEventsCommand(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <session>",
		Short: "Show the journal of what the engine did for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStores(ctx, opts, func(e *env) error {
				events, err := e.stores.Journal.BySession(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return output(cmd, opts, events, func(r *renderer) { r.events(events) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	return cmd
}
