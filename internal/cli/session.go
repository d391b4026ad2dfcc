package cli

import (
	"github.com/spf13/cobra"
)

func newSessionCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Read and label meeting sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStores(ctx, opts, func(e *env) error {
				sessions, err := e.stores.Sessions.List(ctx, limit)
				if err != nil {
					return err
				}
				return output(cmd, opts, sessions, func(r *renderer) { r.sessions(sessions) })
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")

	var name, parent string
	rename := &cobra.Command{
		Use:   "rename <id>",
		Short: "Set a session's meeting name and the meeting it follows up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStores(ctx, opts, func(e *env) error {
				sess, err := e.stores.Sessions.Rename(ctx, args[0], name, parent)
				if err != nil {
					return err
				}
				return output(cmd, opts, sess, func(r *renderer) { r.session(sess) })
			})
		},
	}
	rename.Flags().StringVar(&name, "name", "", "meeting name")
	rename.Flags().StringVar(&parent, "parent", "", "id of the earlier session this one follows up")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one session with its summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withStores(ctx, opts, func(e *env) error {
					sess, err := e.stores.Sessions.Get(ctx, args[0])
					if err != nil {
						return err
					}
					return output(cmd, opts, sess, func(r *renderer) { r.session(sess) })
				})
			},
		},
		rename,
	)
	return cmd
}
