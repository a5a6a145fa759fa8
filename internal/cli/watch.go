package cli

import (
	"fmt"
	"time"

	"github.com/originbots/tradebot/obsstore"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every new observation written to the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			store := obsstore.NewFileStore(a.cfg.StatePath(a.cfg.Paths.Store))
			var ch <-chan obsstore.Observation
			if poll > 0 {
				ch = obsstore.Subscribe(ctx, store, poll)
			} else {
				var err error
				if ch, err = store.Watch(ctx); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for obs := range ch {
				fmt.Fprintf(out, "%s v%d own=%d counterparty=%d\n",
					obs.UpdatedAt.Format(time.TimeOnly), obs.Version, obs.Own, obs.Counterparty)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 0, "poll at this interval instead of watching the file")
	return cmd
}
