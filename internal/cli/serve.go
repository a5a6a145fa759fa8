package cli

import (
	"github.com/originbots/tradebot/journal"
	"github.com/originbots/tradebot/obsstore"
	"github.com/originbots/tradebot/statusserver"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics, observations and the journal over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts := statusserver.Options{Store: obsstore.NewFileStore(a.cfg.StatePath(a.cfg.Paths.Store))}
			j, err := journal.Open(a.cfg.StatePath(a.cfg.Paths.Journal))
			if err != nil {
				log.Warn().Err(err).Msg("[Serve] journal unavailable")
			} else {
				defer j.Close()
				opts.Journal = j
			}
			if addr == "" {
				addr = a.cfg.Status.Addr
			}
			return statusserver.Serve(ctx, addr, statusserver.New(opts))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override status.addr")
	return cmd
}
