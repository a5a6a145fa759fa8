package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/originbots/tradebot/bot"
	"github.com/spf13/cobra"
)

func newCountCmd(a *app) *cobra.Command {
	var (
		display int
		once    bool
	)
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Recognize both offered quantities and publish them to the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			drv, err := a.driver(display)
			if err != nil {
				return err
			}
			b, err := bot.New(a.cfg, drv, bot.Options{NoJournal: true})
			if err != nil {
				return err
			}
			defer b.Close()

			c := b.Counter()
			if once {
				obs, err := c.Step(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "own=%d counterparty=%d version=%d\n", obs.Own, obs.Counterparty, obs.Version)
				return err
			}
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&display, "display", 0, "display index to capture")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and print the result")
	return cmd
}
