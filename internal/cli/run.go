package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/originbots/tradebot/bot"
	"github.com/originbots/tradebot/negotiation"
	"github.com/originbots/tradebot/statusserver"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		pf        proposalFlags
		display   int
		maxRounds int
		noCounter bool
		serve     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Negotiate trades until interrupted",
		Long: "run proposes the selected trade in chat, stages items when a counterparty opens the window " +
			"and alternates direction after every staged round. The recognition loop runs alongside unless " +
			"--no-counter is given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := pf.proposal()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			drv, err := a.driver(display)
			if err != nil {
				return err
			}
			b, err := bot.New(a.cfg, drv, bot.Options{})
			if err != nil {
				return err
			}
			defer b.Close()

			pair, err := b.Resolve(ctx, base)
			if err != nil {
				return err
			}

			rounds := 0
			engine, err := b.Engine(pair, bot.EngineOptions{
				Narrate: func(msg string) { fmt.Fprintln(cmd.OutOrStdout(), msg) },
				OnRound: func(_ context.Context, r negotiation.Report) { rounds++ },
			})
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			if !noCounter {
				c := b.Counter()
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("[Run] recognition loop stopped")
					}
				}()
			}
			if serve {
				h := statusserver.New(statusserver.Options{Store: b.Store, Journal: journalReader(b)})
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := statusserver.Serve(ctx, a.cfg.Status.Addr, h); err != nil {
						log.Error().Err(err).Msg("[Run] status server stopped")
					}
				}()
			}

			err = engine.Run(ctx, func() bool { return maxRounds > 0 && rounds >= maxRounds })
			stop()
			wg.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rounds, next: %s\n", rounds, engine.Active().Message())
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().IntVar(&display, "display", 0, "display index to capture")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "stop after this many rounds (0 = unlimited)")
	cmd.Flags().BoolVar(&noCounter, "no-counter", false, "do not run the recognition loop in this process")
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the status endpoints on status.addr")
	return cmd
}

// journalReader avoids handing a typed nil to the status server.
func journalReader(b *bot.Bot) statusserver.JournalReader {
	if b.Journal == nil {
		return nil
	}
	return b.Journal
}
