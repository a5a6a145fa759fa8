package tradeaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/originbots/tradebot/bot"
	"github.com/originbots/tradebot/config"
	"github.com/originbots/tradebot/maactl"
	"github.com/originbots/tradebot/negotiation"
	"github.com/originbots/tradebot/pkg/maafocus"
	"github.com/rs/zerolog/log"
)

const stopPollInterval = 500 * time.Millisecond

// TradeBotNegotiate runs negotiation rounds on the connected client.
type TradeBotNegotiate struct{}

// Run 实现 maa.CustomActionRunner 接口。
// Run implements maa.CustomActionRunner.
func (a *TradeBotNegotiate) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	var params negotiateParam
	if err := decodeParam(arg.CustomActionParam, &params); err != nil {
		log.Error().Err(err).Msg("[TradeBot]Failed to parse CustomActionParam")
		return false
	}

	b, err := open(ctx, params.Config)
	if err != nil {
		log.Error().Err(err).Msg("[TradeBot]Setup failed")
		return false
	}
	defer b.Close()

	runCtx, cancel := watchStop(ctx)
	defer cancel()

	pair, err := b.Resolve(runCtx, params.Proposal)
	if err != nil {
		log.Error().Err(err).Msg("[TradeBot]No proposal to negotiate")
		return false
	}

	say := maafocus.Narrator(ctx)
	rounds := 0
	engine, err := b.Engine(pair, bot.EngineOptions{
		Narrate: say,
		OnRound: func(_ context.Context, r negotiation.Report) {
			rounds++
			log.Info().
				Int("round", rounds).
				Str("outcome", r.Result.Outcome.String()).
				Str("proposal", r.Proposal.Message()).
				Msg("[TradeBot]Round finished")
			showOutcome(ctx, r)
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("[TradeBot]Engine setup failed")
		return false
	}

	say("交易开始 / trading " + pair.Active.Message())
	stop := func() bool { return params.MaxRounds > 0 && rounds >= params.MaxRounds }
	err = engine.Run(runCtx, stop)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("[TradeBot]Negotiation stopped")
		return false
	}
	log.Info().Int("rounds", rounds).Msg("[TradeBot]Negotiation finished")
	return true
}

// TradeBotCount keeps the observation store current from the trade window.
type TradeBotCount struct{}

// Run implements maa.CustomActionRunner.
func (a *TradeBotCount) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	var params countParam
	if err := decodeParam(arg.CustomActionParam, &params); err != nil {
		log.Error().Err(err).Msg("[TradeBot]Failed to parse CustomActionParam")
		return false
	}

	b, err := open(ctx, params.Config)
	if err != nil {
		log.Error().Err(err).Msg("[TradeBot]Setup failed")
		return false
	}
	defer b.Close()

	runCtx, cancel := watchStop(ctx)
	defer cancel()

	c := b.Counter()
	if params.Cycles <= 0 {
		if err := c.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("[TradeBot]Recognition stopped")
			return false
		}
		return true
	}

	for i := 0; i < params.Cycles; i++ {
		obs, err := c.Step(runCtx)
		if err != nil {
			log.Warn().Err(err).Int("cycle", i).Msg("[TradeBot]Recognition cycle failed")
		} else {
			log.Debug().Int("own", obs.Own).Int("counterparty", obs.Counterparty).Msg("[TradeBot]Counts")
		}
		select {
		case <-runCtx.Done():
			return true
		case <-time.After(c.Config.Period):
		}
	}
	return true
}

func open(ctx *maa.Context, path string) (*bot.Bot, error) {
	cfg, err := agentConfig(path)
	if err != nil {
		return nil, err
	}
	drv, err := maactl.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := maactl.NewLocator(ctx, drv)
	if err != nil {
		return nil, err
	}
	loc.ROIs = cfg.SearchROIs()
	return bot.New(cfg, drv, bot.Options{Locator: loc})
}

// agentConfig loads path with every region mapped onto the framework's
// screenshot size.
func agentConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ScaleTo(maactl.WorkSize); err != nil {
		return nil, err
	}
	log.Debug().
		Ints("blank_slot", cfg.Regions.BlankSlot[:]).
		Ints("inventory", cfg.Regions.Inventory[:]).
		Msg("[TradeBot]Regions scaled to screenshot size")
	return cfg, nil
}

// watchStop returns a context cancelled once the tasker is asked to stop.
func watchStop(ctx *maa.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(stopPollInterval)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				if stopping(ctx) {
					log.Info().Msg("[TradeBot]Task stopping")
					cancel()
					return
				}
			}
		}
	}()
	return runCtx, cancel
}

func stopping(ctx *maa.Context) bool {
	if ctx == nil {
		return true
	}
	t := ctx.GetTasker()
	if t == nil {
		return true
	}
	return t.Stopping() || !t.Running()
}

func showOutcome(ctx *maa.Context, r negotiation.Report) {
	var color string
	switch r.Result.Outcome {
	case negotiation.Completed:
		color = maafocus.ColorSuccess
	case negotiation.Aborted, negotiation.Cancelled, negotiation.Fatal:
		color = maafocus.ColorWarning
	default:
		return
	}
	text := fmt.Sprintf("%s: %s", r.Result.Outcome, r.Proposal.Message())
	if r.Result.Reason != "" {
		text += " (" + r.Result.Reason + ")"
	}
	if err := maafocus.Span(ctx, text, color); err != nil {
		log.Debug().Err(err).Msg("[TradeBot]Focus update failed")
	}
}
