// Package bot assembles the recognition loop and the negotiation engine from
// a loaded configuration and a screen driver.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/originbots/tradebot/activity"
	"github.com/originbots/tradebot/config"
	"github.com/originbots/tradebot/counter"
	"github.com/originbots/tradebot/journal"
	"github.com/originbots/tradebot/negotiation"
	"github.com/originbots/tradebot/notify"
	"github.com/originbots/tradebot/obsstore"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/originbots/tradebot/selection"
	"github.com/originbots/tradebot/symbol"
	"github.com/rs/zerolog/log"
)

// ErrNoProposal is returned when neither the caller, the selection file nor
// the configuration names a proposal.
var ErrNoProposal = errors.New("no proposal selected")

// Bot holds the collaborators shared by the recognition loop and the engine.
type Bot struct {
	Config    *config.Config
	Driver    screen.Driver
	Locator   screen.Locator
	Symbols   *symbol.Catalog
	Reader    *symbol.Reader
	Store     *obsstore.FileStore
	Selection *selection.Store
	Notifier  negotiation.Notifier
	// Journal is nil when opening the database failed or was disabled.
	Journal *journal.Journal
}

// Options tweaks New.
type Options struct {
	// NoJournal skips opening the trade journal.
	NoJournal bool
	// Notifier overrides the Pushover notifier read from the environment.
	Notifier negotiation.Notifier
	// Locator replaces the template locator over the driver's captures.
	Locator screen.Locator
}

// New loads reference images and opens the state files named by cfg.
func New(cfg *config.Config, drv screen.Driver, opts Options) (*Bot, error) {
	if cfg == nil || drv == nil {
		return nil, errors.New("bot: config and driver are required")
	}
	symbols := symbol.LoadCatalog(cfg.Paths.ImageDir, cfg.Layout())
	if symbols.Mine.Len() == 0 || symbols.Theirs.Len() == 0 {
		log.Warn().
			Int("mine", symbols.Mine.Len()).
			Int("theirs", symbols.Theirs.Len()).
			Str("dir", cfg.Paths.ImageDir).
			Msg("[Bot] reference set incomplete, quantities will read as 0")
	}

	b := &Bot{
		Config:    cfg,
		Driver:    drv,
		Locator:   opts.Locator,
		Symbols:   symbols,
		Reader:    symbol.NewReader(symbols),
		Store:     obsstore.NewFileStore(cfg.StatePath(cfg.Paths.Store)),
		Selection: selection.NewStore(cfg.StatePath(cfg.Paths.Selection)),
		Notifier:  opts.Notifier,
	}

	if b.Locator == nil {
		l := screen.NewTemplateLocator(drv, cfg.Paths.ImageDir)
		l.ROIs = cfg.SearchROIs()
		b.Locator = l
	}

	if b.Notifier == nil {
		p, err := notify.FromEnv(cfg.Paths.EnvFile)
		if err != nil {
			log.Warn().Err(err).Msg("[Bot] pushover disabled")
			b.Notifier = notify.Nop{}
		} else {
			b.Notifier = p
		}
	}

	if !opts.NoJournal && cfg.Paths.Journal != "" {
		j, err := journal.Open(cfg.StatePath(cfg.Paths.Journal))
		if err != nil {
			log.Warn().Err(err).Msg("[Bot] trade journal disabled")
		} else {
			b.Journal = j
		}
	}
	return b, nil
}

// Close releases the journal.
func (b *Bot) Close() error {
	if b.Journal == nil {
		return nil
	}
	return b.Journal.Close()
}

// Counter builds the recognition loop writing to the observation store.
func (b *Bot) Counter() *counter.Counter {
	return &counter.Counter{
		Capture: b.Driver,
		Reader:  b.Reader,
		Catalog: b.Symbols,
		Store:   b.Store,
		Config:  b.Config.Counter(),
	}
}

// Resolve picks the proposal pair: an explicit base wins, then the selection
// file, then the configured proposal. An explicit base is written back to the
// selection file so the next start resumes from it.
func (b *Bot) Resolve(ctx context.Context, base *negotiation.Proposal) (negotiation.Pair, error) {
	saved, err := b.Selection.Load(ctx)
	if err != nil && !errors.Is(err, selection.ErrNotFound) {
		log.Warn().Err(err).Msg("[Bot] ignoring unreadable selection")
	}
	hasSaved := err == nil

	switch {
	case base != nil:
		if err := base.Validate(); err != nil {
			return negotiation.Pair{}, err
		}
		var active *negotiation.Proposal
		if hasSaved && saved.Base == *base {
			active = saved.Active
		}
		sel := selection.Selection{Base: *base, Active: active}
		if err := b.Selection.Save(ctx, sel); err != nil {
			log.Warn().Err(err).Msg("[Bot] selection not saved")
		}
		return sel.Pair(), nil
	case hasSaved:
		return saved.Pair(), nil
	case b.Config.Proposal != (negotiation.Proposal{}):
		return negotiation.NewPair(b.Config.Proposal, nil), nil
	}
	return negotiation.Pair{}, ErrNoProposal
}

// EngineOptions carries the per-run hooks.
type EngineOptions struct {
	Narrate func(msg string)
	OnRound func(ctx context.Context, r negotiation.Report)
}

// Engine builds a negotiation engine for pair. Rounds are journaled when the
// journal is open.
func (b *Bot) Engine(pair negotiation.Pair, opts EngineOptions) (*negotiation.Engine, error) {
	tracker := activity.NewTracker(time.Now())
	monitor := &activity.Monitor{
		Capturer: b.Driver,
		Reader:   b.Reader,
		Catalog:  b.Symbols,
		Grid:     b.Config.Grid(),
		Tracker:  tracker,
	}

	onRound := opts.OnRound
	if b.Journal != nil {
		hook := b.Journal.Hook()
		next := onRound
		onRound = func(ctx context.Context, r negotiation.Report) {
			hook(ctx, r)
			if next != nil {
				next(ctx, r)
			}
		}
	}

	e, err := negotiation.NewEngine(b.Config.Negotiation(), pair, negotiation.Deps{
		Input:    b.Driver,
		Capture:  b.Driver,
		Locator:  b.Locator,
		Reader:   b.Reader,
		Store:    b.Store,
		Tracker:  tracker,
		Monitor:  monitor,
		Notifier: b.Notifier,
		Saver:    b.Selection,
		Catalog:  b.Config.Catalog(),
		OnRound:  onRound,
		Narrate:  opts.Narrate,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	e.SetWatchdogTimeout(b.Config.Timing.WatchdogTimeout)
	return e, nil
}
