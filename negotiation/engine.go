package negotiation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/originbots/tradebot/activity"
	"github.com/originbots/tradebot/metrics"
	"github.com/originbots/tradebot/obsstore"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/originbots/tradebot/symbol"
)

// ErrControlMissing is returned when a UI control is not on screen.
var ErrControlMissing = errors.New("control not found")

// Notifier delivers a message to the operator out of band.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ActiveSaver persists the active direction so it survives a restart.
type ActiveSaver interface {
	SaveActive(ctx context.Context, active Proposal) error
}

// Report describes a finished round.
type Report struct {
	SessionID uuid.UUID
	Proposal  Proposal
	Result    Result
	Started   time.Time
	Finished  time.Time
}

// Deps are the collaborators of an Engine. Monitor, Notifier, Saver and the
// hooks are optional.
type Deps struct {
	Input    screen.Inputter
	Capture  screen.Capturer
	Locator  screen.Locator
	Reader   *symbol.Reader
	Store    obsstore.Reader
	Tracker  *activity.Tracker
	Monitor  *activity.Monitor
	Notifier Notifier
	Saver    ActiveSaver
	Catalog  Catalog

	// Sleep waits for d or until ctx ends. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now defaults to time.Now.
	Now func() time.Time
	// Jitter picks the wait after a proposal. Defaults to whole seconds drawn
	// uniformly from [JitterMin, JitterMax].
	Jitter func(min, max time.Duration) time.Duration

	// OnRound runs after every round.
	OnRound func(ctx context.Context, r Report)
	// Narrate receives short human readable progress lines.
	Narrate func(msg string)
}

// Engine runs negotiation rounds for one proposal pair.
type Engine struct {
	cfg  Config
	deps Deps

	watchdog *activity.Watchdog

	mu   sync.Mutex
	pair Pair
}

// NewEngine validates the proposal and fills defaults. Tracker is created
// when not supplied.
func NewEngine(cfg Config, pair Pair, deps Deps) (*Engine, error) {
	if err := pair.Base.Validate(); err != nil {
		return nil, err
	}
	if deps.Input == nil || deps.Capture == nil || deps.Locator == nil || deps.Store == nil {
		return nil, errors.New("negotiation: input, capture, locator and store are required")
	}
	if deps.Catalog == nil {
		deps.Catalog = DefaultCatalog()
	}
	for _, name := range []string{pair.Base.Offered, pair.Base.Wanted} {
		if _, err := deps.Catalog.Lookup(name); err != nil {
			return nil, err
		}
	}
	if deps.Reader == nil {
		deps.Reader = &symbol.Reader{}
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Jitter == nil {
		deps.Jitter = wholeSeconds
	}
	if deps.Tracker == nil {
		deps.Tracker = activity.NewTracker(deps.Now())
	}
	if deps.Monitor != nil && deps.Monitor.Tracker == nil {
		deps.Monitor.Tracker = deps.Tracker
	}
	if deps.Monitor != nil && deps.Monitor.Now == nil {
		deps.Monitor.Now = deps.Now
	}
	if cfg.PageSwapLimit <= 0 {
		cfg.PageSwapLimit = DefaultConfig().PageSwapLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	e := &Engine{cfg: cfg, deps: deps, pair: pair}
	e.watchdog = &activity.Watchdog{
		Tracker: deps.Tracker,
		Cancel:  activity.CancelFunc(e.Cancel),
		Now:     deps.Now,
		OnFire: func(idle time.Duration) {
			e.narrate(fmt.Sprintf("对方无操作 %s，已取消交易 / counterparty idle for %s, trade cancelled", idle.Round(time.Second), idle.Round(time.Second)))
		},
	}
	return e, nil
}

// SetWatchdogTimeout overrides the inactivity timeout.
func (e *Engine) SetWatchdogTimeout(d time.Duration) { e.watchdog.Timeout = d }

// Tracker returns the activity tracker shared by the monitor and watchdog.
func (e *Engine) Tracker() *activity.Tracker { return e.deps.Tracker }

// Active returns the direction that will be proposed next.
func (e *Engine) Active() Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pair.Active
}

// Run repeats rounds until ctx ends, stop reports true at the top of a round,
// or a round is fatal. After each round the activity grid is sampled and the
// watchdog checked.
func (e *Engine) Run(ctx context.Context, stop func() bool) error {
	if stop == nil {
		stop = func() bool { return false }
	}
	negLog.Info().
		Str("proposal", e.pair.Base.Message()).
		Str("active", e.Active().Message()).
		Dur("start_delay", e.cfg.StartDelay).
		Msg("[Negotiation] starting")
	if err := e.deps.Sleep(ctx, e.cfg.StartDelay); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stop() {
			negLog.Info().Msg("[Negotiation] stop requested")
			return nil
		}

		res := e.Round(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Outcome == Fatal {
			negLog.Error().
				Err(res.Err).
				Str("state", res.State.String()).
				Str("active", e.Active().Message()).
				Msg("[Negotiation] fatal error, stopping")
			return fmt.Errorf("negotiation %s: %w", res.State, res.Err)
		}

		if e.deps.Monitor != nil {
			if _, err := e.deps.Monitor.Sample(ctx); err != nil {
				negLog.Warn().Err(err).Msg("[Negotiation] activity sample failed")
			}
		}
		e.watchdog.Check(ctx)
	}
}

// Round runs one proposal from Idle back to Idle.
func (e *Engine) Round(ctx context.Context) (res Result) {
	started := e.deps.Now()
	active := e.Active()
	id := uuid.New()
	lg := negLog.With().Str("session", id.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			res = fatal(res.State, fmt.Errorf("panic: %v", r))
		}
		metrics.IncRound(res.Outcome.String())
		if res.Outcome == Completed {
			metrics.IncTradeCompleted()
		}
		ev := lg.Info()
		if res.Outcome != Completed && res.Outcome != Retry {
			ev = lg.Warn()
		}
		ev.Str("outcome", res.Outcome.String()).
			Str("state", res.State.String()).
			Str("reason", res.Reason).
			AnErr("error", res.Err).
			Msg("[Negotiation] round finished")
		if e.deps.OnRound != nil {
			e.deps.OnRound(ctx, Report{SessionID: id, Proposal: active, Result: res, Started: started, Finished: e.deps.Now()})
		}
	}()

	// Idle -> ProposalSent
	msg := active.Message()
	if err := e.deps.Input.TypeLine(ctx, msg); err != nil {
		if serr := e.deps.Sleep(ctx, e.cfg.PollInterval); serr != nil {
			return fatal(StateIdle, serr)
		}
		return Result{Outcome: Retry, State: StateIdle, Reason: "typing proposal failed", Err: err}
	}
	lg.Info().Str("message", msg).Msg("[Negotiation] proposal sent")
	e.narrate("发送报价 / proposed: " + msg)
	if err := e.deps.Sleep(ctx, e.deps.Jitter(e.cfg.JitterMin, e.cfg.JitterMax)); err != nil {
		return fatal(StateProposalSent, err)
	}

	// ProposalSent -> WindowOpen
	if _, ok := e.locate(ctx, ControlTradeWindow); !ok {
		return retry(StateProposalSent, "trade window not open")
	}
	lg.Info().Msg("[Negotiation] trade window open")

	// WindowOpen -> SlotCheck
	slot, err := e.deps.Capture.CaptureRect(ctx, e.cfg.BlankSlotRect)
	if err != nil {
		return Result{Outcome: Retry, State: StateWindowOpen, Reason: "capturing reference slot failed", Err: err}
	}
	if slot == nil || slot.Bounds().Size() != e.cfg.BlankSlotRect.Size() {
		lg.Warn().
			Stringer("slot", e.cfg.BlankSlotRect).
			Msg("[Negotiation] reference slot capture incomplete")
		return retry(StateSlotCheck, "reference slot outside frame")
	}
	if e.deps.Reader.IsBlank(slot) {
		return retry(StateSlotCheck, "counterparty slot is blank")
	}

	// SlotCheck -> Placing: stage the active direction, propose the dual next.
	e.swap(ctx)
	offered, err := e.deps.Catalog.Lookup(active.Offered)
	if err != nil {
		return fatal(StateSlotCheck, err)
	}
	wanted, err := e.deps.Catalog.Lookup(active.Wanted)
	if err != nil {
		return fatal(StateSlotCheck, err)
	}
	return e.complete(ctx, active, offered, wanted)
}

func (e *Engine) swap(ctx context.Context) {
	e.mu.Lock()
	e.pair.Swap()
	next := e.pair.Active
	e.mu.Unlock()

	if e.deps.Saver != nil {
		if err := e.deps.Saver.SaveActive(ctx, next); err != nil {
			negLog.Warn().Err(err).Msg("[Negotiation] failed to persist active proposal")
		}
	}
}

func (e *Engine) complete(ctx context.Context, p Proposal, offered, wanted Item) Result {
	if _, ok := e.locate(ctx, wanted.Window); !ok {
		return retry(StateSlotCheck, "counterparty item not in trade window")
	}

	// Placing: wait until the counterparty staged what we want.
	if res, ok := e.waitObservation(ctx, StatePlacing, "counterparty quantity", func(o obsstore.Observation) bool {
		return o.Counterparty >= p.WantedQty
	}); !ok {
		return res
	}

	if res, ok := e.place(ctx, p, offered); !ok {
		return res
	}

	// Placing -> AwaitingCounterpart
	if res, ok := e.waitObservation(ctx, StateAwaitingCounterpart, "own quantity", func(o obsstore.Observation) bool {
		return o.Own >= p.OfferedQty
	}); !ok {
		return res
	}

	// AwaitingCounterpart -> Resolving
	var accept image.Point
	for {
		pt, ok := e.locate(ctx, ControlAccept)
		if ok {
			accept = pt
			break
		}
		if res, ok := e.pollTick(ctx, StateAwaitingCounterpart); !ok {
			return res
		}
	}
	return e.resolve(ctx, p, accept)
}

// place stages OfferedQty items from the inventory, paging when none are
// visible. Every next-page attempt counts towards the page swap limit.
func (e *Engine) place(ctx context.Context, p Proposal, offered Item) (Result, bool) {
	remaining := p.OfferedQty
	swaps := 0
	for remaining > 0 {
		positions, err := e.deps.Locator.FindAll(ctx, offered.Inventory, e.cfg.InventoryRect, e.cfg.InventoryThreshold, e.cfg.MinDistance)
		if err != nil {
			if ctx.Err() != nil {
				return fatal(StatePlacing, ctx.Err()), false
			}
			negLog.Warn().Err(err).Str("icon", offered.Inventory).Msg("[Negotiation] inventory search failed")
			positions = nil
		}

		if len(positions) == 0 {
			if swaps >= e.cfg.PageSwapLimit {
				return e.abortPaging(ctx, p, swaps), false
			}
			swaps++
			metrics.IncPageSwap()
			if pt, ok := e.locate(ctx, ControlNextPage); ok {
				if err := e.deps.Input.Click(ctx, pt); err != nil {
					negLog.Warn().Err(err).Msg("[Negotiation] next page click failed")
				}
				negLog.Info().Int("swaps", swaps).Msg("[Negotiation] next page")
				if err := e.deps.Sleep(ctx, e.cfg.PageSettle); err != nil {
					return fatal(StatePlacing, err), false
				}
			} else {
				negLog.Info().Int("swaps", swaps).Msg("[Negotiation] next page button not found")
			}
			if res, ok := e.guard(ctx, StatePlacing); !ok {
				return res, false
			}
			continue
		}

		if len(positions) > remaining {
			positions = positions[:remaining]
		}
		for _, pos := range positions {
			if res, ok := e.stage(ctx, pos); !ok {
				return res, false
			}
			remaining--
			negLog.Info().Int("remaining", remaining).Msg("[Negotiation] item staged")
		}
	}
	e.narrate(fmt.Sprintf("已放入 %d 个 %s / staged %d %s", p.OfferedQty, p.Offered, p.OfferedQty, p.Offered))
	return Result{}, true
}

func (e *Engine) stage(ctx context.Context, pos image.Point) (Result, bool) {
	in := e.deps.Input
	settle := func() error { return e.deps.Sleep(ctx, e.cfg.ClickSettle) }

	if err := in.MoveTo(ctx, pos); err != nil {
		return Result{Outcome: Retry, State: StatePlacing, Reason: "move to item failed", Err: err}, false
	}
	if err := settle(); err != nil {
		return fatal(StatePlacing, err), false
	}
	if err := in.Click(ctx, pos); err != nil {
		return Result{Outcome: Retry, State: StatePlacing, Reason: "click item failed", Err: err}, false
	}
	if err := settle(); err != nil {
		return fatal(StatePlacing, err), false
	}
	box, ok := e.locate(ctx, ControlMyItemBox)
	if !ok {
		return retry(StatePlacing, "item box not found"), false
	}
	if err := in.MoveTo(ctx, box); err != nil {
		return Result{Outcome: Retry, State: StatePlacing, Reason: "move to item box failed", Err: err}, false
	}
	if err := settle(); err != nil {
		return fatal(StatePlacing, err), false
	}
	if err := in.ClickCurrent(ctx); err != nil {
		return Result{Outcome: Retry, State: StatePlacing, Reason: "click item box failed", Err: err}, false
	}
	if err := settle(); err != nil {
		return fatal(StatePlacing, err), false
	}
	return Result{}, true
}

func (e *Engine) abortPaging(ctx context.Context, p Proposal, swaps int) Result {
	msg := fmt.Sprintf("Failed to find %s in inventory after %d page swaps. Cancelling trade.", p.Offered, swaps)
	negLog.Error().Str("item", p.Offered).Int("swaps", swaps).Msg("[Negotiation] item not found in inventory")
	e.narrate(msg)
	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.Notify(ctx, msg); err != nil {
			negLog.Warn().Err(err).Msg("[Negotiation] notification failed")
		}
	}
	if err := e.Cancel(ctx); err != nil {
		negLog.Warn().Err(err).Msg("[Negotiation] cancel after page swaps failed")
	}
	return Result{Outcome: Aborted, State: StateCancelled, Reason: "page swap limit reached"}
}

func (e *Engine) resolve(ctx context.Context, p Proposal, accept image.Point) Result {
	if err := e.deps.Input.Click(ctx, accept); err != nil {
		return Result{Outcome: Retry, State: StateResolving, Reason: "click accept failed", Err: err}
	}
	negLog.Info().Dur("settle", e.cfg.SettleDelay).Msg("[Negotiation] accepted, settling")
	if err := e.deps.Sleep(ctx, e.cfg.SettleDelay); err != nil {
		return fatal(StateResolving, err)
	}

	obs, err := e.deps.Store.Load(ctx)
	if err != nil {
		negLog.Warn().Err(err).Msg("[Negotiation] settle check could not read observation")
	}
	if err != nil || obs.Counterparty < p.WantedQty {
		negLog.Warn().
			Int("counterparty", obs.Counterparty).
			Int("wanted", p.WantedQty).
			Msg("[Negotiation] counterparty quantity dropped, cancelling")
		if cerr := e.Cancel(ctx); cerr != nil {
			negLog.Warn().Err(cerr).Msg("[Negotiation] settle cancel failed")
		}
		return Result{Outcome: Cancelled, State: StateCancelled, Reason: "counterparty quantity below wanted after settle", Err: err}
	}
	e.narrate("交易完成 / trade completed: " + p.Message())
	return Result{Outcome: Completed, State: StateIdle}
}

// waitObservation polls the store until cond holds, checking the watchdog
// between polls. Read failures are logged and polled again.
func (e *Engine) waitObservation(ctx context.Context, st State, what string, cond func(obsstore.Observation) bool) (Result, bool) {
	for {
		obs, err := e.deps.Store.Load(ctx)
		switch {
		case err == nil && cond(obs):
			negLog.Info().Str("wait", what).Int("own", obs.Own).Int("counterparty", obs.Counterparty).Msg("[Negotiation] condition met")
			return Result{}, true
		case err != nil && !errors.Is(err, obsstore.ErrNoObservation):
			if ctx.Err() != nil {
				return fatal(st, ctx.Err()), false
			}
			negLog.Debug().Err(err).Str("wait", what).Msg("[Negotiation] observation read failed")
		}
		if res, ok := e.pollTick(ctx, st); !ok {
			return res, false
		}
	}
}

// pollTick sleeps one poll interval and gives the watchdog its turn.
func (e *Engine) pollTick(ctx context.Context, st State) (Result, bool) {
	if err := e.deps.Sleep(ctx, e.cfg.PollInterval); err != nil {
		return fatal(st, err), false
	}
	return e.guard(ctx, st)
}

// guard samples counterparty activity, then lets the watchdog decide.
func (e *Engine) guard(ctx context.Context, st State) (Result, bool) {
	if e.deps.Monitor != nil {
		if _, err := e.deps.Monitor.Sample(ctx); err != nil {
			negLog.Debug().Err(err).Msg("[Negotiation] activity sample failed")
		}
	}
	if e.watchdog.Check(ctx) {
		return Result{Outcome: Cancelled, State: StateCancelled, Reason: "watchdog cancelled the trade at " + st.String()}, false
	}
	return Result{}, true
}

// Cancel clicks the cancel control.
func (e *Engine) Cancel(ctx context.Context) error {
	pt, ok := e.locate(ctx, ControlCancel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrControlMissing, ControlCancel)
	}
	negLog.Info().Msg("[Negotiation] cancelling trade")
	return e.deps.Input.Click(ctx, pt)
}

func (e *Engine) locate(ctx context.Context, name string) (image.Point, bool) {
	pt, ok, err := e.deps.Locator.Locate(ctx, name, e.cfg.ControlThreshold)
	if err != nil {
		negLog.Warn().Err(err).Str("control", name).Msg("[Negotiation] locate failed")
		return image.Point{}, false
	}
	negLog.Debug().Str("control", name).Bool("found", ok).Msg("[Negotiation] locate")
	return pt, ok
}

func (e *Engine) narrate(msg string) {
	if e.deps.Narrate != nil {
		e.deps.Narrate(msg)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func wholeSeconds(lo, hi time.Duration) time.Duration {
	a, b := int64(lo/time.Second), int64(hi/time.Second)
	if b <= a {
		return lo
	}
	return time.Duration(a+rand.Int64N(b-a+1)) * time.Second
}
