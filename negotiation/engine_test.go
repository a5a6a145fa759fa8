package negotiation

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"
)

func TestProposal_MessageAndDual(t *testing.T) {
	p := eggForChair
	if got, want := p.Message(), "SELL 3 DINO_EGG FOR 1 MAJESTIC_CHAIR"; got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
	if got, want := p.Dual().Message(), "SELL 1 MAJESTIC_CHAIR FOR 3 DINO_EGG"; got != want {
		t.Fatalf("Dual().Message() = %q, want %q", got, want)
	}
	if p.Dual().Dual() != p {
		t.Error("dual of dual differs from the original")
	}
}

func TestProposal_Validate(t *testing.T) {
	bad := []Proposal{
		{Offered: "", OfferedQty: 1, Wanted: "x", WantedQty: 1},
		{Offered: "a", OfferedQty: 0, Wanted: "x", WantedQty: 1},
		{Offered: "a", OfferedQty: 1, Wanted: "x", WantedQty: 100},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidProposal) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidProposal", p, err)
		}
	}
	if err := eggForChair.Validate(); err != nil {
		t.Errorf("valid proposal rejected: %v", err)
	}
}

func TestNewPair_RestoresOnlyKnownDirections(t *testing.T) {
	dual := eggForChair.Dual()
	if got := NewPair(eggForChair, &dual).Active; got != dual {
		t.Errorf("restored dual ignored: %v", got)
	}
	other := Proposal{Offered: "hc_sofa", OfferedQty: 1, Wanted: "cola_machine", WantedQty: 1}
	if got := NewPair(eggForChair, &other).Active; got != eggForChair {
		t.Errorf("unrelated restored proposal used: %v", got)
	}
}

func TestRound_HappyPath(t *testing.T) {
	h := newHarness(eggForChair)

	res := h.engine.Round(context.Background())
	if res.Outcome != Completed {
		t.Fatalf("round = %v, want completed", res)
	}
	if got := h.driver.typed(); len(got) != 1 || got[0] != "SELL 3 DINO_EGG FOR 1 MAJESTIC_CHAIR" {
		t.Fatalf("typed %v", got)
	}
	if n := h.driver.count("current", image.Point{}); n != 3 {
		t.Errorf("item box clicked %d times, want 3", n)
	}
	if n := h.driver.count("click", ptAccept); n != 1 {
		t.Errorf("accept clicked %d times, want 1", n)
	}
	if n := h.driver.count("click", ptCancel); n != 0 {
		t.Errorf("cancel clicked %d times, want 0", n)
	}
	if len(h.saver.saved) != 1 || h.saver.saved[0] != eggForChair.Dual() {
		t.Errorf("saved active = %v, want the dual", h.saver.saved)
	}
}

func TestRound_AlternatesDirections(t *testing.T) {
	h := newHarness(eggForChair)
	ctx := context.Background()

	if res := h.engine.Round(ctx); res.Outcome != Completed {
		t.Fatalf("first round = %v", res)
	}
	if got, want := h.engine.Active().Message(), "SELL 1 MAJESTIC_CHAIR FOR 3 DINO_EGG"; got != want {
		t.Fatalf("after one round active = %q, want %q", got, want)
	}

	if res := h.engine.Round(ctx); res.Outcome != Completed {
		t.Fatalf("second round = %v", res)
	}
	if got := h.engine.Active(); got != eggForChair {
		t.Fatalf("after two rounds active = %q, want the original", got.Message())
	}

	typed := h.driver.typed()
	if len(typed) != 2 || typed[1] != "SELL 1 MAJESTIC_CHAIR FOR 3 DINO_EGG" {
		t.Errorf("typed %v", typed)
	}
}

func TestRound_PageSwapLimit(t *testing.T) {
	h := newHarness(eggForChair)
	h.locator.items = map[string][]image.Point{}

	res := h.engine.Round(context.Background())
	if res.Outcome != Aborted {
		t.Fatalf("round = %v, want aborted", res)
	}
	if len(h.notifier.messages) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(h.notifier.messages))
	}
	if !strings.Contains(h.notifier.messages[0], "dino_egg") {
		t.Errorf("notification %q does not name the item", h.notifier.messages[0])
	}
	if n := h.driver.count("click", ptCancel); n != 1 {
		t.Errorf("cancel clicked %d times, want exactly 1", n)
	}
	if n := h.driver.count("click", ptNextPage); n != DefaultConfig().PageSwapLimit {
		t.Errorf("next page clicked %d times, want %d", n, DefaultConfig().PageSwapLimit)
	}
	if n := h.driver.count("click", ptAccept); n != 0 {
		t.Errorf("accept clicked after abort")
	}
}

func TestRound_PageSwapWithoutNextButtonStillBounded(t *testing.T) {
	h := newHarness(eggForChair)
	h.locator.items = map[string][]image.Point{}
	delete(h.locator.controls, ControlNextPage)

	res := h.engine.Round(context.Background())
	if res.Outcome != Aborted {
		t.Fatalf("round = %v, want aborted", res)
	}
	if h.locator.searches != DefaultConfig().PageSwapLimit+1 {
		t.Errorf("inventory searched %d times, want %d", h.locator.searches, DefaultConfig().PageSwapLimit+1)
	}
}

func TestRound_SettleCheckCancels(t *testing.T) {
	h := newHarness(eggForChair.Dual()) // wants 3 dino eggs
	h.driver.onClick = func(p image.Point) {
		if p == ptAccept {
			_, _ = h.store.Save(context.Background(), 3, 2)
		}
	}

	res := h.engine.Round(context.Background())
	if res.Outcome != Cancelled {
		t.Fatalf("round = %v, want cancelled", res)
	}
	if n := h.driver.count("click", ptCancel); n != 1 {
		t.Errorf("cancel clicked %d times, want 1", n)
	}
}

func TestRound_BlankSlotRetries(t *testing.T) {
	h := newHarness(eggForChair)
	h.driver.slot = grayFill(10)

	res := h.engine.Round(context.Background())
	if res.Outcome != Retry || res.State != StateSlotCheck {
		t.Fatalf("round = %v, want retry at slot_check", res)
	}
	if h.engine.Active() != eggForChair {
		t.Error("active direction swapped without a counterpart")
	}
	if n := h.driver.count("current", image.Point{}); n != 0 {
		t.Errorf("items staged on a blank slot")
	}
}

func TestRound_WindowMissingRetries(t *testing.T) {
	h := newHarness(eggForChair)
	delete(h.locator.controls, ControlTradeWindow)

	res := h.engine.Round(context.Background())
	if res.Outcome != Retry || res.State != StateProposalSent {
		t.Fatalf("round = %v, want retry at proposal_sent", res)
	}
}

func TestRound_MissingItemBoxRetries(t *testing.T) {
	h := newHarness(eggForChair)
	delete(h.locator.controls, ControlMyItemBox)

	res := h.engine.Round(context.Background())
	if res.Outcome != Retry || res.State != StatePlacing {
		t.Fatalf("round = %v, want retry at placing", res)
	}
}

func TestRound_WatchdogInterruptsWait(t *testing.T) {
	h := newHarness(eggForChair)
	_, _ = h.store.Save(context.Background(), 0, 0) // counterparty never stages

	res := h.engine.Round(context.Background())
	if res.Outcome != Cancelled || res.State != StateCancelled {
		t.Fatalf("round = %v, want cancelled by watchdog", res)
	}
	if n := h.driver.count("click", ptCancel); n != 1 {
		t.Errorf("cancel clicked %d times, want 1", n)
	}
	if !h.engine.Tracker().Last().Equal(h.clock.Now()) {
		t.Error("activity clock not reset after the watchdog fired")
	}
}

func TestRound_AcceptWaitIsWatchdogBounded(t *testing.T) {
	h := newHarness(eggForChair)
	delete(h.locator.controls, ControlAccept)
	h.engine.SetWatchdogTimeout(30 * time.Second)

	res := h.engine.Round(context.Background())
	if res.Outcome != Cancelled {
		t.Fatalf("round = %v, want cancelled", res)
	}
}

func TestRun_StopFlagCheckedBetweenRounds(t *testing.T) {
	h := newHarness(eggForChair)
	rounds := 0
	h.engine.deps.OnRound = func(context.Context, Report) { rounds++ }

	err := h.engine.Run(context.Background(), func() bool { return rounds >= 2 })
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if rounds != 2 {
		t.Errorf("rounds = %d, want 2", rounds)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	h := newHarness(eggForChair)
	ctx, cancel := context.WithCancel(context.Background())
	h.engine.deps.OnRound = func(context.Context, Report) { cancel() }

	if err := h.engine.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestNewEngine_UnknownItem(t *testing.T) {
	h := newHarness(eggForChair)
	_, err := NewEngine(DefaultConfig(), NewPair(Proposal{Offered: "rocket", OfferedQty: 1, Wanted: "dino_egg", WantedQty: 1}, nil), Deps{
		Input:   h.driver,
		Capture: h.driver,
		Locator: h.locator,
		Store:   h.store,
	})
	if err == nil {
		t.Fatal("unknown item accepted")
	}
}

func TestRound_EmptySlotCaptureRetries(t *testing.T) {
	for name, slot := range map[string]image.Image{
		"empty":   image.NewGray(image.Rectangle{}),
		"clipped": image.NewGray(image.Rect(0, 0, 20, 60)),
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(eggForChair)
			h.driver.slot = slot

			res := h.engine.Round(context.Background())
			if res.Outcome != Retry || res.State != StateSlotCheck {
				t.Fatalf("round = %v, want retry at slot_check", res)
			}
			if res.Reason != "reference slot outside frame" {
				t.Errorf("reason = %q", res.Reason)
			}
			if h.engine.Active() != eggForChair {
				t.Error("active direction swapped on an unreadable slot")
			}
			if len(h.saver.saved) != 0 {
				t.Errorf("direction persisted: %v", h.saver.saved)
			}
			if n := h.driver.count("current", image.Point{}); n != 0 {
				t.Errorf("items staged on an unreadable slot")
			}
		})
	}
}

func TestRound_TypeFailureWaitsBeforeRetry(t *testing.T) {
	h := newHarness(eggForChair)
	h.driver.typeErr = errors.New("input rejected")
	start := h.clock.Now()

	res := h.engine.Round(context.Background())
	if res.Outcome != Retry || res.State != StateIdle {
		t.Fatalf("round = %v, want retry at idle", res)
	}
	if waited := h.clock.Now().Sub(start); waited != DefaultConfig().PollInterval {
		t.Errorf("waited %v before retrying, want %v", waited, DefaultConfig().PollInterval)
	}
}

func TestRound_CounterpartyActivityKeepsWaitAlive(t *testing.T) {
	feed := &activityFeed{active: true}
	h := newHarness(eggForChair, withMonitor(feed))
	h.engine.SetWatchdogTimeout(30 * time.Second)
	_, _ = h.store.Save(context.Background(), 0, 0)
	start := h.clock.Now()
	feed.onSample = func(n int) {
		// the counterparty keeps adjusting for 90 polls before staging
		if n == 90 {
			_, _ = h.store.Save(context.Background(), 3, 1)
		}
	}

	res := h.engine.Round(context.Background())
	if res.Outcome != Completed {
		t.Fatalf("round = %v, want completed", res)
	}
	if n := h.driver.count("click", ptCancel); n != 0 {
		t.Errorf("cancel clicked %d times while the counterparty was active", n)
	}
	if feed.sampled() < 90 {
		t.Errorf("activity sampled %d times, want at least 90", feed.sampled())
	}
	if waited := h.clock.Now().Sub(start); waited <= 30*time.Second {
		t.Errorf("round took %v, expected the wait to outlast the watchdog timeout", waited)
	}
}

func TestRound_WatchdogDuringPagingCancels(t *testing.T) {
	feed := &activityFeed{}
	h := newHarness(eggForChair, withMonitor(feed))
	h.locator.items = map[string][]image.Point{}
	h.engine.SetWatchdogTimeout(30 * time.Second)

	res := h.engine.Round(context.Background())
	if res.Outcome != Cancelled || res.State != StateCancelled {
		t.Fatalf("round = %v, want cancelled by watchdog", res)
	}
	if n := h.driver.count("click", ptCancel); n != 1 {
		t.Errorf("cancel clicked %d times, want 1", n)
	}
	if n := h.driver.count("click", ptNextPage); n >= DefaultConfig().PageSwapLimit {
		t.Errorf("paged %d times, expected the watchdog to stop paging first", n)
	}
	if feed.sampled() == 0 {
		t.Error("activity not sampled before the watchdog check")
	}
	if len(h.notifier.messages) != 0 {
		t.Errorf("page swap notification sent: %v", h.notifier.messages)
	}
}

func TestRound_ActivityDuringPagingDefersWatchdog(t *testing.T) {
	feed := &activityFeed{active: true}
	h := newHarness(eggForChair, withMonitor(feed))
	h.locator.items = map[string][]image.Point{}
	h.engine.SetWatchdogTimeout(30 * time.Second)

	res := h.engine.Round(context.Background())
	if res.Outcome != Aborted {
		t.Fatalf("round = %v, want aborted after the page swap limit", res)
	}
	if n := h.driver.count("click", ptNextPage); n != DefaultConfig().PageSwapLimit {
		t.Errorf("next page clicked %d times, want %d", n, DefaultConfig().PageSwapLimit)
	}
	if feed.sampled() != DefaultConfig().PageSwapLimit {
		t.Errorf("activity sampled %d times, want once per page", feed.sampled())
	}
}
