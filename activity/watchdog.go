package activity

import (
	"context"
	"time"

	"github.com/originbots/tradebot/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the inactivity period after which a trade is cancelled.
const DefaultTimeout = 240 * time.Second

// Canceller invokes the trade window's cancel control.
type Canceller interface {
	Cancel(ctx context.Context) error
}

// CancelFunc adapts a function to Canceller.
type CancelFunc func(ctx context.Context) error

func (f CancelFunc) Cancel(ctx context.Context) error { return f(ctx) }

// Watchdog cancels the trade when the counterparty has been inactive for
// longer than Timeout.
type Watchdog struct {
	Tracker *Tracker
	Timeout time.Duration
	Cancel  Canceller
	// Now defaults to time.Now.
	Now func() time.Time
	// OnFire, if set, runs after every cancellation attempt.
	OnFire func(idle time.Duration)
}

func (w *Watchdog) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Check fires the cancellation when the tracker is inactive. The tracker is
// reset to now after firing whether or not the cancel control was found, so
// the next check cannot fire again immediately. It reports whether it fired.
func (w *Watchdog) Check(ctx context.Context) bool {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := w.now()
	idle := w.Tracker.Idle(now)
	if idle <= timeout {
		return false
	}

	log.Warn().
		Dur("idle", idle).
		Dur("timeout", timeout).
		Msg("[Watchdog] counterparty inactive, cancelling trade")
	if w.Cancel != nil {
		if err := w.Cancel.Cancel(ctx); err != nil {
			log.Warn().Err(err).Msg("[Watchdog] cancel failed")
		}
	}
	w.Tracker.Touch(now)
	metrics.IncWatchdogFire()
	if w.OnFire != nil {
		w.OnFire(idle)
	}
	return true
}
