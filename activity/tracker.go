// Package activity tracks whether the counterparty is still interacting with
// the trade window and cancels the trade once they have gone quiet.
package activity

import (
	"sync"
	"time"

	"github.com/originbots/tradebot/metrics"
)

// CounterpartySlots is how many leading slots of a sample belong to the
// counterparty. Only those count as activity.
const CounterpartySlots = 6

// Tracker holds the time of the last observed counterparty activity. One
// Tracker is owned by a negotiation loop and shared with its monitor and
// watchdog.
type Tracker struct {
	mu   sync.Mutex
	last time.Time
}

// NewTracker starts the clock at now.
func NewTracker(now time.Time) *Tracker {
	t := &Tracker{}
	t.Touch(now)
	return t
}

// Last returns the last activity time.
func (t *Tracker) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Touch sets the last activity time to now.
func (t *Tracker) Touch(now time.Time) {
	t.mu.Lock()
	t.last = now
	t.mu.Unlock()
	metrics.SetLastActivity(float64(now.UnixNano()) / 1e9)
}

// Observe resets the clock when any of the counterparty's slots in counts is
// non-zero. The operator's own slots never do.
func (t *Tracker) Observe(counts []int, now time.Time) bool {
	n := min(len(counts), CounterpartySlots)
	for _, c := range counts[:n] {
		if c > 0 {
			t.Touch(now)
			return true
		}
	}
	return false
}

// Idle returns how long the counterparty has been quiet.
func (t *Tracker) Idle(now time.Time) time.Duration {
	return now.Sub(t.Last())
}

// IsInactive reports whether the quiet period strictly exceeds timeout.
func (t *Tracker) IsInactive(now time.Time, timeout time.Duration) bool {
	return t.Idle(now) > timeout
}
