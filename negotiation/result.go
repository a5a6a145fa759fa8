package negotiation

import "fmt"

// State is a position in the negotiation.
type State int

const (
	StateIdle State = iota
	StateProposalSent
	StateWindowOpen
	StateSlotCheck
	StatePlacing
	StateAwaitingCounterpart
	StateResolving
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProposalSent:
		return "proposal_sent"
	case StateWindowOpen:
		return "window_open"
	case StateSlotCheck:
		return "slot_check"
	case StatePlacing:
		return "placing"
	case StateAwaitingCounterpart:
		return "awaiting_counterpart"
	case StateResolving:
		return "resolving"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome classifies how a round ended.
type Outcome int

const (
	// Completed means the trade was accepted and survived the settle check.
	Completed Outcome = iota
	// Retry means something expected was not on screen; start over.
	Retry
	// Aborted means a bounded retry ran out; the operator was notified.
	Aborted
	// Cancelled means the trade was cancelled by the watchdog or the settle check.
	Cancelled
	// Fatal stops the negotiation loop.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Retry:
		return "retry"
	case Aborted:
		return "aborted"
	case Cancelled:
		return "cancelled"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one round and the state it ended in.
type Result struct {
	Outcome Outcome
	State   State
	Reason  string
	Err     error
}

func (r Result) String() string {
	s := fmt.Sprintf("%s at %s", r.Outcome, r.State)
	if r.Reason != "" {
		s += ": " + r.Reason
	}
	if r.Err != nil {
		s += " (" + r.Err.Error() + ")"
	}
	return s
}

func retry(st State, reason string) Result {
	return Result{Outcome: Retry, State: st, Reason: reason}
}

func fatal(st State, err error) Result {
	return Result{Outcome: Fatal, State: st, Reason: "unrecoverable error", Err: err}
}
