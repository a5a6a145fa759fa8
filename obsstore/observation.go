// Package obsstore holds the last observed slot quantities. It is the only
// channel between the recognition loop and the negotiation loop, which may
// live in different processes.
package obsstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoObservation is returned by Load before anything has been saved.
var ErrNoObservation = errors.New("no observation recorded")

// Observation is one recognition result. Version grows by one per Save so
// readers can tell a fresh record from one they already consumed.
type Observation struct {
	Version      uint64    `json:"version"`
	Own          int       `json:"own_quantity"`
	Counterparty int       `json:"counterparty_quantity"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o Observation) validate() error {
	if o.Own < 0 || o.Counterparty < 0 {
		return fmt.Errorf("negative quantity in observation v%d (own=%d counterparty=%d)", o.Version, o.Own, o.Counterparty)
	}
	return nil
}

// Reader loads the current observation.
type Reader interface {
	Load(ctx context.Context) (Observation, error)
}

// Writer overwrites the current observation.
type Writer interface {
	Save(ctx context.Context, own, counterparty int) (Observation, error)
}

// Store is both.
type Store interface {
	Reader
	Writer
}
