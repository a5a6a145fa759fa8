package obsstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore keeps the observation in memory for loops sharing one process.
type MemStore struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Observation]
	now func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{now: time.Now} }

func (s *MemStore) Save(ctx context.Context, own, counterparty int) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var version uint64
	if prev := s.cur.Load(); prev != nil {
		version = prev.Version
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	obs := Observation{Version: version + 1, Own: own, Counterparty: counterparty, UpdatedAt: now().UTC()}
	if err := obs.validate(); err != nil {
		return Observation{}, err
	}
	s.cur.Store(&obs)
	return obs, nil
}

func (s *MemStore) Load(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	p := s.cur.Load()
	if p == nil {
		return Observation{}, ErrNoObservation
	}
	return *p, nil
}
