// Package session holds the per-user confirmation state machine: at most one
// pending candidate per user, resolved exactly once by confirm, cancel,
// supersede or expiry.
package session

import (
	"errors"
	"sync"
	"time"

	"grana/internal/core"
)

// ErrNothingPending means there is no live candidate for the user: nothing
// was classified, it was already resolved, or it expired. A late confirm or
// cancel lands here and is a no-op.
var ErrNothingPending = errors.New("nothing pending")

// DefaultTTL is how long a candidate waits for confirmation.
const DefaultTTL = 3 * time.Minute

type pendingItem struct {
	candidate core.Candidate
	expiresAt time.Time
}

// Store keeps pending candidates keyed by user. All state transitions happen
// under one short-lived mutex; no lock is ever held across I/O.
type Store struct {
	mu           sync.Mutex
	pending      map[int64]pendingItem
	ttl          time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	now func() time.Time // stubbed in tests
}

// NewStore creates a session store. A janitor goroutine sweeps expired
// candidates so abandoned sessions do not accumulate.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		pending:     make(map[int64]pendingItem),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	go s.startCleanup()
	return s
}

// Put stores a validated candidate for the user, superseding any prior
// pending one without requiring an explicit cancel. Returns true when an
// unresolved candidate was replaced.
func (s *Store) Put(userID int64, c core.Candidate) (superseded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prior, ok := s.pending[userID]
	s.pending[userID] = pendingItem{
		candidate: c,
		expiresAt: now.Add(s.ttl),
	}
	return ok && prior.expiresAt.After(now)
}

// Take resolves the user's pending candidate, removing it atomically. Both
// confirm and cancel go through Take, so two racing resolutions see exactly
// one winner; the loser gets ErrNothingPending. Expired candidates are
// treated as already gone, whichever of janitor or caller observes them
// first.
func (s *Store) Take(userID int64) (core.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.pending[userID]
	if !ok {
		return core.Candidate{}, ErrNothingPending
	}
	delete(s.pending, userID)
	if !item.expiresAt.After(s.now()) {
		return core.Candidate{}, ErrNothingPending
	}
	return item.candidate, nil
}

// Pending reports whether the user currently has a live candidate.
func (s *Store) Pending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.pending[userID]
	return ok && item.expiresAt.After(s.now())
}

func (s *Store) startCleanup() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, item := range s.pending {
		if !item.expiresAt.After(now) {
			delete(s.pending, userID)
		}
	}
}

// Stop shuts down the janitor goroutine.
func (s *Store) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}
