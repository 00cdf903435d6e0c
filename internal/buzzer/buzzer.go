// Package buzzer holds the per-room buzzer lock.
package buzzer

import (
	"sync/atomic"
	"time"
)

// Lock records who holds the buzzer and since when.
type Lock struct {
	HolderID string
	LockedAt time.Time
}

// State is either unlocked (no Lock) or locked by exactly one holder.
// The zero value is unlocked. A State must not be copied after first use.
type State struct {
	lock atomic.Pointer[Lock]
}

// TryLock moves the buzzer from unlocked to locked by holderID. It reports
// false, leaving the current holder untouched, if the buzzer was already locked.
func (s *State) TryLock(holderID string, at time.Time) bool {
	return s.lock.CompareAndSwap(nil, &Lock{HolderID: holderID, LockedAt: at})
}

// Reset unlocks the buzzer. Resetting an unlocked buzzer is a no-op.
func (s *State) Reset() {
	s.lock.Store(nil)
}

func (s *State) Locked() bool {
	return s.lock.Load() != nil
}

// Holder returns the current lock, if any.
func (s *State) Holder() (Lock, bool) {
	l := s.lock.Load()
	if l == nil {
		return Lock{}, false
	}
	return *l, true
}
