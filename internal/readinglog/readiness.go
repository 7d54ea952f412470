package readinglog

import (
	"sync"
	"time"
)

// Readiness tracks whether the log table is usable. A server started with
// a failed schema step stays degraded until a later check succeeds.
type Readiness struct {
	mu        sync.RWMutex
	ready     bool
	lastErr   error
	checkedAt time.Time
}

// NewReadiness returns a tracker in the given initial state.
func NewReadiness(ready bool) *Readiness {
	return &Readiness{ready: ready}
}

// MarkReady records a successful schema check.
func (r *Readiness) MarkReady(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
	r.lastErr = nil
	r.checkedAt = at
}

// MarkDegraded records a failed schema check.
func (r *Readiness) MarkDegraded(at time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	r.lastErr = err
	r.checkedAt = at
}

// Ready reports whether the last check succeeded.
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// LastError returns the cause of the current degraded state, if any.
func (r *Readiness) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// CheckedAt returns when the state last changed; zero if never checked.
func (r *Readiness) CheckedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkedAt
}
