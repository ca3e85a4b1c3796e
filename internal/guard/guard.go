// Package guard implements a sliding-window attempt counter with lockout,
// keyed by an arbitrary string. It gates both guest-token validation and
// admin login, each with its own instance and thresholds.
package guard

import (
	"sync"
	"time"
)

type record struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

type Guard struct {
	mu      sync.Mutex
	records map[string]*record
	limit   int
	window  time.Duration
	lockout time.Duration
	now     func() time.Time
}

// Decision is the outcome of a Check. Callers branch on Allowed; Check
// itself never fails.
type Decision struct {
	Allowed     bool
	Remaining   int
	LockedUntil *time.Time
}

// RetryAfter returns how long the caller should wait, zero when allowed.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.LockedUntil == nil {
		return 0
	}
	remaining := d.LockedUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func New(limit int, window, lockout time.Duration) *Guard {
	return &Guard{
		records: make(map[string]*record),
		limit:   limit,
		window:  window,
		lockout: lockout,
		now:     time.Now,
	}
}

func (g *Guard) Check(key string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[key]
	if !ok {
		return Decision{Allowed: true, Remaining: g.limit}
	}

	now := g.now()

	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			until := rec.lockedUntil
			return Decision{Allowed: false, LockedUntil: &until}
		}
		// Lockout has expired; the key starts over.
		delete(g.records, key)
		return Decision{Allowed: true, Remaining: g.limit}
	}

	if now.Sub(rec.lastAttempt) > g.window {
		delete(g.records, key)
		return Decision{Allowed: true, Remaining: g.limit}
	}

	remaining := g.limit - rec.attempts
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

func (g *Guard) RecordFailure(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	rec, ok := g.records[key]
	if !ok || now.Sub(rec.lastAttempt) > g.window {
		rec = &record{}
		g.records[key] = rec
	}

	rec.attempts++
	rec.lastAttempt = now

	if rec.attempts >= g.limit {
		rec.lockedUntil = now.Add(g.lockout)
	}
}

// RecordSuccess clears all state for the key, not just the lockout.
func (g *Guard) RecordSuccess(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, key)
}

func (g *Guard) IsLocked(key string) bool {
	return !g.Check(key).Allowed
}

// Sweep drops records whose window and lockout have both elapsed. Run it
// periodically so abandoned keys do not accumulate.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, rec := range g.records {
		if !rec.lockedUntil.IsZero() && now.Before(rec.lockedUntil) {
			continue
		}
		if now.Sub(rec.lastAttempt) > g.window {
			delete(g.records, key)
		}
	}
}
