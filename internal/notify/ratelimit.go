package notify

import (
	"sync"
	"time"
)

// window counts sends within a rolling interval. The counter resets when
// its interval has fully elapsed since the first send of the window, not
// on clock boundaries.
type window struct {
	limit    int
	duration time.Duration
	count    int
	start    time.Time
}

func (w *window) reset(now time.Time) {
	if w.count > 0 && now.Sub(w.start) >= w.duration {
		w.count = 0
		w.start = time.Time{}
	}
}

func (w *window) allow(now time.Time) bool {
	w.reset(now)
	return w.count < w.limit
}

func (w *window) record(now time.Time) {
	w.reset(now)
	if w.count == 0 {
		w.start = now
	}
	w.count++
}

// remaining is how long until the window frees up again.
func (w *window) remaining(now time.Time) time.Duration {
	if w.count == 0 {
		return 0
	}
	r := w.duration - now.Sub(w.start)
	if r < 0 {
		return 0
	}
	return r
}

// WindowStats is a point-in-time view of one rate-limit window.
type WindowStats struct {
	Count    int           `json:"count"`
	Limit    int           `json:"limit"`
	ResetsIn time.Duration `json:"resets_in_ms"`
}

func (w *window) stats(now time.Time) WindowStats {
	w.reset(now)
	s := WindowStats{Count: w.count, Limit: w.limit}
	if w.count >= w.limit {
		s.ResetsIn = w.remaining(now)
	}
	return s
}

// limiter nests three independent windows: a per-minute ceiling, a
// per-hour ceiling, and a short burst window that smooths spikes which
// would otherwise be legal under the per-minute ceiling. All three must
// pass for a send to proceed.
type limiter struct {
	mu     sync.Mutex
	minute window
	hour   window
	burst  window
}

func newLimiter(perMinute, perHour, burstSize int, burstCooldown time.Duration) *limiter {
	return &limiter{
		minute: window{limit: perMinute, duration: time.Minute},
		hour:   window{limit: perHour, duration: time.Hour},
		burst:  window{limit: burstSize, duration: burstCooldown},
	}
}

// allow reports whether a send may proceed now. When denied, wait is the
// remaining time of the longest-blocking window.
func (l *limiter) allow(now time.Time) (ok bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ok = true
	for _, w := range []*window{&l.minute, &l.hour, &l.burst} {
		if !w.allow(now) {
			ok = false
			if r := w.remaining(now); r > wait {
				wait = r
			}
		}
	}
	return ok, wait
}

func (l *limiter) record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minute.record(now)
	l.hour.record(now)
	l.burst.record(now)
}

func (l *limiter) snapshot(now time.Time) (minute, hour, burst WindowStats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.minute.stats(now), l.hour.stats(now), l.burst.stats(now)
}
