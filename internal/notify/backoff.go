package notify

import (
	"math/rand"
	"time"
)

// RetryDelay computes the wait before the next attempt: base * 2^attempts
// plus random jitter, capped at max. attempts is the number already made.
func RetryDelay(base time.Duration, attempts int, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}

	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}

	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	if d+jitter > max {
		return max
	}
	return d + jitter
}
