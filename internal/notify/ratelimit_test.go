package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowResetsAfterElapsing(t *testing.T) {
	w := window{limit: 2, duration: time.Minute}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	require.True(t, w.allow(base))
	w.record(base)
	w.record(base.Add(10 * time.Second))
	assert.False(t, w.allow(base.Add(20*time.Second)))

	// The window starts at the first send, not on a clock boundary.
	assert.False(t, w.allow(base.Add(59*time.Second)))
	assert.True(t, w.allow(base.Add(61*time.Second)))
}

func TestWindowRemaining(t *testing.T) {
	w := window{limit: 1, duration: time.Minute}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), w.remaining(base))
	w.record(base)
	assert.Equal(t, 40*time.Second, w.remaining(base.Add(20*time.Second)))
}

func TestLimiterAllWindowsMustPass(t *testing.T) {
	l := newLimiter(10, 100, 2, 30*time.Second)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	l.record(base)
	l.record(base)

	// Well under the minute and hour ceilings, but the burst window blocks.
	ok, wait := l.allow(base.Add(5 * time.Second))
	require.False(t, ok)
	assert.Equal(t, 25*time.Second, wait)

	ok, _ = l.allow(base.Add(31 * time.Second))
	assert.True(t, ok)
}

func TestLimiterWaitIsLongestBlockingWindow(t *testing.T) {
	l := newLimiter(2, 100, 2, 10*time.Second)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	l.record(base)
	l.record(base)

	// Both the minute and burst windows block; the wait reflects the
	// minute window because it frees up later.
	ok, wait := l.allow(base.Add(time.Second))
	require.False(t, ok)
	assert.Equal(t, 59*time.Second, wait)
}

func TestWindowStats(t *testing.T) {
	w := window{limit: 2, duration: time.Minute}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	w.record(base)
	s := w.stats(base.Add(10 * time.Second))
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 2, s.Limit)
	assert.Equal(t, time.Duration(0), s.ResetsIn)

	w.record(base.Add(10 * time.Second))
	s = w.stats(base.Add(20 * time.Second))
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 40*time.Second, s.ResetsIn)
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	base := 10 * time.Second
	max := 5 * time.Minute

	d1 := RetryDelay(base, 1, max)
	assert.GreaterOrEqual(t, d1, 20*time.Second)
	assert.Less(t, d1, 25*time.Second)

	d2 := RetryDelay(base, 2, max)
	assert.GreaterOrEqual(t, d2, 40*time.Second)
	assert.Less(t, d2, 45*time.Second)

	assert.Equal(t, max, RetryDelay(base, 20, max))
}
