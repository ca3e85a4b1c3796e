package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(limit int, window, lockout time.Duration) (*Guard, *time.Time) {
	g := New(limit, window, lockout)
	current := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }
	return g, &current
}

func TestCheckAllowsUnknownKey(t *testing.T) {
	g, _ := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	d := g.Check("token-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
	assert.Nil(t, d.LockedUntil)
}

func TestLockoutAfterLimit(t *testing.T) {
	g, now := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	for i := 0; i < 3; i++ {
		g.RecordFailure("token-1")
	}

	d := g.Check("token-1")
	require.False(t, d.Allowed)
	require.NotNil(t, d.LockedUntil)
	assert.Equal(t, now.Add(30*time.Minute), *d.LockedUntil)
	assert.True(t, g.IsLocked("token-1"))

	// Further attempts during the lockout change nothing.
	g.RecordFailure("token-1")
	assert.False(t, g.Check("token-1").Allowed)

	// Other keys are unaffected.
	assert.True(t, g.Check("token-2").Allowed)
}

func TestLockoutExpires(t *testing.T) {
	g, now := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	for i := 0; i < 3; i++ {
		g.RecordFailure("token-1")
	}
	require.False(t, g.Check("token-1").Allowed)

	*now = now.Add(31 * time.Minute)

	d := g.Check("token-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestWindowResetsWhenIdle(t *testing.T) {
	g, now := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	g.RecordFailure("token-1")
	g.RecordFailure("token-1")
	assert.Equal(t, 1, g.Check("token-1").Remaining)

	*now = now.Add(16 * time.Minute)

	d := g.Check("token-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)

	// A stale record also restarts counting on the next failure.
	g.RecordFailure("token-1")
	assert.Equal(t, 2, g.Check("token-1").Remaining)
}

func TestSuccessClearsEverything(t *testing.T) {
	g, now := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	for i := 0; i < 3; i++ {
		g.RecordFailure("token-1")
	}
	require.True(t, g.IsLocked("token-1"))

	*now = now.Add(31 * time.Minute)
	g.RecordSuccess("token-1")

	// After a full reset, limit-1 failures must not re-lock.
	for i := 0; i < 2; i++ {
		g.RecordFailure("token-1")
	}
	d := g.Check("token-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRetryAfter(t *testing.T) {
	g, now := newTestGuard(2, 15*time.Minute, 30*time.Minute)

	g.RecordFailure("k")
	g.RecordFailure("k")

	d := g.Check("k")
	require.False(t, d.Allowed)
	assert.Equal(t, 30*time.Minute, d.RetryAfter(*now))

	*now = now.Add(10 * time.Minute)
	assert.Equal(t, 20*time.Minute, d.RetryAfter(*now))
}

func TestSweepDropsStaleRecords(t *testing.T) {
	g, now := newTestGuard(3, 15*time.Minute, 30*time.Minute)

	g.RecordFailure("stale")
	for i := 0; i < 3; i++ {
		g.RecordFailure("locked")
	}

	*now = now.Add(16 * time.Minute)
	g.Sweep()

	g.mu.Lock()
	_, staleKept := g.records["stale"]
	_, lockedKept := g.records["locked"]
	g.mu.Unlock()

	assert.False(t, staleKept)
	assert.True(t, lockedKept, "active lockouts survive a sweep")
}
