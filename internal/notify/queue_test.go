package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaftei/rsvpd/internal/models"
)

func note(id string, prio models.Priority, createdAt time.Time) *models.Notification {
	return &models.Notification{
		ID:        id,
		Priority:  prio,
		CreatedAt: createdAt,
	}
}

func TestPopEligiblePriorityOrder(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	q.Enqueue(note("low", models.PriorityLow, base))
	q.Enqueue(note("normal", models.PriorityNormal, base.Add(time.Second)))
	q.Enqueue(note("high", models.PriorityHigh, base.Add(2*time.Second)))

	now := base.Add(time.Minute)
	assert.Equal(t, "high", q.PopEligible(now).ID)
	assert.Equal(t, "normal", q.PopEligible(now).ID)
	assert.Equal(t, "low", q.PopEligible(now).ID)
	assert.Nil(t, q.PopEligible(now))
}

func TestPopEligibleFIFOWithinPriority(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	q.Enqueue(note("second", models.PriorityHigh, base.Add(time.Second)))
	q.Enqueue(note("first", models.PriorityHigh, base))

	now := base.Add(time.Minute)
	assert.Equal(t, "first", q.PopEligible(now).ID)
	assert.Equal(t, "second", q.PopEligible(now).ID)
}

func TestPopEligibleSkipsRescheduled(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	later := note("later", models.PriorityHigh, base)
	later.NextAttempt = base.Add(time.Minute)
	q.Enqueue(later)
	q.Enqueue(note("now", models.PriorityLow, base))

	// The high-priority item is not eligible yet, so the low one goes.
	assert.Equal(t, "now", q.PopEligible(base).ID)
	assert.Nil(t, q.PopEligible(base))
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, "later", q.PopEligible(base.Add(2*time.Minute)).ID)
}

func TestNextEligibleAt(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	_, ok := q.NextEligibleAt()
	assert.False(t, ok)

	a := note("a", models.PriorityNormal, base)
	a.NextAttempt = base.Add(3 * time.Minute)
	b := note("b", models.PriorityNormal, base)
	b.NextAttempt = base.Add(time.Minute)
	q.Enqueue(a)
	q.Enqueue(b)

	at, ok := q.NextEligibleAt()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), at)
}

func TestEnqueuePosition(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, q.Enqueue(note("a", models.PriorityNormal, base)))
	assert.Equal(t, 2, q.Enqueue(note("b", models.PriorityNormal, base.Add(time.Second))))

	// A high-priority item jumps the line.
	assert.Equal(t, 1, q.Enqueue(note("c", models.PriorityHigh, base.Add(2*time.Second))))
}
