package notify

import (
	"sync"
	"time"

	"github.com/amaftei/rsvpd/internal/models"
)

// Queue holds pending notifications in memory. Selection order is
// priority first, then creation time within a priority class. Items
// carry their own next-eligible time, so eligibility is evaluated at
// pop time rather than baked into the ordering.
type Queue struct {
	mu    sync.Mutex
	items []*models.Notification
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Enqueue adds n and returns its queue position (1-based, counting items
// that would be served before or alongside it).
func (q *Queue) Enqueue(n *models.Notification) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, n)

	pos := 0
	for _, item := range q.items {
		if item.Priority > n.Priority {
			pos++
		} else if item.Priority == n.Priority && !item.CreatedAt.After(n.CreatedAt) {
			pos++
		}
	}
	return pos
}

// Requeue puts a rescheduled item back without recomputing a position.
func (q *Queue) Requeue(n *models.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// PopEligible removes and returns the best item whose next-attempt time
// has passed, or nil when nothing is eligible yet. The scale here is
// tens of items, so a linear scan beats maintaining two orderings.
func (q *Queue) PopEligible(now time.Time) *models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	for i, item := range q.items {
		if item.NextAttempt.After(now) {
			continue
		}
		if best == -1 || better(item, q.items[best]) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	n := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return n
}

// NextEligibleAt reports the earliest next-attempt time across all queued
// items, for drain-loop backoff.
func (q *Queue) NextEligibleAt() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return time.Time{}, false
	}
	earliest := q.items[0].NextAttempt
	for _, item := range q.items[1:] {
		if item.NextAttempt.Before(earliest) {
			earliest = item.NextAttempt
		}
	}
	return earliest, true
}

func better(a, b *models.Notification) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
