// Package notify queues RSVP confirmations and drains them through a
// delivery provider under nested rate limits with retrying backoff.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/config"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/storage"
)

// Engine owns the notification queue exclusively. A single drain loop
// runs on a fixed tick and is nudged when an item is enqueued while
// idle; concurrent nudges coalesce into one pass.
type Engine struct {
	cfg      config.NotifyConfig
	queue    *Queue
	limiter  *limiter
	provider Provider
	store    storage.Storage
	log      zerolog.Logger

	nudge chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup

	draining  atomic.Bool
	delivered atomic.Int64
	exhausted atomic.Int64
	dropped   atomic.Int64
}

func NewEngine(cfg config.NotifyConfig, provider Provider, store storage.Storage, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		queue:    NewQueue(),
		limiter:  newLimiter(cfg.PerMinute, cfg.PerHour, cfg.BurstSize, cfg.BurstCooldown),
		provider: provider,
		store:    store,
		log:      log,
		nudge:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Enqueue accepts a confirmation for background delivery. It never
// blocks; when the queue is saturated the item is refused and counted.
func (e *Engine) Enqueue(n *models.Notification) (position int, accepted bool) {
	if e.cfg.MaxQueue > 0 && e.queue.Len() >= e.cfg.MaxQueue {
		e.dropped.Add(1)
		e.log.Warn().
			Str("notification_id", n.ID).
			Int("queue_length", e.queue.Len()).
			Msg("notification queue saturated, refusing item")
		return 0, false
	}

	if n.ID == "" {
		n.ID = models.NewID("ntf")
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = e.cfg.MaxAttempts
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Status = models.NotificationPending

	position = e.queue.Enqueue(n)

	select {
	case e.nudge <- struct{}{}:
	default:
	}

	e.log.Debug().
		Str("notification_id", n.ID).
		Str("priority", n.Priority.String()).
		Int("position", position).
		Msg("notification enqueued")
	return position, true
}

func (e *Engine) Start(ctx context.Context) {
	e.log.Info().
		Str("provider", e.provider.Name()).
		Int("per_minute", e.cfg.PerMinute).
		Int("per_hour", e.cfg.PerHour).
		Int("burst_size", e.cfg.BurstSize).
		Msg("starting delivery engine")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

func (e *Engine) Stop() {
	e.log.Info().Msg("stopping delivery engine")
	close(e.stop)
	e.wg.Wait()
	e.log.Info().Int("undelivered", e.queue.Len()).Msg("delivery engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	for {
		// Sleep until the next tick or the earliest rescheduled item,
		// whichever comes first.
		wait := e.cfg.Tick
		if at, ok := e.queue.NextEligibleAt(); ok {
			if until := time.Until(at); until > 0 && until < wait {
				wait = until
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-e.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			e.drain(ctx)
		case <-e.nudge:
			timer.Stop()
			e.drain(ctx)
		}
	}
}

// drain processes eligible items one at a time until the queue is empty,
// a rate window blocks, or shutdown begins. Only one pass runs at once.
func (e *Engine) drain(ctx context.Context) {
	if !e.draining.CompareAndSwap(false, true) {
		return
	}
	defer e.draining.Store(false)

	for {
		select {
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UTC()
		n := e.queue.PopEligible(now)
		if n == nil {
			// Nothing eligible; run resumes once the earliest rescheduled
			// item comes due.
			return
		}

		if ok, wait := e.limiter.allow(now); !ok {
			n.Status = models.NotificationPending
			n.NextAttempt = now.Add(wait)
			e.queue.Requeue(n)
			e.log.Debug().
				Str("notification_id", n.ID).
				Dur("wait", wait).
				Msg("rate window exhausted, backing off")
			return
		}

		e.attempt(ctx, n)

		// Small pause between sends so even permitted bursts do not
		// saturate the provider.
		select {
		case <-time.After(e.cfg.InterSendDelay):
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) attempt(ctx context.Context, n *models.Notification) {
	n.Status = models.NotificationSending
	n.AttemptCount++

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	err := e.provider.Send(sendCtx, n)
	cancel()

	now := time.Now().UTC()

	switch {
	case err == nil:
		n.Status = models.NotificationDelivered
		e.limiter.record(now)
		e.delivered.Add(1)
		e.markConfirmed(n)
		e.log.Info().
			Str("notification_id", n.ID).
			Str("recipient", n.Recipient).
			Int("attempts", n.AttemptCount).
			Msg("notification delivered")

	case IsPermanent(err):
		n.Status = models.NotificationExhausted
		e.exhausted.Add(1)
		e.log.Warn().
			Err(err).
			Str("notification_id", n.ID).
			Msg("notification failed permanently")

	case n.AttemptCount >= n.MaxAttempts:
		n.Status = models.NotificationExhausted
		e.exhausted.Add(1)
		e.log.Warn().
			Err(err).
			Str("notification_id", n.ID).
			Int("attempts", n.AttemptCount).
			Msg("notification exhausted retries")

	default:
		delay := RetryDelay(e.cfg.BaseDelay, n.AttemptCount, e.cfg.MaxDelay)
		n.Status = models.NotificationPending
		n.NextAttempt = now.Add(delay)
		e.queue.Requeue(n)
		e.log.Info().
			Err(err).
			Str("notification_id", n.ID).
			Int("attempt", n.AttemptCount).
			Dur("retry_in", delay).
			Msg("notification send failed, rescheduled")
	}
}

// markConfirmed flips the RSVP's confirmation-sent flag for the
// delivered channel. Uses a fresh context so a shutdown mid-flight does
// not lose the update.
func (e *Engine) markConfirmed(n *models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.store.MarkConfirmationSent(ctx, n.GuestToken, n.Channel); err != nil {
		e.log.Error().
			Err(err).
			Str("notification_id", n.ID).
			Msg("failed to mark confirmation sent")
	}
}

// Stats is the engine's observability surface: queue and window state
// only, never payload contents.
type Stats struct {
	QueueLength int         `json:"queue_length"`
	Draining    bool        `json:"draining"`
	Delivered   int64       `json:"delivered"`
	Exhausted   int64       `json:"exhausted"`
	Dropped     int64       `json:"dropped"`
	Minute      WindowStats `json:"minute_window"`
	Hour        WindowStats `json:"hour_window"`
	Burst       WindowStats `json:"burst_window"`
}

func (e *Engine) Stats() Stats {
	minute, hour, burst := e.limiter.snapshot(time.Now().UTC())
	return Stats{
		QueueLength: e.queue.Len(),
		Draining:    e.draining.Load(),
		Delivered:   e.delivered.Load(),
		Exhausted:   e.exhausted.Load(),
		Dropped:     e.dropped.Load(),
		Minute:      minute,
		Hour:        hour,
		Burst:       burst,
	}
}
