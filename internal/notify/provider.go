package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/models"
)

// Provider delivers one notification. Implementations distinguish
// retryable failures (plain errors) from permanent ones (*PermanentError).
type Provider interface {
	Name() string
	Send(ctx context.Context, n *models.Notification) error
}

// PermanentError marks a failure that retrying cannot fix, such as a
// malformed recipient address. The engine exhausts the item immediately.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

func Permanent(format string, args ...interface{}) error {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// NoopProvider logs and succeeds. Default when no SMTP server is
// configured, so a dev instance drains its queue without sending mail.
type NoopProvider struct {
	Log zerolog.Logger
}

func (p *NoopProvider) Name() string { return "noop" }

func (p *NoopProvider) Send(ctx context.Context, n *models.Notification) error {
	p.Log.Info().
		Str("notification_id", n.ID).
		Str("recipient", n.Recipient).
		Str("channel", string(n.Channel)).
		Msg("noop provider: pretending to deliver")
	return nil
}

// ScriptedProvider replays a fixed list of outcomes, one per Send call,
// then succeeds. Deterministic stand-in for a flaky provider.
type ScriptedProvider struct {
	mu       sync.Mutex
	Outcomes []error
	Calls    []string
}

func (p *ScriptedProvider) Name() string { return "scripted" }

func (p *ScriptedProvider) Send(ctx context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, n.ID)
	if len(p.Outcomes) == 0 {
		return nil
	}
	out := p.Outcomes[0]
	p.Outcomes = p.Outcomes[1:]
	return out
}

func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
