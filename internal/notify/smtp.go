package notify

import (
	"context"
	"fmt"
	"net/mail"

	"gopkg.in/gomail.v2"

	"github.com/amaftei/rsvpd/internal/config"
	"github.com/amaftei/rsvpd/internal/models"
)

// SMTPProvider delivers confirmation emails through a plain SMTP server.
type SMTPProvider struct {
	cfg config.SMTPConfig
}

func NewSMTPProvider(cfg config.SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(ctx context.Context, n *models.Notification) error {
	if _, err := mail.ParseAddress(n.Recipient); err != nil {
		return Permanent("invalid recipient address %q", n.Recipient)
	}

	from := p.cfg.From
	if from == "" {
		from = p.cfg.User
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", n.Recipient)
	m.SetHeader("Subject", "Your RSVP confirmation")
	m.SetBody("text/plain", confirmationBody(n))

	d := gomail.NewDialer(p.cfg.Host, p.cfg.Port, p.cfg.User, p.cfg.Password)

	// gomail has no context support; run the dial in a goroutine so the
	// engine's per-send timeout still applies.
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}
}

func confirmationBody(n *models.Notification) string {
	if n.Attending {
		return fmt.Sprintf(
			"Hi %s,\n\nThank you for your RSVP. We have you down as attending and we look forward to celebrating with you!\n",
			n.GuestName,
		)
	}
	return fmt.Sprintf(
		"Hi %s,\n\nThank you for letting us know. We are sorry you cannot make it, and we will miss you!\n",
		n.GuestName,
	)
}
