// Package access validates guest access tokens behind the attempt guard.
package access

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/guard"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/storage"
)

// Tokens are opaque, 8-64 chars from a URL-safe alphabet. Anything else
// is rejected before the guard or the store is consulted.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

type Validator struct {
	guard *guard.Guard
	store storage.Storage
	log   zerolog.Logger
}

func NewValidator(g *guard.Guard, store storage.Storage, log zerolog.Logger) *Validator {
	return &Validator{guard: g, store: store, log: log}
}

// Validate resolves a token to its guest. Misses count against the
// guard; a hit resets the token's attempt window entirely.
func (v *Validator) Validate(ctx context.Context, token string) (*models.Guest, error) {
	if !tokenPattern.MatchString(token) {
		return nil, models.NewError(models.CodeInvalidToken, "malformed access token")
	}

	decision := v.guard.Check(token)
	if !decision.Allowed {
		retryAfter := decision.RetryAfter(time.Now())
		v.log.Warn().
			Str("token", token).
			Dur("retry_after", retryAfter).
			Msg("token validation locked out")
		return nil, models.RateLimitedError(int64(retryAfter.Seconds()) + 1)
	}

	g, err := v.store.GetGuestByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("guest lookup: %w", err)
	}
	if g == nil {
		v.guard.RecordFailure(token)
		return nil, models.NewError(models.CodeTokenNotFound, "no guest matches this token")
	}

	v.guard.RecordSuccess(token)
	return g, nil
}
