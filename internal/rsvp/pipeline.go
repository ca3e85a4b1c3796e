// Package rsvp implements the validated, idempotent submission pipeline.
package rsvp

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/access"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/notify"
	"github.com/amaftei/rsvpd/internal/storage"
)

// SubmitRequest is the guest-facing submission payload. Attending is a
// pointer so an absent field is rejected rather than defaulted to false.
type SubmitRequest struct {
	GuestToken             string `json:"guest_token"`
	GuestName              string `json:"guest_name"`
	Attending              *bool  `json:"attending"`
	MealChoice             string `json:"meal_choice,omitempty"`
	DietaryRestrictions    string `json:"dietary_restrictions,omitempty"`
	EmailAddress           string `json:"email_address,omitempty"`
	WantsEmailConfirmation bool   `json:"wants_email_confirmation"`
}

type SubmitResult struct {
	SubmissionID string `json:"submission_id"`
	Updated      bool   `json:"updated"`
}

type Pipeline struct {
	store     storage.Storage
	validator *access.Validator
	engine    *notify.Engine
	log       zerolog.Logger
}

func NewPipeline(store storage.Storage, validator *access.Validator, engine *notify.Engine, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, validator: validator, engine: engine, log: log}
}

// Submit gates the request on the token validator, validates the
// payload, and writes exactly one authoritative response per guest
// token. Resubmitting updates the row in place and returns the same
// submission id. Confirmation enqueue and audit logging are best-effort
// side effects that never fail the write.
func (p *Pipeline) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	guest, err := p.validator.Validate(ctx, req.GuestToken)
	if err != nil {
		p.audit(req.GuestToken, err)
		return nil, err
	}

	if err := validate(req); err != nil {
		p.audit(req.GuestToken, err)
		return nil, err
	}

	result, err := p.upsert(ctx, guest, req)
	p.audit(req.GuestToken, err)
	if err != nil {
		return nil, err
	}

	p.maybeEnqueueConfirmation(guest, req)
	return result, nil
}

func (p *Pipeline) upsert(ctx context.Context, guest *models.Guest, req *SubmitRequest) (*SubmitResult, error) {
	existing, err := p.store.GetResponseByToken(ctx, guest.AccessToken)
	if err != nil {
		return nil, models.NewError(models.CodeServerError, "could not read existing response")
	}

	now := time.Now().UTC()

	if existing == nil {
		r := &models.RSVPResponse{
			SubmissionID:        models.NewID("sub"),
			GuestToken:          guest.AccessToken,
			GuestName:           req.GuestName,
			Attending:           *req.Attending,
			MealChoice:          req.MealChoice,
			DietaryRestrictions: req.DietaryRestrictions,
			EmailAddress:        req.EmailAddress,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		err := p.store.InsertResponse(ctx, r)
		if err == nil {
			return &SubmitResult{SubmissionID: r.SubmissionID}, nil
		}
		if !storage.IsConflict(err) {
			return nil, models.NewError(models.CodeServerError, "could not save response")
		}

		// Benign race: another submission for this token landed between
		// the read and the insert. Re-read and update that row instead.
		existing, err = p.store.GetResponseByToken(ctx, guest.AccessToken)
		if err != nil || existing == nil {
			return nil, models.NewError(models.CodeDuplicateSubmission, "response already exists for this guest")
		}
	}

	updated := *existing
	updated.GuestName = req.GuestName
	updated.Attending = *req.Attending
	updated.MealChoice = req.MealChoice
	updated.DietaryRestrictions = req.DietaryRestrictions
	updated.EmailAddress = req.EmailAddress
	updated.UpdatedAt = now

	if err := p.store.UpdateResponse(ctx, &updated); err != nil {
		return nil, models.NewError(models.CodeServerError, "could not update response")
	}

	// The submission id identifies the guest's RSVP lifecycle, not each
	// write, so edits keep the original id.
	return &SubmitResult{SubmissionID: existing.SubmissionID, Updated: true}, nil
}

// audit records the attempt; failures are logged and swallowed.
func (p *Pipeline) audit(guestToken string, submitErr error) {
	entry := &models.AuditEntry{
		ID:         models.NewID("aud"),
		GuestToken: guestToken,
		Success:    submitErr == nil,
		ErrorCode:  models.ErrorCode(submitErr),
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.store.InsertAuditEntry(ctx, entry); err != nil {
		p.log.Warn().Err(err).Str("guest_token", guestToken).Msg("audit log write failed")
	}
}

// maybeEnqueueConfirmation is best-effort: a refused or failed enqueue
// must never roll back the RSVP write.
func (p *Pipeline) maybeEnqueueConfirmation(guest *models.Guest, req *SubmitRequest) {
	if !req.WantsEmailConfirmation || req.EmailAddress == "" {
		return
	}

	n := &models.Notification{
		GuestToken: guest.AccessToken,
		Channel:    models.ChannelEmail,
		Recipient:  req.EmailAddress,
		GuestName:  req.GuestName,
		Attending:  *req.Attending,
		Priority:   models.PriorityHigh,
	}

	if _, accepted := p.engine.Enqueue(n); !accepted {
		p.log.Warn().
			Str("guest_token", guest.AccessToken).
			Msg("confirmation refused by saturated queue")
	}
}
