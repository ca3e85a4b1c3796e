package rsvp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaftei/rsvpd/internal/access"
	"github.com/amaftei/rsvpd/internal/config"
	"github.com/amaftei/rsvpd/internal/guard"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/notify"
	"github.com/amaftei/rsvpd/internal/storage"
)

const testToken = "abc12345abc12345"

func newTestPipeline(t *testing.T) (*Pipeline, storage.Storage, *notify.Engine) {
	t.Helper()

	store, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateGuest(context.Background(), &models.Guest{
		ID:          models.NewID("gst"),
		Name:        "Ana Popescu",
		AccessToken: testToken,
		CreatedAt:   time.Now().UTC(),
	}))

	g := guard.New(5, 15*time.Minute, 30*time.Minute)
	validator := access.NewValidator(g, store, zerolog.Nop())

	cfg := config.NotifyConfig{
		PerMinute:      100,
		PerHour:        1000,
		BurstSize:      100,
		BurstCooldown:  time.Second,
		MaxQueue:       50,
		MaxAttempts:    3,
		BaseDelay:      10 * time.Millisecond,
		MaxDelay:       time.Second,
		SendTimeout:    time.Second,
		InterSendDelay: time.Millisecond,
		Tick:           5 * time.Millisecond,
	}
	// The engine is constructed but not started; tests that need
	// draining start it themselves.
	engine := notify.NewEngine(cfg, &notify.ScriptedProvider{}, store, zerolog.Nop())

	return NewPipeline(store, validator, engine, zerolog.Nop()), store, engine
}

func boolPtr(b bool) *bool { return &b }

func validRequest() *SubmitRequest {
	return &SubmitRequest{
		GuestToken:             testToken,
		GuestName:              "Ana Popescu",
		Attending:              boolPtr(true),
		MealChoice:             "vegetarian",
		EmailAddress:           "a@b.com",
		WantsEmailConfirmation: true,
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
		field  string
	}{
		{"missing name", func(r *SubmitRequest) { r.GuestName = "" }, "guest_name"},
		{"absent attending", func(r *SubmitRequest) { r.Attending = nil }, "attending"},
		{"attending without meal", func(r *SubmitRequest) { r.MealChoice = "" }, "meal_choice"},
		{"unknown meal", func(r *SubmitRequest) { r.MealChoice = "unicorn" }, "meal_choice"},
		{"bad email", func(r *SubmitRequest) { r.EmailAddress = "not-an-email" }, "email_address"},
		{"oversized dietary note", func(r *SubmitRequest) { r.DietaryRestrictions = strings.Repeat("x", 501) }, "dietary_restrictions"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)

			_, err := p.Submit(context.Background(), req)
			require.Error(t, err)

			var appErr *models.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidationError, appErr.Code)
			assert.Contains(t, appErr.Fields, tc.field)
		})
	}
}

func TestSubmitDecliningNeedsNoMeal(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	req := validRequest()
	req.Attending = boolPtr(false)
	req.MealChoice = ""

	result, err := p.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.SubmissionID)
}

func TestSubmitIsIdempotentPerGuest(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	first, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, first.Updated)

	second, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, second.Updated)
	assert.Equal(t, first.SubmissionID, second.SubmissionID)

	// Exactly one row exists for the guest.
	guests, err := store.ListGuestsWithResponses(context.Background())
	require.NoError(t, err)
	require.Len(t, guests, 1)
	require.NotNil(t, guests[0].Response)
	assert.Equal(t, first.SubmissionID, guests[0].Response.SubmissionID)
}

func TestSubmitEditKeepsSubmissionID(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	first, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	edit := validRequest()
	edit.Attending = boolPtr(false)
	edit.MealChoice = ""
	edit.WantsEmailConfirmation = false

	second, err := p.Submit(context.Background(), edit)
	require.NoError(t, err)
	assert.Equal(t, first.SubmissionID, second.SubmissionID)

	r, err := store.GetResponseByToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.False(t, r.Attending)
}

func TestSubmitUnknownToken(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	req := validRequest()
	req.GuestToken = "ffffffffffffffff"

	_, err := p.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, models.CodeTokenNotFound, models.ErrorCode(err))

	// The failed attempt still landed in the audit trail.
	entries, err := store.ListAuditEntries(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, models.CodeTokenNotFound, entries[0].ErrorCode)
}

func TestSubmitEnqueuesConfirmation(t *testing.T) {
	p, _, engine := newTestPipeline(t)

	_, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Stats().QueueLength)

	// No address, no confirmation.
	edit := validRequest()
	edit.EmailAddress = ""
	edit.WantsEmailConfirmation = true

	_, err = p.Submit(context.Background(), edit)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Stats().QueueLength)
}

func TestSubmitEndToEndConfirmation(t *testing.T) {
	p, store, engine := newTestPipeline(t)

	engine.Start(context.Background())
	defer engine.Stop()

	result, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, result.SubmissionID)

	require.Eventually(t, func() bool {
		r, err := store.GetResponseByToken(context.Background(), testToken)
		return err == nil && r != nil && r.EmailConfirmSent
	}, 3*time.Second, 5*time.Millisecond)
}

func TestSubmitAuditsSuccess(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	_, err := p.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	entries, err := store.ListAuditEntries(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].ErrorCode)
}
