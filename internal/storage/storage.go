package storage

import (
	"context"

	"github.com/amaftei/rsvpd/internal/models"
)

type Storage interface {
	// Guests
	CreateGuest(ctx context.Context, g *models.Guest) error
	GetGuest(ctx context.Context, id string) (*models.Guest, error)
	GetGuestByToken(ctx context.Context, token string) (*models.Guest, error)
	ListGuests(ctx context.Context) ([]models.Guest, error)
	ListGuestsWithResponses(ctx context.Context) ([]GuestWithResponse, error)
	DeleteGuest(ctx context.Context, id string) error

	// Responses
	GetResponseByToken(ctx context.Context, guestToken string) (*models.RSVPResponse, error)
	InsertResponse(ctx context.Context, r *models.RSVPResponse) error
	UpdateResponse(ctx context.Context, r *models.RSVPResponse) error
	MarkConfirmationSent(ctx context.Context, guestToken string, channel models.Channel) error

	// Audit trail
	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)

	// Stats
	GetStats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type GuestWithResponse struct {
	Guest    models.Guest         `json:"guest"`
	Response *models.RSVPResponse `json:"response,omitempty"`
}

type Stats struct {
	TotalGuests        int64   `json:"total_guests"`
	TotalResponses     int64   `json:"total_responses"`
	AttendingCount     int64   `json:"attending_count"`
	DecliningCount     int64   `json:"declining_count"`
	EmailConfirmations int64   `json:"email_confirmations"`
	ResponseRate       float64 `json:"response_rate"`
}
