package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"

	"github.com/amaftei/rsvpd/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// The database file may live on storage that is still mounting at
	// boot; retry the ping briefly before giving up.
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(100*time.Millisecond))
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS guests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL UNIQUE,
			note TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rsvp_responses (
			submission_id TEXT PRIMARY KEY,
			guest_token TEXT NOT NULL UNIQUE REFERENCES guests(access_token) ON DELETE CASCADE,
			guest_name TEXT NOT NULL,
			attending INTEGER NOT NULL,
			meal_choice TEXT NOT NULL DEFAULT '',
			dietary_restrictions TEXT NOT NULL DEFAULT '',
			email_address TEXT NOT NULL DEFAULT '',
			email_confirm_sent INTEGER NOT NULL DEFAULT 0,
			message_confirm_sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			guest_token TEXT NOT NULL,
			success INTEGER NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guests_token ON guests(access_token)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_token ON rsvp_responses(guest_token)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_token ON audit_log(guest_token)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// --- Guests ---

func (s *SQLiteStorage) CreateGuest(ctx context.Context, g *models.Guest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guests (id, name, phone, access_token, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Phone, g.AccessToken, g.Note, g.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanGuest(row interface{ Scan(...interface{}) error }) (*models.Guest, error) {
	var g models.Guest
	err := row.Scan(&g.ID, &g.Name, &g.Phone, &g.AccessToken, &g.Note, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLiteStorage) GetGuest(ctx context.Context, id string) (*models.Guest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, access_token, note, created_at FROM guests WHERE id = ?`, id)
	g, err := s.scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *SQLiteStorage) GetGuestByToken(ctx context.Context, token string) (*models.Guest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, access_token, note, created_at FROM guests WHERE access_token = ?`, token)
	g, err := s.scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *SQLiteStorage) ListGuests(ctx context.Context) ([]models.Guest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, access_token, note, created_at FROM guests ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []models.Guest
	for rows.Next() {
		g, err := s.scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}

func (s *SQLiteStorage) ListGuestsWithResponses(ctx context.Context) ([]GuestWithResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT
			g.id, g.name, g.phone, g.access_token, g.note, g.created_at,
			r.submission_id, r.guest_name, r.attending, r.meal_choice, r.dietary_restrictions,
			r.email_address, r.email_confirm_sent, r.message_confirm_sent, r.created_at, r.updated_at
		 FROM guests g
		 LEFT JOIN rsvp_responses r ON r.guest_token = g.access_token
		 ORDER BY g.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GuestWithResponse
	for rows.Next() {
		var gwr GuestWithResponse
		var subID, guestName, mealChoice, dietary, email sql.NullString
		var attending, emailSent, msgSent sql.NullBool
		var createdAt, updatedAt sql.NullTime

		err := rows.Scan(
			&gwr.Guest.ID, &gwr.Guest.Name, &gwr.Guest.Phone, &gwr.Guest.AccessToken,
			&gwr.Guest.Note, &gwr.Guest.CreatedAt,
			&subID, &guestName, &attending, &mealChoice, &dietary,
			&email, &emailSent, &msgSent, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		if subID.Valid {
			gwr.Response = &models.RSVPResponse{
				SubmissionID:        subID.String,
				GuestToken:          gwr.Guest.AccessToken,
				GuestName:           guestName.String,
				Attending:           attending.Bool,
				MealChoice:          mealChoice.String,
				DietaryRestrictions: dietary.String,
				EmailAddress:        email.String,
				EmailConfirmSent:    emailSent.Bool,
				MessageConfirmSent:  msgSent.Bool,
				CreatedAt:           createdAt.Time,
				UpdatedAt:           updatedAt.Time,
			}
		}
		results = append(results, gwr)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) DeleteGuest(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	return err
}

// --- Responses ---

func (s *SQLiteStorage) GetResponseByToken(ctx context.Context, guestToken string) (*models.RSVPResponse, error) {
	var r models.RSVPResponse
	err := s.db.QueryRowContext(ctx,
		`SELECT submission_id, guest_token, guest_name, attending, meal_choice, dietary_restrictions,
			email_address, email_confirm_sent, message_confirm_sent, created_at, updated_at
		 FROM rsvp_responses WHERE guest_token = ?`, guestToken,
	).Scan(&r.SubmissionID, &r.GuestToken, &r.GuestName, &r.Attending, &r.MealChoice,
		&r.DietaryRestrictions, &r.EmailAddress, &r.EmailConfirmSent, &r.MessageConfirmSent,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &r, err
}

func (s *SQLiteStorage) InsertResponse(ctx context.Context, r *models.RSVPResponse) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rsvp_responses (submission_id, guest_token, guest_name, attending, meal_choice,
			dietary_restrictions, email_address, email_confirm_sent, message_confirm_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SubmissionID, r.GuestToken, r.GuestName, r.Attending, r.MealChoice,
		r.DietaryRestrictions, r.EmailAddress, r.EmailConfirmSent, r.MessageConfirmSent,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) UpdateResponse(ctx context.Context, r *models.RSVPResponse) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rsvp_responses SET guest_name = ?, attending = ?, meal_choice = ?,
			dietary_restrictions = ?, email_address = ?, updated_at = ?
		 WHERE guest_token = ?`,
		r.GuestName, r.Attending, r.MealChoice, r.DietaryRestrictions, r.EmailAddress,
		time.Now().UTC(), r.GuestToken,
	)
	return err
}

func (s *SQLiteStorage) MarkConfirmationSent(ctx context.Context, guestToken string, channel models.Channel) error {
	column := "message_confirm_sent"
	if channel == models.ChannelEmail {
		column = "email_confirm_sent"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE rsvp_responses SET `+column+` = 1, updated_at = ? WHERE guest_token = ?`,
		time.Now().UTC(), guestToken,
	)
	return err
}

// --- Audit trail ---

func (s *SQLiteStorage) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, guest_token, success, error_code, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.GuestToken, e.Success, e.ErrorCode, e.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) ListAuditEntries(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guest_token, success, error_code, created_at FROM audit_log
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.GuestToken, &e.Success, &e.ErrorCode, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Stats ---

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guests`).Scan(&stats.TotalGuests)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rsvp_responses`).Scan(&stats.TotalResponses)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rsvp_responses WHERE attending = 1`).Scan(&stats.AttendingCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rsvp_responses WHERE attending = 0`).Scan(&stats.DecliningCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rsvp_responses WHERE email_confirm_sent = 1`).Scan(&stats.EmailConfirmations)

	if stats.TotalGuests > 0 {
		stats.ResponseRate = float64(stats.TotalResponses) / float64(stats.TotalGuests) * 100
	}

	return stats, nil
}
