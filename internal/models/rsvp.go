package models

import "time"

// MealChoices is the fixed set of menu options a guest may pick from.
// Unknown values are rejected, not silently accepted.
var MealChoices = []string{"standard", "vegetarian", "vegan", "gluten_free"}

func ValidMealChoice(choice string) bool {
	for _, c := range MealChoices {
		if c == choice {
			return true
		}
	}
	return false
}

// RSVPResponse is the single authoritative response for one guest token.
// A second submission updates the row in place; SubmissionID is stable
// across edits.
type RSVPResponse struct {
	SubmissionID        string    `json:"submission_id"`
	GuestToken          string    `json:"-"`
	GuestName           string    `json:"guest_name"`
	Attending           bool      `json:"attending"`
	MealChoice          string    `json:"meal_choice,omitempty"`
	DietaryRestrictions string    `json:"dietary_restrictions,omitempty"`
	EmailAddress        string    `json:"email_address,omitempty"`
	EmailConfirmSent    bool      `json:"email_confirmation_sent"`
	MessageConfirmSent  bool      `json:"message_confirmation_sent"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AuditEntry records one submission attempt, successful or not.
type AuditEntry struct {
	ID         string    `json:"id"`
	GuestToken string    `json:"guest_token"`
	Success    bool      `json:"success"`
	ErrorCode  string    `json:"error_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
