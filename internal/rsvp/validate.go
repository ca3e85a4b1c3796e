package rsvp

import (
	"regexp"

	"github.com/amaftei/rsvpd/internal/models"
)

const maxDietaryLength = 500

// Structural check only; deliverability is the provider's problem.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validate applies the submission rules in order; the first violation
// wins and is reported with its field name.
func validate(req *SubmitRequest) error {
	if req.GuestName == "" {
		return models.ValidationError("guest_name", "is required")
	}
	if req.Attending == nil {
		return models.ValidationError("attending", "is required")
	}
	if *req.Attending && req.MealChoice == "" {
		return models.ValidationError("meal_choice", "is required when attending")
	}
	if req.MealChoice != "" && !models.ValidMealChoice(req.MealChoice) {
		return models.ValidationError("meal_choice", "is not a recognized option")
	}
	if req.EmailAddress != "" && !emailPattern.MatchString(req.EmailAddress) {
		return models.ValidationError("email_address", "is not a valid email address")
	}
	if len(req.DietaryRestrictions) > maxDietaryLength {
		return models.ValidationError("dietary_restrictions", "exceeds the maximum length")
	}
	return nil
}
