package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/amaftei/rsvpd/internal/models"
)

type errorResponse struct {
	Error *models.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: models.NewError(code, message)})
}

// writeAppError maps a pipeline/validator error to an HTTP status while
// keeping the stable error code in the body.
func writeAppError(w http.ResponseWriter, err *models.Error) {
	status := http.StatusInternalServerError
	switch err.Code {
	case models.CodeInvalidToken:
		status = http.StatusBadRequest
	case models.CodeTokenNotFound:
		status = http.StatusNotFound
	case models.CodeRateLimited:
		status = http.StatusTooManyRequests
		retryAfter := err.RetryAfter
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	case models.CodeValidationError:
		status = http.StatusUnprocessableEntity
	case models.CodeDuplicateSubmission:
		status = http.StatusConflict
	case models.CodeNetworkError:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err})
}
