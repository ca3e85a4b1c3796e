package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amaftei/rsvpd/internal/access"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/rsvp"
	"github.com/amaftei/rsvpd/internal/storage"
)

type RSVPHandler struct {
	pipeline  *rsvp.Pipeline
	validator *access.Validator
	store     storage.Storage
}

func NewRSVPHandler(pipeline *rsvp.Pipeline, validator *access.Validator, store storage.Storage) *RSVPHandler {
	return &RSVPHandler{pipeline: pipeline, validator: validator, store: store}
}

const maxBodySize = 16 * 1024 // 16KB; RSVP payloads are tiny

func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req rsvp.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}

	result, err := h.pipeline.Submit(r.Context(), &req)
	if err != nil {
		var appErr *models.Error
		if errors.As(err, &appErr) {
			writeAppError(w, appErr)
			return
		}
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "internal error")
		return
	}

	status := http.StatusCreated
	if result.Updated {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Lookup resolves a token to its guest and any existing response, so
// the form can be pre-filled on a return visit.
func (h *RSVPHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	guest, err := h.validator.Validate(r.Context(), token)
	if err != nil {
		var appErr *models.Error
		if errors.As(err, &appErr) {
			writeAppError(w, appErr)
			return
		}
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "internal error")
		return
	}

	response, err := h.store.GetResponseByToken(r.Context(), guest.AccessToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to load response")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"guest": map[string]interface{}{
			"name": guest.Name,
		},
		"response":     response,
		"meal_choices": models.MealChoices,
	})
}
