package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/storage"
	"github.com/amaftei/rsvpd/internal/utils"
)

type AdminHandler struct {
	store       storage.Storage
	phoneRegion string
}

func NewAdminHandler(store storage.Storage, phoneRegion string) *AdminHandler {
	return &AdminHandler{store: store, phoneRegion: phoneRegion}
}

func (h *AdminHandler) ListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := h.store.ListGuestsWithResponses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to list guests")
		return
	}
	if guests == nil {
		guests = []storage.GuestWithResponse{}
	}
	writeJSON(w, http.StatusOK, guests)
}

type createGuestRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Note  string `json:"note,omitempty"`
}

func (h *AdminHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req createGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, models.CodeValidationError, "name is required")
		return
	}

	phone := ""
	if req.Phone != "" {
		normalized, err := utils.NormalizePhoneNumber(req.Phone, h.phoneRegion)
		if err != nil {
			writeError(w, http.StatusBadRequest, models.CodeValidationError, "invalid phone number")
			return
		}
		phone = normalized
	}

	token, err := models.NewAccessToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to generate token")
		return
	}

	g := &models.Guest{
		ID:          models.NewID("gst"),
		Name:        req.Name,
		Phone:       phone,
		AccessToken: token,
		Note:        req.Note,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.CreateGuest(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to create guest")
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

func (h *AdminHandler) DeleteGuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g, err := h.store.GetGuest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to get guest")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, models.CodeTokenNotFound, "guest not found")
		return
	}

	if err := h.store.DeleteGuest(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to delete guest")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// ExportCSV streams guests with their latest responses for offline
// headcounts and seating charts.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	guests, err := h.store.ListGuestsWithResponses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to list guests")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="guests.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"name", "phone", "responded", "attending", "meal_choice",
		"dietary_restrictions", "email", "email_confirmed", "responded_at",
	})

	for _, gwr := range guests {
		row := []string{gwr.Guest.Name, gwr.Guest.Phone, "no", "", "", "", "", "", ""}
		if resp := gwr.Response; resp != nil {
			row[2] = "yes"
			row[3] = yesNo(resp.Attending)
			row[4] = resp.MealChoice
			row[5] = resp.DietaryRestrictions
			row[6] = resp.EmailAddress
			row[7] = yesNo(resp.EmailConfirmSent)
			row[8] = resp.UpdatedAt.Format(time.RFC3339)
		}
		cw.Write(row)
	}
	cw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.store.ListAuditEntries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.CodeServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
