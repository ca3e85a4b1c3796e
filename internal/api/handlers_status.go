package api

import (
	"net/http"

	"github.com/amaftei/rsvpd/internal/notify"
)

type StatusHandler struct {
	engine *notify.Engine
}

func NewStatusHandler(engine *notify.Engine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "rsvpd",
	})
}

// QueueStatus exposes queue length, the draining flag, and the rate
// window counters for operational tooling. Payload contents stay private.
func (h *StatusHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}
