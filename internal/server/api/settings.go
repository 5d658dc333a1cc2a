package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/config"
)

// SettingsService reads and applies the runtime tunables.
type SettingsService interface {
	Settings() config.Tunables
	ApplySettings(t config.Tunables) error
}

// SettingsHandler serves /api/settings.
type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// Routes registers the settings routes on r.
func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.put)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// put applies a full or partial update; fields missing from the body keep
// their current values.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	t := h.svc.Settings()
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.svc.ApplySettings(t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Settings())
}
