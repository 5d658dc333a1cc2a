package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// EventHandler serves /api/events.
type EventHandler struct {
	store *store.Store
}

func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

// Routes registers the event routes on r.
func (h *EventHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/counts", h.counts)
}

type listEventsResponse struct {
	Events []*store.Event `json:"events"`
}

func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.store.Events().ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

func (h *EventHandler) counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Events().CountByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
