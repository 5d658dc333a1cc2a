package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/model"
)

// Recognizer is the running app as seen by the HTTP API.
type Recognizer interface {
	Status() app.Status
	Reload(ctx context.Context) error
	ClassifyClip(ctx context.Context, hands []*detector.HandLandmarks) (gesture.Result, error)
	SetEnabled(enabled bool)
}

// RecognizerHandler serves status, model reload, clip classification and
// the enable switch.
type RecognizerHandler struct {
	rec Recognizer
}

func NewRecognizerHandler(rec Recognizer) *RecognizerHandler {
	return &RecognizerHandler{rec: rec}
}

// Routes registers the recognizer routes on the root router.
func (h *RecognizerHandler) Routes(r chi.Router) {
	r.Get("/api/status", h.status)
	r.Post("/api/model/reload", h.reload)
	r.Post("/api/classify", h.classify)
	r.Put("/api/enabled", h.enabled)
}

func (h *RecognizerHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rec.Status())
}

func (h *RecognizerHandler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.rec.Reload(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type classifyRequest struct {
	Frames []*detector.HandLandmarks `json:"frames"`
}

func (h *RecognizerHandler) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Frames) == 0 {
		writeError(w, http.StatusBadRequest, "frames must not be empty")
		return
	}

	result, err := h.rec.ClassifyClip(r.Context(), req.Frames)
	var ie *model.InferenceError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, gesture.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, gesture.ErrUnknownClass):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ie):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *RecognizerHandler) enabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
		return
	}
	h.rec.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, h.rec.Status())
}
