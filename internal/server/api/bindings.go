package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginLookup finds installed plugins.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// BindingHandler serves /api/bindings.
type BindingHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewBindingHandler creates a handler. With a nil plugins lookup, plugin and
// action names are stored without being checked.
func NewBindingHandler(s *store.Store, plugins PluginLookup) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

// Routes registers the binding routes on r.
func (h *BindingHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type bindingRequest struct {
	Label      string          `json:"label"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	config := b.Config
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:         b.ID,
		Label:      b.Label,
		PluginName: b.PluginName,
		ActionName: b.ActionName,
		Config:     config,
		Enabled:    b.Enabled,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}

// validate checks required fields and, when plugins are known, that the
// plugin exists and declares the action.
func (h *BindingHandler) validate(req *bindingRequest) (int, string) {
	switch {
	case req.Label == "":
		return http.StatusBadRequest, "label is required"
	case req.PluginName == "":
		return http.StatusBadRequest, "plugin_name is required"
	case req.ActionName == "":
		return http.StatusBadRequest, "action_name is required"
	case len(req.Config) > 0 && !json.Valid(req.Config):
		return http.StatusBadRequest, "config must be valid JSON"
	}
	if h.plugins == nil {
		return 0, ""
	}
	p, err := h.plugins.Get(req.PluginName)
	if err != nil {
		return http.StatusBadRequest, "unknown plugin " + req.PluginName
	}
	if !p.HasAction(req.ActionName) {
		return http.StatusBadRequest, "plugin " + req.PluginName + " has no action " + req.ActionName
	}
	return 0, ""
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}
	resp := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		resp.Bindings = append(resp.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if status, msg := h.validate(&req); status != 0 {
		writeError(w, status, msg)
		return
	}

	b := &store.Binding{
		Label:      req.Label,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Bindings().Create(b); err != nil {
		if errors.Is(err, store.ErrDuplicateLabel) {
			writeError(w, http.StatusConflict, "Label "+req.Label+" is already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bindings().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// update replaces the binding's fields. Omitted fields keep their values.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bindings().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Label == "" {
		req.Label = b.Label
	}
	if req.PluginName == "" {
		req.PluginName = b.PluginName
	}
	if req.ActionName == "" {
		req.ActionName = b.ActionName
	}
	if req.Config == nil {
		req.Config = b.Config
	}
	if status, msg := h.validate(&req); status != 0 {
		writeError(w, status, msg)
		return
	}

	b.Label = req.Label
	b.PluginName = req.PluginName
	b.ActionName = req.ActionName
	b.Config = req.Config
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if err := h.store.Bindings().Update(b); err != nil {
		if errors.Is(err, store.ErrDuplicateLabel) {
			writeError(w, http.StatusConflict, "Label "+b.Label+" is already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Bindings().Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
