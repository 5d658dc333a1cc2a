package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/mudra/internal/plugin"
)

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Get(name string) (*plugin.Plugin, error) {
	if p, ok := f[name]; ok {
		return p, nil
	}
	return nil, plugin.ErrPluginNotFound
}

func TestBindingHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	r := mount("/api/bindings", NewBindingHandler(s, nil).Routes)

	rec := do(t, r, http.MethodPost, "/api/bindings", map[string]any{
		"label":       "namaste",
		"plugin_name": "keyboard",
		"action_name": "press",
		"config":      map[string]string{"key": "space"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created bindingResponse
	decode(t, rec, &created)
	if created.ID == "" || created.Label != "namaste" || !created.Enabled {
		t.Errorf("unexpected binding %+v", created)
	}

	rec = do(t, r, http.MethodGet, "/api/bindings", nil)
	var list listBindingsResponse
	decode(t, rec, &list)
	if len(list.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(list.Bindings))
	}

	rec = do(t, r, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET by id: expected 200, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPut, "/api/bindings/"+created.ID, map[string]any{"enabled": false, "action_name": "release"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated bindingResponse
	decode(t, rec, &updated)
	if updated.Enabled || updated.ActionName != "release" || updated.Label != "namaste" || string(updated.Config) != `{"key":"space"}` {
		t.Errorf("unexpected update %+v", updated)
	}

	rec = do(t, r, http.MethodDelete, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE: expected 204, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted: expected 404, got %d", rec.Code)
	}
}

func TestBindingHandler_Errors(t *testing.T) {
	s := newTestStore(t)
	plugins := fakePlugins{"keyboard": {Manifest: plugin.Manifest{Name: "keyboard", Actions: []string{"press"}}}}
	r := mount("/api/bindings", NewBindingHandler(s, plugins).Routes)

	valid := map[string]any{"label": "stop", "plugin_name": "keyboard", "action_name": "press"}
	if rec := do(t, r, http.MethodPost, "/api/bindings", valid); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate label", http.MethodPost, "/api/bindings", valid, http.StatusConflict},
		{"missing label", http.MethodPost, "/api/bindings", map[string]any{"plugin_name": "keyboard", "action_name": "press"}, http.StatusBadRequest},
		{"unknown plugin", http.MethodPost, "/api/bindings", map[string]any{"label": "a", "plugin_name": "x", "action_name": "press"}, http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/api/bindings", map[string]any{"label": "a", "plugin_name": "keyboard", "action_name": "x"}, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/api/bindings", "{not json", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/bindings", `{"label":"a","gesture_id":"x"}`, http.StatusBadRequest},
		{"get missing", http.MethodGet, "/api/bindings/nope", nil, http.StatusNotFound},
		{"update missing", http.MethodPut, "/api/bindings/nope", valid, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bindings/nope", nil, http.StatusNotFound},
		{"method not allowed", http.MethodPatch, "/api/bindings", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
