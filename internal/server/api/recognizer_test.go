package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/model"
)

var testLabels = []string{"namaste", "thanks", "stop"}

func newRecognizer(t *testing.T, c model.Classifier, meta model.MetadataSource) (*app.App, chi.Router) {
	t.Helper()
	p, err := gesture.New(gesture.DefaultConfig(), c, gesture.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(app.Config{
		Pipeline: p,
		Metadata: meta,
		Settings: config.Default().Pipeline,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	NewRecognizerHandler(a).Routes(r)
	return a, r
}

func clip(n int) map[string]any {
	frames := make([]*detector.HandLandmarks, n)
	for i := range frames {
		if i%3 == 0 {
			continue
		}
		h := detector.OpenPalmLandmarks()
		frames[i] = &h
	}
	return map[string]any{"frames": frames}
}

func TestRecognizer_Classify(t *testing.T) {
	mock := model.NewMockClassifier([]float64{0, 7, 1})
	a, r := newRecognizer(t, mock, model.StaticSource{Metadata: &model.Metadata{Labels: testLabels}})

	if rec := do(t, r, http.MethodPost, "/api/classify", clip(12)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready: expected 503, got %d", rec.Code)
	}

	if err := a.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec := do(t, r, http.MethodPost, "/api/classify", clip(45))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res gesture.Result
	decode(t, rec, &res)
	if res.Label != "thanks" || res.ClassIndex != 1 || res.RawScore != 7 || res.DisplayConfidence != 100 {
		t.Errorf("unexpected result %+v", res)
	}
	inputs := mock.Inputs()
	if shape := inputs[len(inputs)-1].Shape(); shape[1] != 30 || shape[2] != 63 {
		t.Errorf("clip not fitted to the window, shape %v", shape)
	}
	if a.Status().Frames != 0 {
		t.Error("clip classification must not touch the live window")
	}
}

func TestRecognizer_ClassifyErrors(t *testing.T) {
	mock := model.NewMockClassifier([]float64{0, 0, 9})
	a, r := newRecognizer(t, mock, model.StaticSource{Metadata: &model.Metadata{Labels: testLabels}})
	a.Reload(context.Background())

	unlabelled, ur := newRecognizer(t, model.NewMockClassifier([]float64{0, 9}), model.StaticSource{Metadata: &model.Metadata{}})
	unlabelled.Reload(context.Background())

	tests := []struct {
		name   string
		router chi.Router
		setup  func()
		body   any
		want   int
	}{
		{"unresolvable label", ur, func() {}, clip(30), http.StatusUnprocessableEntity},
		{"mis-shaped output", r, func() { mock.SetOutput([]float64{0, 0, 0, 9}) }, clip(30), http.StatusBadGateway},
		{"inference failure", r, func() { mock.SetError(errors.New("model server down")) }, clip(30), http.StatusBadGateway},
		{"empty clip", r, func() {}, map[string]any{"frames": []any{}}, http.StatusBadRequest},
		{"wrong landmark count", r, func() {}, `{"frames":[{"points":[{"x":0,"y":0}]}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			if rec := do(t, tt.router, http.MethodPost, "/api/classify", tt.body); rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecognizer_Reload(t *testing.T) {
	_, r := newRecognizer(t, model.NewMockClassifier([]float64{1}), &model.FileSource{Path: "/does/not/exist.json"})
	if rec := do(t, r, http.MethodPost, "/api/model/reload", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failed reload: expected 503, got %d", rec.Code)
	}

	rec := do(t, r, http.MethodGet, "/api/status", nil)
	var st app.Status
	decode(t, rec, &st)
	if st.Ready {
		t.Error("pipeline should stay not ready after a failed reload")
	}
}

func TestRecognizer_Enabled(t *testing.T) {
	a, r := newRecognizer(t, model.NewMockClassifier([]float64{1}), nil)

	rec := do(t, r, http.MethodPut, "/api/enabled", map[string]bool{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if a.IsEnabled() {
		t.Error("app should be disabled")
	}
	if rec := do(t, r, http.MethodPut, "/api/enabled", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing flag: expected 400, got %d", rec.Code)
	}
}
