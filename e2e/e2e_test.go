package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

type harness struct {
	ts      *httptest.Server
	app     *app.App
	hub     *server.Hub
	store   *store.Store
	pluginO string
}

// newHarness wires the recognizer behind a real HTTP server. The source
// replays n open-palm frames; the classifier always answers scores.
func newHarness(t *testing.T, scores []float64, n int) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping e2e test on Windows")
	}
	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	pluginDir := filepath.Join(tmpDir, "plugins", "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(pluginDir, "out.json")
	script := "#!/bin/sh\ncat > \"" + out + "\"\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["record"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	plugins := plugin.NewManager(filepath.Join(tmpDir, "plugins"), logging.NewNop())
	if err := plugins.Discover(); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	p, err := gesture.New(gesture.DefaultConfig(), model.NewMockClassifier(scores),
		gesture.WithLogger(logging.NewNop()), gesture.WithMetrics(metrics.New(reg)))
	if err != nil {
		t.Fatal(err)
	}

	frames := make([]*detector.HandLandmarks, n)
	for i := range frames {
		h := detector.OpenPalmLandmarks()
		frames[i] = &h
	}
	a, err := app.New(app.Config{
		Pipeline: p,
		Source:   detector.NewSliceSource(frames),
		Metadata: model.StaticSource{Metadata: &model.Metadata{Labels: []string{"namaste", "thanks", "stop"}}},
		Settings: config.Default().Pipeline,
		Store:    s,
		Plugins:  plugins,
		Executor: plugin.NewExecutor(5 * time.Second),
		Limiter:  plugin.NewLimiter(time.Second),
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	hub := server.NewHub(logging.NewNop())
	a.OnResult(hub.Broadcast)
	srv := server.New(server.Config{
		Store:      s,
		Recognizer: a,
		Settings:   a,
		Plugins:    plugins,
		Hub:        hub,
		Gatherer:   reg,
		Logger:     logging.NewNop(),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &harness{ts: ts, app: a, hub: hub, store: s, pluginO: out}
}

func (h *harness) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) expect(t *testing.T, method, path, body string, want int) *http.Response {
	t.Helper()
	resp := h.do(t, method, path, body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d", method, path, resp.StatusCode, want)
	}
	return resp
}

func TestE2E_RecognizeAndTrigger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	h := newHarness(t, []float64{0, 5, 0}, 40)

	var status app.Status
	json.NewDecoder(h.expect(t, http.MethodGet, "/api/status", "", http.StatusOK).Body).Decode(&status)
	if status.Ready {
		t.Fatal("pipeline should not be ready before the first reload")
	}

	h.expect(t, http.MethodPost, "/api/model/reload", "", http.StatusNoContent)
	h.expect(t, http.MethodPost, "/api/bindings",
		`{"label":"thanks","plugin_name":"recorder","action_name":"record","config":{"note":"e2e"}}`,
		http.StatusCreated)

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := h.app.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	if err := h.app.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	t.Run("LiveResults", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var r gesture.Result
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read: %v", err)
		}
		if r.Label != "thanks" || r.DisplayConfidence != 100 {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("EventLog", func(t *testing.T) {
		var list struct {
			Events []store.Event `json:"events"`
		}
		json.NewDecoder(h.expect(t, http.MethodGet, "/api/events", "", http.StatusOK).Body).Decode(&list)
		if len(list.Events) != 1 || list.Events[0].Label != "thanks" {
			t.Errorf("expected one label change to thanks, got %+v", list.Events)
		}
	})

	t.Run("PluginTriggered", func(t *testing.T) {
		data, err := os.ReadFile(h.pluginO)
		if err != nil {
			t.Fatalf("plugin did not run: %v", err)
		}
		var req plugin.Request
		if err := json.Unmarshal(data, &req); err != nil {
			t.Fatalf("plugin input: %v", err)
		}
		if req.Gesture != "thanks" || req.Action != "record" || string(req.Config) != `{"note":"e2e"}` {
			t.Errorf("unexpected plugin request %+v", req)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp := h.expect(t, http.MethodGet, "/metrics", "", http.StatusOK)
		body := new(strings.Builder)
		if _, err := body.ReadFrom(resp.Body); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(body.String(), "mudra_frames_total 40") {
			t.Error("frame counter missing from /metrics")
		}
	})
}

func TestE2E_SettingsAndClip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	h := newHarness(t, []float64{0.2, 0, 0}, 0)
	h.expect(t, http.MethodPost, "/api/model/reload", "", http.StatusNoContent)

	var tun config.Tunables
	json.NewDecoder(h.expect(t, http.MethodPut, "/api/settings", `{"stride":3,"confidence_mode":"softmax"}`, http.StatusOK).Body).Decode(&tun)
	if tun.Stride != 3 || tun.ConfidenceMode != "softmax" {
		t.Errorf("settings not applied: %+v", tun)
	}
	var stored config.Tunables
	if err := h.store.Settings().GetJSON(app.SettingsKey, &stored); err != nil || stored.Stride != 3 {
		t.Errorf("settings not persisted: %+v, %v", stored, err)
	}
	h.expect(t, http.MethodPut, "/api/settings", `{"vote_window":0}`, http.StatusBadRequest)

	hand, _ := json.Marshal(detector.ThumbsUpLandmarks())
	frames := strings.Repeat(string(hand)+",", 9) + "null"
	var r gesture.Result
	json.NewDecoder(h.expect(t, http.MethodPost, "/api/classify", `{"frames":[`+frames+`]}`, http.StatusOK).Body).Decode(&r)
	if r.Label != "namaste" || !r.LowConfidence {
		t.Errorf("unexpected clip result %+v", r)
	}
	if r.DisplayConfidence <= 0 || r.DisplayConfidence >= 100 {
		t.Errorf("softmax confidence out of range: %v", r.DisplayConfidence)
	}
}
