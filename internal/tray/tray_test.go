package tray

import (
	"context"
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

type fakeController struct {
	enabled   bool
	reloads   int
	reloadErr error
}

func (f *fakeController) SetEnabled(enabled bool) { f.enabled = enabled }
func (f *fakeController) IsEnabled() bool         { return f.enabled }

func (f *fakeController) Reload(ctx context.Context) error {
	f.reloads++
	return f.reloadErr
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name string
		r    *gesture.Result
		want string
	}{
		{"none", nil, "Last: none"},
		{"confident", &gesture.Result{Label: "namaste", DisplayConfidence: 87.4}, "Last: namaste (87%)"},
		{"low confidence", &gesture.Result{Label: "stop", DisplayConfidence: 40, LowConfidence: true}, "Last: stop (40%) ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastTitle(tt.r); got != tt.want {
				t.Errorf("lastTitle() = %q, want %q", got, tt.want)
			}
		})
	}
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles must differ")
	}
}

func TestTray_Toggle(t *testing.T) {
	ctrl := &fakeController{enabled: true}
	tr := New(ctrl, Options{Logger: logging.NewNop()})

	if tr.toggle() || ctrl.enabled {
		t.Error("first toggle should disable")
	}
	if !tr.toggle() || !ctrl.enabled {
		t.Error("second toggle should enable")
	}
}

func TestTray_ShowResult(t *testing.T) {
	tr := New(&fakeController{}, Options{Logger: logging.NewNop()})
	if _, ok := tr.Last(); ok {
		t.Fatal("no result shown yet")
	}

	tr.ShowResult(gesture.Result{Label: "thanks", DisplayConfidence: 90})
	if r, ok := tr.Last(); !ok || r.Label != "thanks" {
		t.Errorf("Last() = %+v, %v", r, ok)
	}

	tr.ShowResult(gesture.Result{})
	if _, ok := tr.Last(); ok {
		t.Error("empty label should clear the display")
	}
}

func TestTray_Reload(t *testing.T) {
	ctrl := &fakeController{}
	tr := New(ctrl, Options{Logger: logging.NewNop()})
	tr.ShowResult(gesture.Result{Label: "stop"})

	ctrl.reloadErr = errors.New("bad metadata")
	tr.reload()
	if _, ok := tr.Last(); !ok {
		t.Error("failed reload should keep the last gesture")
	}

	ctrl.reloadErr = nil
	tr.reload()
	if _, ok := tr.Last(); ok {
		t.Error("successful reload should clear the last gesture")
	}
	if ctrl.reloads != 2 {
		t.Errorf("expected 2 reloads, got %d", ctrl.reloads)
	}
}
