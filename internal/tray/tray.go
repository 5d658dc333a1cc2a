// Package tray shows the recognizer in the system tray: the last stable
// gesture, an enable switch, model reload and quit.
package tray

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

const reloadTimeout = 10 * time.Second

// Controller is the part of the app the tray drives.
type Controller interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
	Reload(ctx context.Context) error
}

// Options configures a Tray.
type Options struct {
	// SettingsURL is opened in the browser from the menu. Empty hides the item.
	SettingsURL string
	// OnQuit runs before the tray exits.
	OnQuit func()
	Logger *slog.Logger
}

// Tray is the system tray menu.
type Tray struct {
	ctrl   Controller
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	last *gesture.Result

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a tray for ctrl.
func New(ctrl Controller, opts Options) *Tray {
	return &Tray{ctrl: ctrl, opts: opts, logger: logging.OrDefault(opts.Logger)}
}

// Run shows the tray and blocks until Quit. On macOS it must be called from
// the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra gesture recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.ctrl.IsEnabled()), "Toggle gesture recognition")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last stable gesture")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuReload := systray.AddMenuItem("Reload Model", "Re-read the model metadata")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	if t.opts.SettingsURL == "" {
		menuSettings.Hide()
	}
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.toggle()
			case <-menuReload.ClickedCh:
				t.reload()
			case <-menuSettings.ClickedCh:
				if err := openBrowser(t.opts.SettingsURL); err != nil {
					t.logger.Warn("failed to open settings", "url", t.opts.SettingsURL, "error", err)
				}
			case <-menuQuit.ClickedCh:
				if t.opts.OnQuit != nil {
					t.opts.OnQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// toggle flips recognition and returns the new state.
func (t *Tray) toggle() bool {
	enabled := !t.ctrl.IsEnabled()
	t.ctrl.SetEnabled(enabled)

	t.mu.Lock()
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	t.mu.Unlock()
	return enabled
}

func (t *Tray) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := t.ctrl.Reload(ctx); err != nil {
		t.logger.Warn("model reload from tray failed", "error", err)
		return
	}
	t.ShowResult(gesture.Result{})
}

// ShowResult displays r as the last gesture. A result with an empty label
// clears the display. It is meant to be registered as a label-change callback.
func (t *Tray) ShowResult(r gesture.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.Label == "" {
		t.last = nil
	} else {
		t.last = &r
	}
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(t.last))
	}
}

// Last returns the displayed result, if any.
func (t *Tray) Last() (gesture.Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return gesture.Result{}, false
	}
	return *t.last, true
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(r *gesture.Result) string {
	if r == nil {
		return "Last: none"
	}
	title := fmt.Sprintf("Last: %s (%.0f%%)", r.Label, r.DisplayConfidence)
	if r.LowConfidence {
		title += " ?"
	}
	return title
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
