// Command keyboard is a mudra plugin that sends keystrokes on macOS through
// AppleScript. The binding config selects the key:
//
//	{"key": "c", "modifiers": ["command"]}
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
)

// keyConfig is the binding config for keystroke and shortcut actions.
type keyConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	if err := plugin.Serve(os.Stdin, os.Stdout, handle); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(req *plugin.Request) (any, error) {
	switch req.Action {
	case "keystroke", "shortcut":
	default:
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}

	var cfg keyConfig
	if err := req.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("config.key is required")
	}
	if err := runAppleScript(keystrokeScript(cfg.Key, cfg.Modifiers)); err != nil {
		return nil, err
	}
	return map[string]string{"gesture": req.Gesture, "key": cfg.Key}, nil
}

// keystrokeScript builds the System Events command for key. Unknown
// modifiers are ignored.
func keystrokeScript(key string, modifiers []string) string {
	var mods []string
	for _, m := range modifiers {
		if am, ok := modifierMap[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}
	key = strings.ReplaceAll(key, `"`, `\"`)
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, strings.Join(mods, ", "))
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}
