// Command system-control is a mudra plugin for volume, brightness and media
// keys on macOS. Volume actions accept {"step": n} in the binding config
// (default 10).
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ayusman/mudra/internal/plugin"
)

const defaultStep = 10

type controlConfig struct {
	Step int `json:"step"`
}

// keyCodes are the System Events key codes of the media and brightness keys.
var keyCodes = map[string]int{
	"brightness-up":    144,
	"brightness-down":  145,
	"media-play-pause": 100,
	"media-next":       101,
	"media-prev":       98,
}

func main() {
	if err := plugin.Serve(os.Stdin, os.Stdout, handle); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(req *plugin.Request) (any, error) {
	script, err := scriptFor(req)
	if err != nil {
		return nil, err
	}
	if err := runAppleScript(script); err != nil {
		return nil, err
	}
	return nil, nil
}

// scriptFor returns the AppleScript that performs req.Action.
func scriptFor(req *plugin.Request) (string, error) {
	cfg := controlConfig{Step: defaultStep}
	if err := req.DecodeConfig(&cfg); err != nil {
		return "", err
	}
	if cfg.Step <= 0 || cfg.Step > 100 {
		return "", fmt.Errorf("step must be within 1..100, got %d", cfg.Step)
	}

	switch req.Action {
	case "volume-up":
		return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, cfg.Step), nil
	case "volume-down":
		return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) - %d)`, cfg.Step), nil
	case "volume-mute":
		return `set volume output muted (not (output muted of (get volume settings)))`, nil
	}
	if code, ok := keyCodes[req.Action]; ok {
		return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code), nil
	}
	return "", fmt.Errorf("unknown action: %s", req.Action)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}
