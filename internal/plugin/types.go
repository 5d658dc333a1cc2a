// Package plugin discovers action plugins and runs them when a gesture label
// becomes stable.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities. It is read from
// plugin.json in the plugin's directory.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action        string          `json:"action"`
	Gesture       string          `json:"gesture"`
	Confidence    float64         `json:"confidence"`
	LowConfidence bool            `json:"low_confidence,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// HasAction reports whether the manifest declares action.
func (p *Plugin) HasAction(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}
