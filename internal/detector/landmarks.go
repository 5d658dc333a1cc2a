// Package detector provides hand landmark types and the detectors that produce them.
package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrLandmarkCount is returned when a landmark set does not hold exactly NumLandmarks points.
var ErrLandmarkCount = errors.New("landmark set must have exactly 21 points")

// Point3D is one keypoint in relative image coordinates.
// Z is optional on the wire and decodes to 0 when absent.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the landmark set for a single detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64               `json:"score,omitempty"`
}

// NewHandLandmarks builds a landmark set from a slice, enforcing the point count.
func NewHandLandmarks(points []Point3D) (*HandLandmarks, error) {
	if len(points) != NumLandmarks {
		return nil, fmt.Errorf("%w: got %d", ErrLandmarkCount, len(points))
	}
	h := &HandLandmarks{}
	copy(h.Points[:], points)
	return h, nil
}

// UnmarshalJSON decodes a landmark set and rejects anything other than 21 points,
// which a fixed-size array would otherwise silently pad or truncate.
func (h *HandLandmarks) UnmarshalJSON(data []byte) error {
	var raw struct {
		Points     []Point3D `json:"points"`
		Handedness string    `json:"handedness"`
		Score      float64   `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Points) != NumLandmarks {
		return fmt.Errorf("%w: got %d", ErrLandmarkCount, len(raw.Points))
	}
	copy(h.Points[:], raw.Points)
	h.Handedness = raw.Handedness
	h.Score = raw.Score
	return nil
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
