package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector finds hands in camera frames.
type Detector interface {
	// Detect returns the hands found in frame, best first.
	// An empty slice means no hand was detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect. The pipeline only
	// consumes the first one.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleTimeout shuts an external detector process down after this long
	// without requests. Zero disables the idle shutdown.
	IdleTimeout time.Duration
}

// DefaultConfig returns the single-hand configuration the recognizer is trained for.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}

// Primary returns the first detected hand, or nil when there is none.
func Primary(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	h := hands[0]
	return &h
}
