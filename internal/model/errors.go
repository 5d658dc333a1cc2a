package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOutput is returned when a classifier answers with an empty
	// or non-finite score vector.
	ErrMalformedOutput = errors.New("malformed classifier output")

	// ErrClassifierClosed is returned by Classify after Close.
	ErrClassifierClosed = errors.New("classifier closed")
)

// MetadataError reports that model metadata could not be loaded or parsed.
// A pipeline that sees it stays not ready until a later load succeeds.
type MetadataError struct {
	Source string
	Err    error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("model metadata %s: %v", e.Source, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// InferenceError reports a failed classifier call for one window.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
