package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Observation is one landmark-detection result handed to the pipeline.
// Hand is nil when the frame was processed and no hand was found; that is
// different from "no new result yet", which is simply the absence of an
// Observation on the channel.
type Observation struct {
	Hand *HandLandmarks
	At   time.Time
}

// Source yields observations in temporal order.
// Next blocks until the next observation is available and returns io.EOF
// when the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Observation, error)
}

// Stream reads from src and forwards observations on out until the source
// ends or ctx is cancelled. Sends block when out is full so that no
// observation is silently dropped.
func Stream(ctx context.Context, src Source, out chan<- Observation) error {
	for {
		obs, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		select {
		case out <- obs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// replayRecord is one line of a landmark recording.
type replayRecord struct {
	Hand *HandLandmarks `json:"hand"`
	T    int64          `json:"t,omitempty"` // milliseconds since the start of the recording
}

// ReplaySource plays back a JSON-lines landmark recording.
// Each line is {"hand": {...} | null, "t": <ms>}; blank lines and lines
// starting with '#' are skipped.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	start   time.Time
	line    int
}

// NewReplaySource reads a recording from r.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	s := &ReplaySource{scanner: sc, start: time.Now()}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenReplay opens a recording file.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return NewReplaySource(f), nil
}

// Next returns the next recorded observation.
func (s *ReplaySource) Next(ctx context.Context) (Observation, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Observation{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Observation{}, fmt.Errorf("read recording: %w", err)
			}
			return Observation{}, io.EOF
		}
		s.line++

		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec replayRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return Observation{}, fmt.Errorf("recording line %d: %w", s.line, err)
		}
		return Observation{
			Hand: rec.Hand,
			At:   s.start.Add(time.Duration(rec.T) * time.Millisecond),
		}, nil
	}
}

// Close closes the underlying reader if it is closable.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SliceSource serves a fixed list of observations; handy for tests and clips.
type SliceSource struct {
	hands []*HandLandmarks
	pos   int
}

// NewSliceSource returns a source that yields hands in order, then io.EOF.
func NewSliceSource(hands []*HandLandmarks) *SliceSource {
	return &SliceSource{hands: hands}
}

// Next returns the next hand.
func (s *SliceSource) Next(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	if s.pos >= len(s.hands) {
		return Observation{}, io.EOF
	}
	h := s.hands[s.pos]
	s.pos++
	return Observation{Hand: h, At: time.Now()}, nil
}
