package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
)

// SourceConfig controls frame pacing for a camera Source.
type SourceConfig struct {
	// FPS is the capture rate while the scene is active.
	FPS int
	// IdleFPS is the capture rate while Motion reports an idle scene.
	IdleFPS int
	// Motion gates detection on scene activity. Nil detects on every frame.
	Motion *Motion
	Logger *slog.Logger
}

// Source reads camera frames, runs hand detection, and yields one
// observation per detected frame. Frames captured while the scene is idle
// are not passed to the detector and produce no observation.
type Source struct {
	cam    Camera
	det    detector.Detector
	motion *Motion
	logger *slog.Logger

	mu      sync.Mutex
	fps     int
	idleFPS int
	ticker  *time.Ticker
	period  time.Duration

	watchers atomic.Int32
	preview  atomic.Pointer[[]byte]
}

var _ detector.Source = (*Source)(nil)

// NewSource returns a source over an open camera.
func NewSource(cam Camera, det detector.Detector, cfg SourceConfig) *Source {
	if cfg.FPS <= 0 {
		cfg.FPS = cam.FPS()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.IdleFPS <= 0 || cfg.IdleFPS > cfg.FPS {
		cfg.IdleFPS = cfg.FPS
	}
	cam.SetFPS(cfg.FPS)
	return &Source{
		cam:     cam,
		det:     det,
		motion:  cfg.Motion,
		logger:  logging.OrDefault(cfg.Logger),
		fps:     cfg.FPS,
		idleFPS: cfg.IdleFPS,
	}
}

// Next blocks until a frame has been captured and run through the detector.
// A closed camera ends the source with ErrCameraNotOpen; other read and
// detection failures are logged and the frame is skipped.
func (s *Source) Next(ctx context.Context) (detector.Observation, error) {
	for {
		select {
		case <-ctx.Done():
			return detector.Observation{}, ctx.Err()
		case <-s.tick():
		}

		obs, ok, err := s.capture(time.Now())
		if err != nil {
			return detector.Observation{}, err
		}
		if ok {
			return obs, nil
		}
	}
}

func (s *Source) capture(now time.Time) (detector.Observation, bool, error) {
	frame, err := s.cam.ReadFrame()
	if err != nil {
		if errors.Is(err, ErrCameraNotOpen) || errors.Is(err, ErrNoMoreFrames) {
			return detector.Observation{}, false, err
		}
		s.logger.Warn("frame read failed", "error", err)
		return detector.Observation{}, false, nil
	}
	defer frame.Close()

	if s.watchers.Load() > 0 {
		s.encodePreview(frame)
	}

	if s.motion != nil {
		active, changed := s.motion.Observe(frame, now)
		s.pace(active)
		if !active {
			return detector.Observation{}, false, nil
		}
		s.logger.Debug("motion", "changed_pct", changed)
	}

	hands, err := s.det.Detect(frame)
	if err != nil {
		s.logger.Warn("hand detection failed", "error", err)
		return detector.Observation{}, false, nil
	}
	return detector.Observation{Hand: detector.Primary(hands), At: now}, true, nil
}

func (s *Source) encodePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		s.logger.Debug("preview encode failed", "error", err)
		return
	}
	defer buf.Close()
	jpeg := append([]byte(nil), buf.GetBytes()...)
	s.preview.Store(&jpeg)
}

// Watch asks the source to keep a JPEG of the latest frame. Call the
// returned function when the preview is no longer needed.
func (s *Source) Watch() (release func()) {
	s.watchers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			if s.watchers.Add(-1) == 0 {
				s.preview.Store(nil)
			}
		})
	}
}

// Preview returns the latest JPEG frame, or nil when none is available.
func (s *Source) Preview() []byte {
	if p := s.preview.Load(); p != nil {
		return *p
	}
	return nil
}

// pace switches between the active and idle frame rates.
func (s *Source) pace(active bool) {
	fps := s.idleFPS
	if active {
		fps = s.fps
	}
	if s.cam.FPS() != fps {
		s.logger.Debug("capture rate changed", "fps", fps, "active", active)
		s.cam.SetFPS(fps)
	}
}

func (s *Source) tick() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	fps := s.cam.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	period := time.Second / time.Duration(fps)
	if s.ticker == nil {
		s.ticker = time.NewTicker(period)
		s.period = period
	} else if period != s.period {
		s.ticker.Reset(period)
		s.period = period
	}
	return s.ticker.C
}

// Close stops the frame clock. The camera and detector stay open.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}
