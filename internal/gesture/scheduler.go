package gesture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
)

const tracerName = "github.com/ayusman/mudra/internal/gesture"

// RawPrediction is the arg-max of one classifier output.
type RawPrediction struct {
	ClassIndex int
	Score      float64
	// Scores is the full output the prediction was taken from.
	Scores []float64
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Stride is the frame interval between inferences once the window is full.
	Stride int
	// Classes is the expected length of every classifier output. Zero
	// accepts any length.
	Classes int
	// Gate, when set, is shared with other schedulers so that at most one
	// inference runs across all of them.
	Gate    *atomic.Bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Scheduler pushes every frame into its window and runs the classifier on the
// frames where the window is full and the frame count is a multiple of the
// stride. At most one inference is in flight; an eligible frame arriving while
// one is pending is dropped from scheduling.
type Scheduler struct {
	mu         sync.Mutex
	buf        *SequenceBuffer
	classifier model.Classifier
	stride     uint64
	classes    int
	frames     uint64
	attempts   uint64
	epoch      uint64

	busy    *atomic.Bool
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewScheduler returns a scheduler feeding buf to classifier.
func NewScheduler(buf *SequenceBuffer, classifier model.Classifier, cfg SchedulerConfig) *Scheduler {
	stride := cfg.Stride
	if stride < 1 {
		stride = 1
	}
	gate := cfg.Gate
	if gate == nil {
		gate = new(atomic.Bool)
	}
	return &Scheduler{
		buf:        buf,
		classifier: classifier,
		stride:     uint64(stride),
		classes:    cfg.Classes,
		busy:       gate,
		logger:     logging.OrDefault(cfg.Logger),
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(tracerName),
	}
}

// OnFrame pushes features and, when the frame is eligible, classifies the
// window. It reports false when no prediction was produced for this frame:
// not eligible, dropped, failed, or made stale by a Reset.
func (s *Scheduler) OnFrame(ctx context.Context, features FeatureVector) (RawPrediction, bool) {
	s.mu.Lock()
	s.buf.Push(features)
	s.frames++
	frame := s.frames
	if !s.buf.IsFull() || frame%s.stride != 0 {
		s.mu.Unlock()
		return RawPrediction{}, false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.metrics.Dropped()
		s.logger.Debug("inference in flight, window skipped", "frame", frame)
		return RawPrediction{}, false
	}
	input := s.buf.Tensor()
	epoch := s.epoch
	s.attempts++
	s.mu.Unlock()

	pred, err := s.infer(ctx, input, frame)
	s.busy.Store(false)
	if err != nil {
		s.logger.Warn("inference failed", "frame", frame, "err", err)
		return RawPrediction{}, false
	}

	s.mu.Lock()
	stale := epoch != s.epoch
	s.mu.Unlock()
	if stale {
		s.logger.Debug("discarding inference from before reset", "frame", frame)
		return RawPrediction{}, false
	}
	return pred, true
}

// Classify runs the classifier once on input outside the frame cadence.
// Errors are *model.InferenceError.
func (s *Scheduler) Classify(ctx context.Context, input model.Tensor) (RawPrediction, error) {
	return s.infer(ctx, input, 0)
}

func (s *Scheduler) infer(ctx context.Context, input model.Tensor, frame uint64) (pred RawPrediction, err error) {
	ctx, span := s.tracer.Start(ctx, "gesture.classify", trace.WithAttributes(
		attribute.Int64("gesture.frame", int64(frame)),
		attribute.Int("gesture.seq_len", input.SeqLen),
		attribute.Int("gesture.feat_dim", input.FeatDim),
	))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &model.InferenceError{Err: fmt.Errorf("classifier panic: %v", r)}
		}
		s.metrics.Inference(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("gesture.class_index", pred.ClassIndex),
				attribute.Float64("gesture.score", pred.Score),
			)
		}
		span.End()
	}()

	if s.classifier == nil {
		return RawPrediction{}, &model.InferenceError{Err: model.ErrClassifierClosed}
	}
	scores, err := s.classifier.Classify(ctx, input)
	if err != nil {
		return RawPrediction{}, &model.InferenceError{Err: err}
	}
	if err := model.ValidateOutput(scores); err != nil {
		return RawPrediction{}, &model.InferenceError{Err: err}
	}
	if s.classes > 0 && len(scores) != s.classes {
		return RawPrediction{}, &model.InferenceError{
			Err: fmt.Errorf("%w: %d scores for %d classes", model.ErrMalformedOutput, len(scores), s.classes),
		}
	}
	idx := floats.MaxIdx(scores)
	return RawPrediction{ClassIndex: idx, Score: scores[idx], Scores: scores}, nil
}

// Frames is the number of frames seen since the last Reset.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Attempts is the number of inferences started since the last Reset.
func (s *Scheduler) Attempts() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Reset empties the window and restarts the frame count. A pending inference
// completes but its prediction is discarded.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.frames = 0
	s.attempts = 0
	s.epoch++
}
