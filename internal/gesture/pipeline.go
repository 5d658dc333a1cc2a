package gesture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
)

var (
	// ErrNotReady is returned by explicit operations while no metadata is installed.
	ErrNotReady = errors.New("gesture pipeline not ready")
	// ErrUnknownClass is returned when a class index has no label.
	ErrUnknownClass = errors.New("class index has no label")
)

// Config holds the pipeline tunables.
type Config struct {
	// SeqLen and FeatDim are used when the metadata does not set them.
	SeqLen  int
	FeatDim int

	Stride     int
	VoteWindow int
	// ConfidenceThreshold marks results with a lower raw score as low
	// confidence. It does not suppress them.
	ConfidenceThreshold float64
	Confidence          ConfidenceFunc
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		SeqLen:              model.DefaultSeqLen,
		FeatDim:             model.DefaultFeatDim,
		Stride:              2,
		VoteWindow:          15,
		ConfidenceThreshold: 0.60,
		Confidence:          LinearConfidence(5, 10),
	}
}

// Validate checks the tunables are usable.
func (c Config) Validate() error {
	switch {
	case c.SeqLen < 0 || c.FeatDim < 0:
		return fmt.Errorf("seq_len and feat_dim must not be negative")
	case c.Stride < 1:
		return fmt.Errorf("stride must be at least 1, got %d", c.Stride)
	case c.VoteWindow < 1:
		return fmt.Errorf("vote_window must be at least 1, got %d", c.VoteWindow)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("confidence_threshold must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	return nil
}

// Result is one frame's stable gesture.
type Result struct {
	Label             string    `json:"label"`
	ClassIndex        int       `json:"class_index"`
	RawScore          float64   `json:"raw_score"`
	DisplayConfidence float64   `json:"display_confidence"`
	LowConfidence     bool      `json:"low_confidence"`
	At                time.Time `json:"at"`
}

// Status is a point-in-time summary of a pipeline.
type Status struct {
	Ready      bool     `json:"ready"`
	Label      string   `json:"label,omitempty"`
	Labels     []string `json:"labels"`
	SeqLen     int      `json:"seq_len"`
	FeatDim    int      `json:"feat_dim"`
	Stride     int      `json:"stride"`
	VoteWindow int      `json:"vote_window"`
	Frames     uint64   `json:"frames"`
	Inferences uint64   `json:"inferences"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// session is everything a metadata install or reset replaces.
type session struct {
	meta      *model.Metadata
	extractor *Extractor
	scheduler *Scheduler
	smoother  *VoteSmoother
	label     string
}

// Pipeline turns landmark sets into stable gesture results. Until metadata is
// installed it is not ready and Step returns nothing.
type Pipeline struct {
	mu         sync.Mutex
	cfg        Config
	classifier model.Classifier
	meta       *model.Metadata
	cur        *session
	gate       atomic.Bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New returns a pipeline that is not ready yet.
func New(cfg Config, classifier model.Classifier, opts ...Option) (*Pipeline, error) {
	if cfg.Confidence == nil {
		cfg.Confidence = DefaultConfig().Confidence
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, classifier: classifier}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger)
	p.metrics.SetReady(false)
	return p, nil
}

// Load reads metadata from src and installs it. On failure the installed
// metadata is dropped, the pipeline is not ready until the next successful
// Load, and the error is a *model.MetadataError.
func (p *Pipeline) Load(ctx context.Context, src model.MetadataSource) error {
	meta, err := src.Load(ctx)
	if err != nil {
		var me *model.MetadataError
		if !errors.As(err, &me) {
			err = &model.MetadataError{Source: fmt.Sprintf("%T", src), Err: err}
		}
		p.unload()
		p.logger.Warn("model metadata load failed", "err", err)
		return err
	}
	p.Install(meta)
	return nil
}

func (p *Pipeline) unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta = nil
	p.cur = nil
	p.metrics.SetReady(false)
}

// Install makes meta current and starts from an empty window and vote history.
func (p *Pipeline) Install(meta *model.Metadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta = meta.WithDefaults(p.cfg.SeqLen, p.cfg.FeatDim)
	p.resetLocked()
	p.metrics.SetReady(true)
	p.logger.Info("model metadata installed",
		"classes", p.meta.NumClasses(), "seq_len", p.meta.SeqLen, "feat_dim", p.meta.FeatDim)
}

// Configure replaces the tunables and resets the pipeline state.
func (p *Pipeline) Configure(cfg Config) error {
	if cfg.Confidence == nil {
		cfg.Confidence = DefaultConfig().Confidence
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	if p.meta != nil {
		p.resetLocked()
	}
	return nil
}

// SetClassifier swaps the classifier and resets the pipeline state. The
// previous classifier is returned for the caller to close.
func (p *Pipeline) SetClassifier(c model.Classifier) model.Classifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.classifier
	p.classifier = c
	if p.meta != nil {
		p.resetLocked()
	}
	return prev
}

// Reset empties the window and vote history. An inference already in flight
// finishes but does not affect the new state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.meta != nil {
		p.resetLocked()
	}
}

func (p *Pipeline) resetLocked() {
	meta := p.meta
	buf := NewSequenceBuffer(meta.SeqLen, meta.FeatDim)
	p.cur = &session{
		meta:      meta,
		extractor: NewExtractor(meta.FeatDim),
		scheduler: NewScheduler(buf, p.classifier, SchedulerConfig{
			Stride:  p.cfg.Stride,
			Classes: meta.NumClasses(),
			Gate:    &p.gate,
			Logger:  p.logger,
			Metrics: p.metrics,
		}),
		smoother: NewVoteSmoother(p.cfg.VoteWindow, meta.Labels),
	}
}

// Ready reports whether metadata is installed.
func (p *Pipeline) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil
}

// Metadata returns the installed metadata, or nil.
func (p *Pipeline) Metadata() *model.Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta
}

// Config returns the current tunables.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Step processes one frame; hand is nil when no hand was detected. It reports
// false when the frame produced no result, which callers treat as "no update".
// Step never panics on classifier failure and never returns an error.
func (p *Pipeline) Step(ctx context.Context, hand *detector.HandLandmarks) (Result, bool) {
	p.metrics.Frame(hand != nil)

	p.mu.Lock()
	s := p.cur
	cfg := p.cfg
	p.mu.Unlock()
	if s == nil {
		return Result{}, false
	}

	pred, ok := s.scheduler.OnFrame(ctx, s.extractor.Extract(hand))
	if !ok {
		return Result{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != s {
		return Result{}, false
	}
	stable := s.smoother.Observe(pred.ClassIndex)
	label, ok := s.smoother.Label()
	if !ok {
		p.logger.Debug("stable class has no label", "class_index", stable, "classes", s.meta.NumClasses())
		return Result{}, false
	}
	if label != s.label {
		s.label = label
		p.metrics.LabelChanged(label)
	}
	return newResult(label, stable, pred, cfg), true
}

// ClassifyClip classifies a recorded clip in one call, fitting it to the
// window length first. No vote smoothing is applied. Errors are ErrNotReady,
// ErrUnknownClass or a *model.InferenceError.
func (p *Pipeline) ClassifyClip(ctx context.Context, hands []*detector.HandLandmarks) (Result, error) {
	p.mu.Lock()
	s := p.cur
	cfg := p.cfg
	p.mu.Unlock()
	if s == nil {
		return Result{}, ErrNotReady
	}

	vecs := make([]FeatureVector, len(hands))
	for i, h := range hands {
		vecs[i] = s.extractor.Extract(h)
	}
	buf := NewSequenceBuffer(s.meta.SeqLen, s.meta.FeatDim)
	for _, v := range FitSequence(vecs, s.meta.SeqLen, s.meta.FeatDim) {
		buf.Push(v)
	}

	pred, err := s.scheduler.Classify(ctx, buf.Tensor())
	if err != nil {
		return Result{}, err
	}
	label, ok := s.meta.Label(pred.ClassIndex)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownClass, pred.ClassIndex)
	}
	return newResult(label, pred.ClassIndex, pred, cfg), nil
}

// Status summarises the pipeline.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{Stride: p.cfg.Stride, VoteWindow: p.cfg.VoteWindow}
	if p.cur == nil {
		return st
	}
	st.Ready = true
	st.Label = p.cur.label
	st.Labels = p.meta.Labels
	st.SeqLen = p.meta.SeqLen
	st.FeatDim = p.meta.FeatDim
	st.Frames = p.cur.scheduler.Frames()
	st.Inferences = p.cur.scheduler.Attempts()
	return st
}

func newResult(label string, index int, pred RawPrediction, cfg Config) Result {
	return Result{
		Label:             label,
		ClassIndex:        index,
		RawScore:          pred.Score,
		DisplayConfidence: cfg.Confidence(pred),
		LowConfidence:     pred.Score < cfg.ConfidenceThreshold,
		At:                time.Now(),
	}
}
