// Package app runs the recognizer: it moves observations from a landmark
// source through the gesture pipeline and hands results to consumers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// SettingsKey is the settings row holding the persisted tunables.
const SettingsKey = "pipeline.tunables"

// DefaultQueue is the observation queue length when none is configured.
const DefaultQueue = 4

var (
	// ErrRunning is returned by Start when the app is already running.
	ErrRunning = errors.New("app is already running")
	// ErrNoSource is returned by Start when no landmark source is configured.
	ErrNoSource = errors.New("no landmark source configured")
)

// Config wires the app to its collaborators. Only Pipeline is required.
type Config struct {
	Pipeline *gesture.Pipeline
	// Source yields landmark observations, usually a camera-backed source.
	Source detector.Source
	// Metadata is re-read by Reload.
	Metadata model.MetadataSource
	// Settings is the file-level pipeline configuration that tunables are
	// applied on top of.
	Settings config.PipelineConfig

	Store    *store.Store
	Plugins  *plugin.Manager
	Executor *plugin.Executor
	Limiter  *plugin.Limiter

	// Queue is the number of observations buffered between detection and
	// the pipeline.
	Queue  int
	Logger *slog.Logger
}

// ResultFunc receives every non-empty pipeline result.
type ResultFunc func(gesture.Result)

// App is the running recognizer.
type App struct {
	cfg      Config
	pipeline *gesture.Pipeline
	logger   *slog.Logger

	mu        sync.RWMutex
	enabled   bool
	settings  config.PipelineConfig
	results   []ResultFunc
	changes   []ResultFunc
	lastLabel string
	cancel    context.CancelFunc
	done      chan struct{}
	runErr    error

	dispatch sync.WaitGroup
}

// New creates a stopped, enabled app. Tunables persisted in the store take
// precedence over cfg.Settings.
func New(cfg Config) (*App, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("app: pipeline is required")
	}
	if cfg.Queue <= 0 {
		cfg.Queue = DefaultQueue
	}
	a := &App{
		cfg:      cfg,
		pipeline: cfg.Pipeline,
		logger:   logging.OrDefault(cfg.Logger),
		enabled:  true,
		settings: cfg.Settings,
	}

	if cfg.Store != nil {
		var t config.Tunables
		err := cfg.Store.Settings().GetJSON(SettingsKey, &t)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			a.logger.Warn("stored settings unreadable, using file settings", "error", err)
		default:
			if err := a.configure(t); err != nil {
				a.logger.Warn("stored settings rejected, using file settings", "error", err)
			} else {
				a.logger.Info("restored stored settings", "stride", t.Stride, "vote_window", t.VoteWindow)
			}
		}
	}
	return a, nil
}

// Pipeline returns the gesture pipeline.
func (a *App) Pipeline() *gesture.Pipeline {
	return a.pipeline
}

// OnResult registers fn to receive every non-empty result. Callbacks run on
// the pipeline goroutine and must not block.
func (a *App) OnResult(fn ResultFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, fn)
}

// OnLabelChange registers fn to receive results whose stable label differs
// from the previous one.
func (a *App) OnLabelChange(fn ResultFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, fn)
}

// SetEnabled pauses or resumes recognition. While disabled, observations are
// consumed and discarded; pipeline state is kept.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled != enabled {
		a.logger.Info("recognition toggled", "enabled", enabled)
	}
	a.enabled = enabled
}

// IsEnabled reports whether recognition is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Running reports whether Start has been called without a matching stop.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done != nil
}

// Start launches the detection and pipeline goroutines. They stop when ctx
// is cancelled, Stop is called, or the source is exhausted.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		return ErrRunning
	}
	if a.cfg.Source == nil {
		return ErrNoSource
	}

	ctx, cancel := context.WithCancel(ctx)
	observations := make(chan detector.Observation, a.cfg.Queue)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	a.runErr = nil

	var workers sync.WaitGroup
	var streamErr error
	workers.Add(2)
	go func() {
		defer workers.Done()
		defer close(observations)
		streamErr = detector.Stream(ctx, a.cfg.Source, observations)
	}()
	go func() {
		defer workers.Done()
		a.consume(ctx, observations)
	}()
	go func() {
		workers.Wait()
		if errors.Is(streamErr, context.Canceled) {
			streamErr = nil
		}
		if streamErr != nil {
			a.logger.Error("landmark source failed", "error", streamErr)
		}
		a.mu.Lock()
		a.runErr = streamErr
		a.done = nil
		a.cancel = nil
		a.mu.Unlock()
		cancel()
		close(done)
	}()

	a.logger.Info("recognition started", "queue", a.cfg.Queue)
	return nil
}

// Wait blocks until the running goroutines have exited and returns the
// source error, if any. It returns nil immediately when the app is stopped.
func (a *App) Wait() error {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done != nil {
		<-done
	}
	a.dispatch.Wait()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runErr
}

// Stop cancels the goroutines and waits for them and for pending plugin
// dispatches.
func (a *App) Stop() {
	a.mu.RLock()
	cancel := a.cancel
	a.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	a.Wait()
	a.logger.Info("recognition stopped")
}

// consume steps the pipeline once per observation, in arrival order.
func (a *App) consume(ctx context.Context, observations <-chan detector.Observation) {
	for obs := range observations {
		if !a.IsEnabled() {
			continue
		}
		result, ok := a.pipeline.Step(ctx, obs.Hand)
		if !ok {
			continue
		}
		a.publish(ctx, result)
	}
}

// Feed steps one observation synchronously and publishes its result. It is
// used when the caller owns the frame loop.
func (a *App) Feed(ctx context.Context, obs detector.Observation) (gesture.Result, bool) {
	if !a.IsEnabled() {
		return gesture.Result{}, false
	}
	result, ok := a.pipeline.Step(ctx, obs.Hand)
	if ok {
		a.publish(ctx, result)
	}
	return result, ok
}

func (a *App) publish(ctx context.Context, result gesture.Result) {
	a.mu.Lock()
	results := a.results
	changes := a.changes
	changed := result.Label != a.lastLabel
	a.lastLabel = result.Label
	a.mu.Unlock()

	for _, fn := range results {
		fn(result)
	}
	if !changed {
		return
	}

	a.logger.Info("gesture", "label", result.Label, "raw_score", result.RawScore,
		"confidence", result.DisplayConfidence, "low_confidence", result.LowConfidence)
	a.record(result)
	a.trigger(ctx, result)
	for _, fn := range changes {
		fn(result)
	}
}

// ClassifyClip classifies a recorded clip without touching the live window.
func (a *App) ClassifyClip(ctx context.Context, hands []*detector.HandLandmarks) (gesture.Result, error) {
	return a.pipeline.ClassifyClip(ctx, hands)
}

// Reload re-reads the model metadata and restarts from an empty window.
// When the load fails the pipeline is not ready until a later Reload
// succeeds.
func (a *App) Reload(ctx context.Context) error {
	if a.cfg.Metadata == nil {
		return &model.MetadataError{Source: "none", Err: errors.New("no metadata source configured")}
	}
	err := a.pipeline.Load(ctx, a.cfg.Metadata)
	a.forgetLabel()
	return err
}

// Settings returns the current tunables.
func (a *App) Settings() config.Tunables {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.Tunables()
}

// ApplySettings reconfigures the pipeline, which resets it, and persists t.
func (a *App) ApplySettings(t config.Tunables) error {
	if err := a.configure(t); err != nil {
		return err
	}
	if a.cfg.Store != nil {
		if err := a.cfg.Store.Settings().SetJSON(SettingsKey, t); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
	}
	a.logger.Info("settings applied", "stride", t.Stride, "vote_window", t.VoteWindow,
		"confidence_threshold", t.ConfidenceThreshold, "confidence_mode", t.ConfidenceMode)
	return nil
}

func (a *App) configure(t config.Tunables) error {
	a.mu.RLock()
	next := a.settings.WithTunables(t)
	a.mu.RUnlock()

	gcfg, err := next.Gesture()
	if err != nil {
		return err
	}
	if err := a.pipeline.Configure(gcfg); err != nil {
		return err
	}

	a.mu.Lock()
	a.settings = next
	a.lastLabel = ""
	a.mu.Unlock()
	return nil
}

// Reset clears the pipeline window and vote history.
func (a *App) Reset() {
	a.pipeline.Reset()
	a.forgetLabel()
}

func (a *App) forgetLabel() {
	a.mu.Lock()
	a.lastLabel = ""
	a.mu.Unlock()
}

// Status is the pipeline status plus the enabled and running flags.
type Status struct {
	gesture.Status
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

// Status summarises the app.
func (a *App) Status() Status {
	return Status{
		Status:  a.pipeline.Status(),
		Enabled: a.IsEnabled(),
		Running: a.Running(),
	}
}
