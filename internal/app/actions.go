package app

import (
	"context"
	"errors"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// record stores a label change in the event log.
func (a *App) record(result gesture.Result) {
	if a.cfg.Store == nil {
		return
	}
	err := a.cfg.Store.Events().Create(&store.Event{
		Label:         result.Label,
		ClassIndex:    result.ClassIndex,
		RawScore:      result.RawScore,
		Confidence:    result.DisplayConfidence,
		LowConfidence: result.LowConfidence,
		CreatedAt:     result.At,
	})
	if err != nil {
		a.logger.Warn("failed to record gesture event", "label", result.Label, "error", err)
	}
}

// trigger runs the plugin action bound to the result's label. Low-confidence
// results and labels inside their rate-limit interval are skipped. The plugin
// runs on its own goroutine so a slow action never stalls the pipeline.
func (a *App) trigger(ctx context.Context, result gesture.Result) {
	if a.cfg.Store == nil || a.cfg.Plugins == nil || a.cfg.Executor == nil {
		return
	}
	if result.LowConfidence {
		a.logger.Debug("low confidence, action skipped", "label", result.Label, "raw_score", result.RawScore)
		return
	}

	binding, err := a.cfg.Store.Bindings().GetByLabel(result.Label)
	if err != nil {
		a.logger.Warn("failed to look up binding", "label", result.Label, "error", err)
		return
	}
	if binding == nil || !binding.Enabled {
		return
	}
	if a.cfg.Limiter != nil && !a.cfg.Limiter.Allow(result.Label) {
		a.logger.Debug("action rate limited", "label", result.Label)
		return
	}

	p, err := a.cfg.Plugins.Get(binding.PluginName)
	if err != nil {
		a.logger.Warn("bound plugin unavailable", "label", result.Label, "plugin", binding.PluginName, "error", err)
		return
	}

	req := &plugin.Request{
		Action:        binding.ActionName,
		Gesture:       result.Label,
		Confidence:    result.DisplayConfidence,
		LowConfidence: result.LowConfidence,
		Config:        binding.Config,
	}

	a.dispatch.Add(1)
	go func() {
		defer a.dispatch.Done()
		resp, err := a.cfg.Executor.Execute(context.WithoutCancel(ctx), p, req)
		switch {
		case errors.Is(err, plugin.ErrTimeout):
			a.logger.Warn("plugin timed out", "plugin", p.Manifest.Name, "action", req.Action)
		case err != nil:
			a.logger.Warn("plugin failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
		case !resp.Success:
			a.logger.Warn("plugin reported failure", "plugin", p.Manifest.Name, "action", req.Action, "reason", resp.Error)
		default:
			a.logger.Info("action executed", "label", result.Label, "plugin", p.Manifest.Name, "action", req.Action)
		}
	}()
}
