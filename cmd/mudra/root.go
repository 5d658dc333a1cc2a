package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mudra",
		Short:         "Mudra recognizes hand gestures",
		Long:          `Mudra turns a stream of hand landmarks into stable gesture labels and runs plugin actions bound to them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./mudra.yaml or ~/.mudra/mudra.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn or error")

	root.AddCommand(newServeCmd(opts), newReplayCmd(opts), newVersionCmd())
	return root
}

// load reads the configuration and builds the logger for it.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger := logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newClassifier builds the configured classifier backend.
func newClassifier(c config.ClassifierConfig) (model.Classifier, error) {
	switch c.Kind {
	case "http":
		return model.NewHTTPClassifier(c.URL, c.Timeout), nil
	case "process":
		return model.NewProcessClassifier(model.ProcessConfig{
			Python:      c.Python,
			Script:      c.Script,
			ModelPath:   c.ModelPath,
			Timeout:     c.Timeout,
			IdleTimeout: 30 * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", c.Kind)
	}
}

// recognizer is a pipeline with the classifier and metadata source it was
// built from.
type recognizer struct {
	pipeline   *gesture.Pipeline
	classifier model.Classifier
	meta       model.MetadataSource
}

func (r *recognizer) Close() error {
	return r.classifier.Close()
}

// newRecognizer builds the pipeline for cfg and loads the model metadata. A
// metadata failure is returned alongside a usable recognizer whose pipeline
// stays not ready.
func newRecognizer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*recognizer, error) {
	classifier, err := newClassifier(cfg.Model.Classifier)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	gcfg, err := cfg.Pipeline.Gesture()
	if err != nil {
		classifier.Close()
		return nil, err
	}
	p, err := gesture.New(gcfg, classifier, gesture.WithLogger(logger), gesture.WithMetrics(m))
	if err != nil {
		classifier.Close()
		return nil, err
	}
	r := &recognizer{pipeline: p, classifier: classifier, meta: model.NewMetadataSource(cfg.Model.Meta)}
	return r, p.Load(ctx, r.meta)
}
