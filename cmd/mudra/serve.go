package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/publish"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Recognize gestures from the camera and serve the web UI",
		Long: `Serve opens the camera, runs hand detection and the gesture pipeline,
triggers bound plugin actions and serves the HTTP API, the live result
stream and the settings UI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "mudra.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rec, err := newRecognizer(ctx, cfg, m, logger)
	if rec == nil {
		return err
	}
	defer rec.Close()
	if err != nil {
		// the API can reload once the metadata is fixed
		logger.Warn("starting without model metadata", "error", err)
	}

	src, closeSource, err := openCamera(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	plugins := plugin.NewManager(cfg.Plugins.Dir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "error", err)
	}

	a, err := app.New(app.Config{
		Pipeline: rec.pipeline,
		Source:   src,
		Metadata: rec.meta,
		Settings: cfg.Pipeline,
		Store:    st,
		Plugins:  plugins,
		Executor: plugin.NewExecutor(cfg.Plugins.Timeout),
		Limiter:  plugin.NewLimiter(cfg.Plugins.MinInterval),
		Queue:    cfg.Pipeline.Queue,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)
	a.OnResult(hub.Broadcast)

	if cfg.NATS.URL != "" {
		pub, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		a.OnLabelChange(pub.Handler())
	}

	srv := server.New(server.Config{
		StaticDir:  resolveStaticDir(cfg.Server.StaticDir),
		Store:      st,
		Recognizer: a,
		Settings:   a,
		Plugins:    plugins,
		Hub:        hub,
		Preview:    src,
		Gatherer:   reg,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()

	if !cfg.Tray.Enabled {
		return srv.Run(ctx, cfg.Server.Addr)
	}

	t := tray.New(a, tray.Options{
		SettingsURL: settingsURL(cfg.Server.Addr),
		OnQuit:      cancel,
		Logger:      logger,
	})
	a.OnLabelChange(t.ShowResult)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, cfg.Server.Addr)
		t.Quit()
	}()
	t.Run()
	cancel()
	return <-errCh
}

// openCamera opens the configured camera behind a MediaPipe detector.
func openCamera(cfg *config.Config, logger *slog.Logger) (*capture.Source, func(), error) {
	camCfg := capture.DefaultCameraConfig()
	camCfg.DeviceID = cfg.Camera.ID
	camCfg.FPS = cfg.Camera.FPS
	cam := capture.NewCamera(camCfg)
	if err := cam.Open(); err != nil {
		return nil, nil, fmt.Errorf("open camera %d: %w", cfg.Camera.ID, err)
	}

	det, err := detector.NewMediaPipeDetector(cfg.Detector.Detector())
	if err != nil {
		cam.Close()
		return nil, nil, fmt.Errorf("hand detector: %w", err)
	}

	var motion *capture.Motion
	if cfg.Camera.MotionThreshold > 0 {
		motion = capture.NewMotion(capture.MotionConfig{
			Threshold: cfg.Camera.MotionThreshold,
			IdleAfter: cfg.Camera.IdleAfter,
		})
	}

	src := capture.NewSource(cam, det, capture.SourceConfig{
		FPS:     cfg.Camera.FPS,
		IdleFPS: cfg.Camera.IdleFPS,
		Motion:  motion,
		Logger:  logger,
	})
	closeAll := func() {
		src.Close()
		det.Close()
		cam.Close()
		if motion != nil {
			motion.Close()
		}
	}
	return src, closeAll, nil
}

// resolveStaticDir returns dir when set, otherwise the first web directory
// found next to the working directory or under ~/.mudra.
func resolveStaticDir(dir string) string {
	if dir != "" {
		return config.ExpandHome(dir)
	}
	candidates := []string{"web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mudra", "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}
