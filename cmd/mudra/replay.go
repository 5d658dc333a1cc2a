package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

func newReplayCmd(opts *options) *cobra.Command {
	var clip bool
	cmd := &cobra.Command{
		Use:   "replay <file.jsonl>",
		Short: "Run a landmark recording through the pipeline",
		Long: `Replay feeds a JSON-lines landmark recording through the gesture pipeline and
prints one JSON result per line. With --clip the whole recording is
classified once as a single clip.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, opts, args[0], clip, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&clip, "clip", false, "classify the recording as one clip instead of frame by frame")
	return cmd
}

func runReplay(ctx context.Context, opts *options, path string, clip bool, out io.Writer) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	rec, err := newRecognizer(ctx, cfg, nil, logger)
	if rec == nil {
		return err
	}
	defer rec.Close()
	if err != nil {
		return fmt.Errorf("load model metadata: %w", err)
	}

	src, err := detector.OpenReplay(path)
	if err != nil {
		return err
	}
	defer src.Close()

	enc := json.NewEncoder(out)
	if clip {
		var hands []*detector.HandLandmarks
		for {
			obs, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			hands = append(hands, obs.Hand)
		}
		if len(hands) == 0 {
			return errors.New("recording is empty")
		}
		result, err := rec.pipeline.ClassifyClip(ctx, hands)
		if err != nil {
			return err
		}
		return enc.Encode(result)
	}

	a, err := app.New(app.Config{
		Pipeline: rec.pipeline,
		Source:   src,
		Settings: cfg.Pipeline,
		Queue:    cfg.Pipeline.Queue,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	var encErr error
	a.OnResult(func(r gesture.Result) {
		if encErr == nil {
			encErr = enc.Encode(r)
		}
	})
	if err := a.Start(ctx); err != nil {
		return err
	}
	if err := a.Wait(); err != nil {
		return err
	}
	return encErr
}
