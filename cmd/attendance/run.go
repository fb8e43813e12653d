package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/integrations/opencv"
	"face-attendance-go/internal/services"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recognize faces from the camera and record attendance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.runAttendance(cmd.Context(), cmd.OutOrStdout(), runOptions{
			window: application.cfg.Camera.Window && !headless,
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "run without a preview window")
	rootCmd.AddCommand(runCmd)
}

// runOptions steuert Ausgaben und Empfänger eines Laufs
type runOptions struct {
	window   bool
	sinks    []pipeline.FrameSink
	handlers []pipeline.EventHandler
}

// runAttendance lädt die bekannten Gesichter und verarbeitet die Kamera bis zum Stoppsignal.
// Ein Kameraausfall beendet nur den Lauf.
func (a *app) runAttendance(ctx context.Context, out io.Writer, opts runOptions) error {
	names, err := a.loader.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, a.tr("run.no_known_faces", nil))
		return nil
	}

	providers, err := a.loadProviders(ctx)
	if err != nil {
		return err
	}

	result, err := enrollment.NewLoader(a.cfg.Enrollment, providers.Detector, providers.Encoder).Load(ctx)
	if err != nil {
		return err
	}
	if len(result.Set) == 0 {
		fmt.Fprintln(out, a.tr("run.no_known_faces", nil))
		return nil
	}
	a.metrics.SetKnownIdentities(len(result.Set))

	pipelineOpts := []pipeline.Option{
		pipeline.WithMetrics(a.metrics),
		pipeline.WithEventHandler(services.NewNotifierService(a.cfg.Server.SnapshotDir)),
	}
	if h := a.startMQTT(result.Set.Names()); h != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithEventHandler(h))
	}
	for _, h := range opts.handlers {
		pipelineOpts = append(pipelineOpts, pipeline.WithEventHandler(h))
	}

	matcher := recognition.NewMatcher(result.Set, a.cfg.Recognition.Tolerance)
	p := pipeline.New(pipeline.Config{
		Scale:   a.cfg.Pipeline.Scale,
		Workers: a.cfg.Pipeline.Workers,
	}, providers.Detector, providers.Encoder, matcher, a.ledger, pipelineOpts...)
	defer p.Close()

	source, err := opencv.OpenCamera(a.cfg.Camera)
	if err != nil {
		return err
	}
	defer source.Close()

	sink := pipeline.MultiSink(opts.sinks)
	if opts.window {
		window := opencv.NewWindowSink(a.cfg.Camera.WindowTitle)
		defer window.Close()
		sink = append(sink, window)
	}

	fmt.Fprintln(out, a.tr("run.started", map[string]interface{}{"Count": matcher.Len()}))

	a.tracker.set(p)
	stats, err := p.Run(ctx, source, sink)
	a.tracker.finish(stats)

	var captureErr *pipeline.CaptureError
	if errors.As(err, &captureErr) {
		fmt.Fprintln(out, a.tr("run.capture_error", map[string]interface{}{"Error": captureErr.Err}))
		err = nil
	}

	// Die Zusammenfassung wird auch nach Strg+C geschrieben
	if _, saveErr := a.runs.SaveRun(context.WithoutCancel(ctx), a.cfg.Camera.Device, stats); saveErr != nil {
		log.Warnf("Failed to save run summary: %v", saveErr)
	}

	fmt.Fprintln(out, a.tr("run.finished", map[string]interface{}{
		"Reason":         stats.StopReason,
		"Recorded":       stats.Recorded,
		"AlreadyPresent": stats.AlreadyPresent,
		"Unknown":        stats.Unknown,
	}))
	return err
}
