package main

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/spf13/cobra"

	"facewatch/internal/capture"
	"facewatch/internal/config"
	"facewatch/internal/core"
	"facewatch/internal/gui"
	"facewatch/internal/metrics"
	"facewatch/internal/preview"
	"facewatch/internal/render"
)

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Open the desktop window (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGUI(cmd.Context())
	},
}

func runGUI(ctx context.Context) error {
	parts, err := buildPipelineParts(cfg, logger)
	if err != nil {
		return err
	}
	defer parts.Close()

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.MediaVideoIcon())

	video := gui.NewVideoCanvas(config.DisplayWidth, config.DisplayHeight)
	pipelineMetrics := metrics.NewPipeline()

	var sink core.DisplaySink = video
	var server *preview.Server
	if cfg.PreviewAddr != "" {
		server, err = startPreview(ctx, cfg.PreviewAddr, pipelineMetrics)
		if err != nil {
			return err
		}
		defer server.Close()
		sink = core.Sinks{video, server}
	}

	ctrl, err := core.NewController(core.Options{
		Opener:     parts.opener,
		Detector:   parts.detector,
		Archiver:   parts.archiver,
		Annotator:  render.NewAnnotator(),
		Sink:       sink,
		Scheduler:  core.NewTimerScheduler(fyne.Do),
		Recorder:   pipelineMetrics,
		Logger:     logger,
		CycleDelay: cfg.CycleDelay,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	devices := capture.ListDevices(capture.DeviceGlob)
	if len(devices) == 0 {
		devices = []string{cfg.Device}
	}

	mainApp := gui.NewApplication(myApp, ctrl, video, devices, cfg.StorageDir, logger)

	// Ctrl+C in the terminal closes the window like the close button
	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			ctrl.Close()
			myApp.Quit()
		})
	}()

	mainApp.ShowAndRun()

	if server != nil {
		logPreviewSummary(server)
	}
	logger.WithField("frames_shown", video.Presented()).Info("Application shutting down gracefully")
	return nil
}
