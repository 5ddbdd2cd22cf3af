package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facewatch/internal/core"
	"facewatch/internal/metrics"
	"facewatch/internal/preview"
	"facewatch/internal/render"
)

type scanOptions struct {
	InputPath   string
	Device      string
	PreviewAddr string
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the pipeline headless on a video file or camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanOpts.InputPath != "" && cmd.Flags().Changed("device") {
			return errors.New("--input and --device are mutually exclusive")
		}
		if !cmd.Flags().Changed("device") {
			scanOpts.Device = cfg.Device
		}
		if !cmd.Flags().Changed("preview-addr") && cfg.PreviewAddr != "" {
			scanOpts.PreviewAddr = cfg.PreviewAddr
		}
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "", "Video file to scan")
	scanCmd.Flags().StringVarP(&scanOpts.Device, "device", "d", "0", "Capture device (0, /dev/video0, v4l2:0)")
	scanCmd.Flags().StringVar(&scanOpts.PreviewAddr, "preview-addr", "", "Serve live preview and metrics on this address (e.g. :8090)")
}

// progressRecorder advances the progress bar once per processed frame.
type progressRecorder struct {
	bar *progressbar.ProgressBar
}

func (p progressRecorder) ObserveCycle(faces int, seconds float64) {
	p.bar.Add(1)
}
func (p progressRecorder) ArchiveFailed()  {}
func (p progressRecorder) SetRunning(bool) {}

func runScan(ctx context.Context, opts scanOptions) error {
	parts, err := buildPipelineParts(cfg, logger)
	if err != nil {
		return err
	}
	defer parts.Close()

	pipelineMetrics := metrics.NewPipeline()
	stats := core.NewCycleStats()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Scanning for faces"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)

	var sink core.DisplaySink = core.DiscardSink{}
	var server *preview.Server
	if opts.PreviewAddr != "" {
		server, err = startPreview(ctx, opts.PreviewAddr, pipelineMetrics)
		if err != nil {
			return err
		}
		defer server.Close()
		sink = server
	}

	ctrl, err := core.NewController(core.Options{
		Opener:     parts.opener,
		Detector:   parts.detector,
		Archiver:   parts.archiver,
		Annotator:  render.NewAnnotator(),
		Sink:       sink,
		Scheduler:  core.NewTimerScheduler(core.Direct),
		Recorder:   core.Recorders{pipelineMetrics, stats, progressRecorder{bar: bar}},
		Logger:     logger,
		CycleDelay: cfg.CycleDelay,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	defer ctrl.Close()

	monitor := newRunMonitor()
	ctrl.SetCallbacks(
		monitor.onState,
		func(n int) {
			bar.Describe(fmt.Sprintf("Scanning for faces (last frame: %d)", n))
		},
		monitor.onError,
	)

	if opts.InputPath != "" {
		err = ctrl.OpenFile(opts.InputPath)
	} else {
		err = ctrl.Start(opts.Device)
	}
	if err != nil {
		return err
	}

	if stopped := monitor.wait(ctx); !stopped {
		logger.Info("Interrupted, stopping pipeline")
		ctrl.Stop()
	}

	bar.Finish()
	fmt.Fprintln(os.Stderr)
	stats.PrintStatus(os.Stderr)
	if server != nil {
		logPreviewSummary(server)
	}

	return monitor.err()
}

// runMonitor turns controller callbacks, which may fire on timer goroutines,
// into a done signal and the first reported error.
type runMonitor struct {
	done chan struct{}
	once sync.Once
	errs chan error
}

func newRunMonitor() *runMonitor {
	return &runMonitor{
		done: make(chan struct{}),
		errs: make(chan error, 1),
	}
}

func (m *runMonitor) onState(s core.State) {
	if s == core.Idle {
		m.once.Do(func() { close(m.done) })
	}
}

func (m *runMonitor) onError(err error) {
	select {
	case m.errs <- err:
	default:
	}
}

// wait blocks until the pipeline goes idle or ctx ends. It reports whether
// the pipeline stopped on its own.
func (m *runMonitor) wait(ctx context.Context) bool {
	select {
	case <-m.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// err returns the first error reported during the run, if any.
func (m *runMonitor) err() error {
	select {
	case err := <-m.errs:
		return err
	default:
		return nil
	}
}
