package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facewatch/internal/config"
)

var (
	cfg     config.Config
	logger  *logrus.Logger
	envFile string
)

var rootCmd = &cobra.Command{
	Use:     "facewatch",
	Short:   "Detect faces in camera or video input and archive every face found",
	Version: AppVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(envFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if err := applyFlags(cmd, &loaded); err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		logger = initLogger(cfg.Debug, cfg.LogLevel)
		logger.WithFields(logrus.Fields{
			"version":     AppVersion,
			"debug_mode":  cfg.Debug,
			"storage_dir": cfg.StorageDir,
			"detector":    cfg.Detector,
			"source":      cfg.Source,
		}).Info("Starting Face Watch")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGUI(cmd.Context())
	},
	SilenceUsage: true,
}

// applyFlags copies explicitly set persistent flags over the loaded
// configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("debug") {
		c.Debug, err = flags.GetBool("debug")
	}
	if err == nil && flags.Changed("storage-dir") {
		c.StorageDir, err = flags.GetString("storage-dir")
	}
	if err == nil && flags.Changed("detector") {
		c.Detector, err = flags.GetString("detector")
	}
	if err == nil && flags.Changed("cascade") {
		c.CascadeFile, err = flags.GetString("cascade")
	}
	if err == nil && flags.Changed("source") {
		c.Source, err = flags.GetString("source")
	}
	if err == nil && flags.Changed("ffmpeg") {
		c.FFmpegBinary, err = flags.GetString("ffmpeg")
	}
	if err == nil && flags.Changed("cycle-delay") {
		c.CycleDelay, err = flags.GetDuration("cycle-delay")
	}
	return err
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	def := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "Optional file with FACEWATCH_* settings")
	pf.Bool("debug", false, "Enable debug mode with verbose logging")
	pf.String("storage-dir", def.StorageDir, "Directory receiving one JPEG per detected face")
	pf.String("detector", def.Detector, "Face detector backend: cascade or pigo")
	pf.String("cascade", def.CascadeFile, "Cascade file (OpenCV XML for cascade, packed facefinder for pigo)")
	pf.String("source", def.Source, "Video backend: opencv or ffmpeg (files only)")
	pf.String("ffmpeg", def.FFmpegBinary, "ffmpeg binary used by the ffmpeg source backend")
	pf.Duration("cycle-delay", def.CycleDelay, "Pause between processing cycles")

	rootCmd.AddCommand(guiCmd, scanCmd)
}
