package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"facewatch/internal/capture"
	"facewatch/internal/config"
	"facewatch/internal/core"
	"facewatch/internal/detect"
	faceio "facewatch/internal/io"
	"facewatch/internal/opencv"
)

// pipelineParts are the collaborators shared by the GUI and headless modes.
type pipelineParts struct {
	opener   core.SourceOpener
	detector core.FaceDetector
	archiver *faceio.FaceArchiver
	closers  []func() error
}

func (p *pipelineParts) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			logger.WithError(err).Warn("Failed to release resource")
		}
	}
}

func buildPipelineParts(c config.Config, log *logrus.Logger) (*pipelineParts, error) {
	parts := &pipelineParts{}

	switch c.Source {
	case config.SourceFFmpeg:
		parts.opener = capture.NewFFmpegOpener(c.FFmpegBinary, log)
	default:
		parts.opener = opencv.NewVideoCaptureOpener(config.DisplayWidth, config.DisplayHeight, log)
	}

	params := detect.Params{
		ScaleFactor:  c.ScaleFactor,
		MinNeighbors: c.MinNeighbors,
		MinSize:      c.MinFaceSize,
	}
	switch c.Detector {
	case config.DetectorPigo:
		d, err := detect.LoadPigo(c.CascadeFile, params, log)
		if err != nil {
			return nil, fmt.Errorf("load pigo detector: %w", err)
		}
		parts.detector = d
	default:
		d, err := opencv.NewCascade(c.CascadeFile, params, log)
		if err != nil {
			return nil, fmt.Errorf("load cascade detector: %w", err)
		}
		parts.detector = d
		parts.closers = append(parts.closers, d.Close)
	}

	archiver, err := faceio.NewFaceArchiver(c.StorageDir, log, faceio.WithJPEGQuality(c.JPEGQuality))
	if err != nil {
		parts.Close()
		return nil, fmt.Errorf("prepare face storage: %w", err)
	}
	parts.archiver = archiver

	return parts, nil
}
