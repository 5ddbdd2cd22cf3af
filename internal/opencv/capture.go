// OpenCV-backed capture for camera devices and video files
package opencv

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"facewatch/internal/capture"
	"facewatch/internal/core"
)

// VideoCaptureOpener opens devices and files through gocv.VideoCapture.
type VideoCaptureOpener struct {
	// Requested device resolution; zero keeps the driver default.
	Width  int
	Height int

	logger *logrus.Logger
}

func NewVideoCaptureOpener(width, height int, logger *logrus.Logger) *VideoCaptureOpener {
	return &VideoCaptureOpener{
		Width:  width,
		Height: height,
		logger: logger,
	}
}

func (o *VideoCaptureOpener) Open(target core.Target) (core.FrameSource, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)

	if target.IsFile() {
		if err := capture.CheckFile(target.Path); err != nil {
			return nil, err
		}
		vc, err = gocv.VideoCaptureFile(target.Path)
	} else {
		vc, err = gocv.VideoCaptureDevice(target.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrSourceUnavailable, target, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s could not be opened", core.ErrSourceUnavailable, target)
	}

	if !target.IsFile() && o.Width > 0 && o.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}

	o.logger.WithFields(logrus.Fields{
		"target": target.String(),
		"width":  vc.Get(gocv.VideoCaptureFrameWidth),
		"height": vc.Get(gocv.VideoCaptureFrameHeight),
		"fps":    vc.Get(gocv.VideoCaptureFPS),
	}).Info("Video capture opened")

	return &videoCaptureSource{
		vc:  vc,
		mat: gocv.NewMat(),
	}, nil
}

type videoCaptureSource struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
	closed bool
}

func (s *videoCaptureSource) Read() (core.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.Frame{}, core.ErrEndOfStream
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return core.Frame{}, core.ErrEndOfStream
	}

	// ToImage converts the BGR mat into an RGBA image we own
	img, err := s.mat.ToImage()
	if err != nil {
		return core.Frame{}, fmt.Errorf("convert frame %d: %w", s.seq, err)
	}

	s.seq++
	return core.NewFrame(img, s.seq, time.Now()), nil
}

func (s *videoCaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.vc.Close()
}
