package core

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Target selects what a SourceOpener opens: a capture device or a file.
type Target struct {
	Device int
	Path   string
}

// DeviceTarget selects capture device n.
func DeviceTarget(n int) Target { return Target{Device: n} }

// FileTarget selects a video file.
func FileTarget(path string) Target { return Target{Device: -1, Path: path} }

// IsFile reports whether the target is a file. A file target with an empty
// path is still a file, never a device.
func (t Target) IsFile() bool { return t.Device < 0 || t.Path != "" }

func (t Target) String() string {
	if t.IsFile() {
		return "file:" + t.Path
	}
	return fmt.Sprintf("device:%d", t.Device)
}

// ParseDeviceSelector accepts "", "0", "/dev/video2", "v4l2:1" or "video1"
// and returns the device index.
func ParseDeviceSelector(selector string) (int, error) {
	s := strings.TrimSpace(selector)
	if s == "" {
		return 0, nil
	}
	for _, prefix := range []string{"/dev/video", "v4l2:", "video"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid device selector %q", ErrSourceUnavailable, selector)
	}
	return n, nil
}

// FrameSource is an open capture resource producing frames in order.
//
// Read returns ErrEndOfStream when a file is exhausted or a device
// disconnects. Close is idempotent.
type FrameSource interface {
	Read() (Frame, error)
	Close() error
}

// SourceOpener opens frame sources. Open errors wrap ErrSourceUnavailable.
type SourceOpener interface {
	Open(target Target) (FrameSource, error)
}

// FaceDetector finds faces in a frame. Implementations must not modify the
// frame and must return regions contained in its bounds.
type FaceDetector interface {
	Detect(frame Frame) ([]FaceRegion, error)
}

// FaceArchiver persists one face crop per call.
type FaceArchiver interface {
	Archive(frame Frame, region FaceRegion) (ArchivedFace, error)
}

// FrameAnnotator draws detection overlays and produces the display image.
type FrameAnnotator interface {
	Annotate(frame Frame, regions []FaceRegion) Frame
	Display(frame Frame) image.Image
}

// DisplaySink presents the rendered frame of each cycle.
type DisplaySink interface {
	Present(img image.Image)
}

// DiscardSink drops every frame.
type DiscardSink struct{}

func (DiscardSink) Present(image.Image) {}

// Sinks presents each frame to several sinks in order.
type Sinks []DisplaySink

func (ss Sinks) Present(img image.Image) {
	for _, s := range ss {
		s.Present(img)
	}
}

// CycleRecorder receives per-cycle measurements.
type CycleRecorder interface {
	ObserveCycle(faces int, seconds float64)
	ArchiveFailed()
	SetRunning(running bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(int, float64) {}
func (nopRecorder) ArchiveFailed()            {}
func (nopRecorder) SetRunning(bool)           {}
