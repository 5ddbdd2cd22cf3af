package core_test

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/capture"
	"facewatch/internal/core"
	faceio "facewatch/internal/io"
	"facewatch/internal/render"
)

// manualScheduler queues tasks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn      func()
	delay   time.Duration
	stopped bool
	ran     bool
}

func (t *manualTask) Stop() bool {
	if t.stopped || t.ran {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) core.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{fn: fn, delay: delay}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *manualScheduler) pending() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.ran {
			out = append(out, t)
		}
	}
	return out
}

// runNext runs the oldest pending task.
func (s *manualScheduler) runNext() bool {
	p := s.pending()
	if len(p) == 0 {
		return false
	}
	p[0].ran = true
	p[0].fn()
	return true
}

func (s *manualScheduler) drain(t *testing.T) int {
	t.Helper()
	n := 0
	for s.runNext() {
		n++
		require.Less(t, n, 1000, "scheduler did not settle")
	}
	return n
}

// scriptedDetector returns fixed regions per frame sequence number.
type scriptedDetector struct {
	mu      sync.Mutex
	regions map[uint64][]core.FaceRegion
	failOn  map[uint64]bool
	calls   int
}

func (d *scriptedDetector) Detect(frame core.Frame) ([]core.FaceRegion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failOn[frame.Seq] {
		return nil, errors.New("model crashed")
	}
	return d.regions[frame.Seq], nil
}

type failingArchiver struct{ calls int }

func (a *failingArchiver) Archive(core.Frame, core.FaceRegion) (core.ArchivedFace, error) {
	a.calls++
	return core.ArchivedFace{}, fmt.Errorf("%w: disk full", core.ErrStorageWrite)
}

type recordingSink struct {
	mu     sync.Mutex
	images []image.Image
}

func (s *recordingSink) Present(img image.Image) {
	s.mu.Lock()
	s.images = append(s.images, img)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func makeFrames(n int) []core.Frame {
	frames := make([]core.Frame, n)
	for i := range frames {
		img := imaging.New(320, 240, color.NRGBA{R: uint8(i * 20), G: 80, B: 80, A: 255})
		frames[i] = core.NewFrame(img, uint64(i+1), time.Unix(int64(i), 0))
	}
	return frames
}

type harness struct {
	ctrl      *core.Controller
	opener    *capture.SequenceOpener
	detector  *scriptedDetector
	scheduler *manualScheduler
	sink      *recordingSink
	stats     *core.CycleStats
	dir       string

	mu     sync.Mutex
	states []core.State
	counts []int
	errs   []error
}

func newHarness(t *testing.T, archiver core.FaceArchiver) *harness {
	t.Helper()

	h := &harness{
		opener: &capture.SequenceOpener{
			Files: map[string][]core.Frame{
				"clip.mp4":  makeFrames(10),
				"short.avi": makeFrames(2),
			},
			Devices: map[int][]core.Frame{0: makeFrames(50), 2: makeFrames(50)},
		},
		detector: &scriptedDetector{
			regions: map[uint64][]core.FaceRegion{},
			failOn:  map[uint64]bool{},
		},
		scheduler: &manualScheduler{},
		sink:      &recordingSink{},
		stats:     core.NewCycleStats(),
		dir:       t.TempDir(),
	}

	if archiver == nil {
		ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local)
		a, err := faceio.NewFaceArchiver(h.dir, quietLogger(), faceio.WithClock(func() time.Time { return ts }))
		require.NoError(t, err)
		archiver = a
	}

	ctrl, err := core.NewController(core.Options{
		Opener:    h.opener,
		Detector:  h.detector,
		Archiver:  archiver,
		Annotator: render.NewAnnotator(),
		Sink:      h.sink,
		Scheduler: h.scheduler,
		Recorder:  h.stats,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	ctrl.SetCallbacks(
		func(s core.State) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
		func(n int) {
			h.mu.Lock()
			h.counts = append(h.counts, n)
			h.mu.Unlock()
		},
		func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	)
	h.ctrl = ctrl
	return h
}

func (h *harness) archived(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := core.NewController(core.Options{})
	assert.Error(t, err)

	_, err = core.NewController(core.Options{
		Opener:   &capture.SequenceOpener{},
		Detector: &scriptedDetector{},
	})
	assert.Error(t, err)
}

func TestControllerProcessesFileToEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.regions[5] = []core.FaceRegion{
		core.NewFaceRegion(10, 10, 40, 40),
		core.NewFaceRegion(200, 100, 60, 60),
	}

	assert.Equal(t, core.Idle, h.ctrl.State())
	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	assert.Equal(t, core.Running, h.ctrl.State())

	pending := h.scheduler.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, core.DefaultCycleDelay, pending[0].delay)

	// ten frame cycles and one cycle that hits end of stream
	assert.Equal(t, 11, h.scheduler.drain(t))

	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, []int{0, 0, 0, 0, 2, 0, 0, 0, 0, 0}, h.counts)
	assert.Equal(t, []core.State{core.Running, core.Idle}, h.states)
	assert.Equal(t, 0, h.ctrl.LastFaceCount())
	assert.Equal(t, 0, h.opener.Live())

	assert.ElementsMatch(t, []string{"face_20261018_093000.jpg", "face_20261018_093000_1.jpg"}, h.archived(t))

	require.Equal(t, 10, h.sink.count())
	for _, img := range h.sink.images {
		assert.Equal(t, image.Pt(640, 480), img.Bounds().Size())
	}

	sum := h.stats.Summary()
	assert.Equal(t, 10, sum.Cycles)
	assert.Equal(t, 2, sum.Faces)
	assert.Equal(t, 1, sum.FramesWithFace)
	assert.Equal(t, 1, sum.Starts)
}

func TestControllerOpenFileUnavailable(t *testing.T) {
	h := newHarness(t, nil)

	err := h.ctrl.OpenFile("missing.mp4")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Empty(t, h.scheduler.pending())
	assert.Empty(t, h.states)

	_, open := h.ctrl.Target()
	assert.False(t, open)
}

func TestControllerOpenFileFailureWhileRunningLeavesIdle(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Start("0"))

	err := h.ctrl.OpenFile("missing.mp4")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, 0, h.opener.Live())
	assert.Empty(t, h.scheduler.pending())
}

func TestControllerStart(t *testing.T) {
	h := newHarness(t, nil)

	err := h.ctrl.Start("/dev/video7")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Equal(t, core.Idle, h.ctrl.State())

	err = h.ctrl.Start("not-a-device")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)

	require.NoError(t, h.ctrl.Start("/dev/video2"))
	assert.Equal(t, core.Running, h.ctrl.State())
	target, open := h.ctrl.Target()
	require.True(t, open)
	assert.Equal(t, core.DeviceTarget(2), target)

	err = h.ctrl.Start("0")
	assert.ErrorIs(t, err, core.ErrInvalidState)
	assert.Equal(t, core.Running, h.ctrl.State())
	assert.Equal(t, 1, h.opener.Live())
}

func TestControllerStopIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Stop()
	assert.Empty(t, h.states)

	require.NoError(t, h.ctrl.Start(""))
	require.True(t, h.scheduler.runNext())
	h.ctrl.Stop()
	h.ctrl.Stop()

	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, []core.State{core.Running, core.Idle}, h.states)
	assert.Empty(t, h.scheduler.pending())
	assert.Equal(t, 0, h.opener.Live())
}

func TestControllerStopKeepsLastFaceCount(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.regions[1] = []core.FaceRegion{core.NewFaceRegion(0, 0, 30, 30)}

	require.NoError(t, h.ctrl.Start("0"))
	require.True(t, h.scheduler.runNext())
	assert.Equal(t, 1, h.ctrl.LastFaceCount())

	h.ctrl.Stop()
	assert.Equal(t, 1, h.ctrl.LastFaceCount())
}

func TestControllerStaleCycleIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))

	stale := h.scheduler.pending()[0]
	h.ctrl.Stop()

	// a timer that already fired still delivers its callback
	stale.fn()

	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, 0, h.detector.calls)
	assert.Equal(t, 0, h.sink.count())
	assert.Empty(t, h.scheduler.pending())
}

func TestControllerStaleCycleAfterSwitch(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	stale := h.scheduler.pending()[0]

	require.NoError(t, h.ctrl.OpenFile("short.avi"))
	assert.True(t, stale.stopped)

	stale.fn()
	assert.Equal(t, 0, h.detector.calls)

	target, _ := h.ctrl.Target()
	assert.Equal(t, core.FileTarget("short.avi"), target)

	require.Len(t, h.scheduler.pending(), 1)
	assert.Equal(t, 3, h.scheduler.drain(t))
	assert.Equal(t, 2, h.detector.calls)
	assert.Equal(t, core.Idle, h.ctrl.State())
}

func TestControllerDetectorFailureStops(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.failOn[2] = true
	h.detector.regions[2] = []core.FaceRegion{core.NewFaceRegion(0, 0, 30, 30)}

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	require.True(t, h.scheduler.runNext())
	require.True(t, h.scheduler.runNext())

	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Empty(t, h.scheduler.pending())
	assert.Empty(t, h.archived(t))
	assert.Equal(t, 1, h.sink.count())
	assert.Equal(t, 0, h.opener.Live())

	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], core.ErrDetectorFailure)
}

func TestControllerRunCycleReturnsDetectorFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.failOn[1] = true

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	err := h.ctrl.RunCycle()
	assert.ErrorIs(t, err, core.ErrDetectorFailure)
	assert.Equal(t, core.Idle, h.ctrl.State())
}

func TestControllerArchiveFailureContinues(t *testing.T) {
	archiver := &failingArchiver{}
	h := newHarness(t, archiver)
	h.detector.regions[1] = []core.FaceRegion{core.NewFaceRegion(0, 0, 30, 30)}

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	require.True(t, h.scheduler.runNext())

	assert.Equal(t, 1, archiver.calls)
	assert.Equal(t, core.Running, h.ctrl.State())
	assert.Equal(t, 1, h.ctrl.LastFaceCount())
	assert.Equal(t, 1, h.sink.count())
	assert.Len(t, h.scheduler.pending(), 1)
	assert.Empty(t, h.errs)
	assert.Equal(t, 1, h.stats.Summary().ArchiveErrors)
}

func TestControllerSingleLiveSource(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ctrl.Start("0"))
	assert.Equal(t, 1, h.opener.Live())

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	assert.Equal(t, 1, h.opener.Live())

	require.NoError(t, h.ctrl.OpenFile("short.avi"))
	assert.Equal(t, 1, h.opener.Live())
	assert.Equal(t, 3, h.opener.Opened())
	assert.Len(t, h.scheduler.pending(), 1)

	h.ctrl.Close()
	assert.Equal(t, 0, h.opener.Live())
	assert.Equal(t, core.Idle, h.ctrl.State())
}

func TestControllerRunCycle(t *testing.T) {
	h := newHarness(t, nil)

	// idle: nothing to do
	require.NoError(t, h.ctrl.RunCycle())
	assert.Equal(t, 0, h.detector.calls)

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	first := h.scheduler.pending()[0]

	require.NoError(t, h.ctrl.RunCycle())
	assert.True(t, first.stopped)
	assert.Equal(t, 1, h.detector.calls)
	assert.Len(t, h.scheduler.pending(), 1)
}

func TestControllerCallbacksMayReenter(t *testing.T) {
	h := newHarness(t, nil)

	var seen []core.State
	h.ctrl.SetCallbacks(func(s core.State) {
		seen = append(seen, h.ctrl.State())
		if s == core.Running {
			h.ctrl.Stop()
		}
	}, nil, nil)

	require.NoError(t, h.ctrl.OpenFile("clip.mp4"))
	assert.Equal(t, []core.State{core.Running, core.Idle}, seen)
	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Empty(t, h.scheduler.pending())
}

func TestControllerOpenFileEmptyPath(t *testing.T) {
	h := newHarness(t, nil)
	// an empty path must never reach a device lookup
	h.opener.Devices[-1] = makeFrames(5)

	err := h.ctrl.OpenFile("")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, 0, h.opener.Opened())
	assert.Empty(t, h.scheduler.pending())

	require.NoError(t, h.ctrl.Start("0"))
	err = h.ctrl.OpenFile("  ")
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.Equal(t, core.Idle, h.ctrl.State())
	assert.Equal(t, 0, h.opener.Live())
	assert.Equal(t, []core.State{core.Running, core.Idle}, h.states)
}

// faultySource serves frames and then fails its read at index failAt.
type faultySource struct {
	frames []core.Frame
	failAt int
	err    error
	reads  int
	closed bool
}

func (s *faultySource) Read() (core.Frame, error) {
	i := s.reads
	s.reads++
	if i == s.failAt {
		return core.Frame{}, s.err
	}
	if i >= len(s.frames) {
		return core.Frame{}, core.ErrEndOfStream
	}
	return s.frames[i], nil
}

func (s *faultySource) Close() error {
	s.closed = true
	return nil
}

type faultyOpener struct{ source *faultySource }

func (o *faultyOpener) Open(core.Target) (core.FrameSource, error) {
	return o.source, nil
}

func TestControllerStopsOnBrokenStream(t *testing.T) {
	frames := makeFrames(5)

	tests := []struct {
		name   string
		source *faultySource
		cycles int
	}{
		{
			name:   "read error",
			source: &faultySource{frames: frames, failAt: 2, err: errors.New("EIO")},
			cycles: 3,
		},
		{
			name: "empty frame",
			// nil error with an empty frame
			source: &faultySource{frames: []core.Frame{frames[0], {Seq: 2}, frames[2]}, failAt: -1},
			cycles: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &manualScheduler{}
			detector := &scriptedDetector{regions: map[uint64][]core.FaceRegion{}, failOn: map[uint64]bool{}}
			archiver, err := faceio.NewFaceArchiver(t.TempDir(), quietLogger())
			require.NoError(t, err)

			ctrl, err := core.NewController(core.Options{
				Opener:    &faultyOpener{source: tt.source},
				Detector:  detector,
				Archiver:  archiver,
				Annotator: render.NewAnnotator(),
				Scheduler: scheduler,
				Logger:    quietLogger(),
			})
			require.NoError(t, err)

			var states []core.State
			var errs []error
			ctrl.SetCallbacks(
				func(s core.State) { states = append(states, s) },
				nil,
				func(err error) { errs = append(errs, err) },
			)

			require.NoError(t, ctrl.OpenFile("clip.mp4"))
			assert.Equal(t, tt.cycles, scheduler.drain(t))

			assert.Equal(t, core.Idle, ctrl.State())
			assert.True(t, tt.source.closed)
			assert.Empty(t, scheduler.pending())
			assert.Empty(t, errs)
			assert.Equal(t, []core.State{core.Running, core.Idle}, states)
			assert.Equal(t, tt.cycles-1, detector.calls)

			_, open := ctrl.Target()
			assert.False(t, open)

			// RunCycle on the stopped pipeline is a no-op
			assert.NoError(t, ctrl.RunCycle())
		})
	}
}
