// internal/core/pipeline.go
// Face pipeline controller: source lifecycle and the acquire/detect/archive/render cycle
package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the pipeline lifecycle state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultCycleDelay is the pause between the end of one cycle and the start
// of the next.
const DefaultCycleDelay = 10 * time.Millisecond

// Options wires the controller's collaborators.
type Options struct {
	Opener    SourceOpener
	Detector  FaceDetector
	Archiver  FaceArchiver
	Annotator FrameAnnotator
	Sink      DisplaySink
	Scheduler Scheduler
	Recorder  CycleRecorder
	Logger    *logrus.Logger

	CycleDelay time.Duration
}

// Controller owns the pipeline state, the single open source and the
// scheduling of cycles.
//
// All transitions and cycles are serialized by mu. While Running exactly one
// source is open and exactly one cycle is executing or pending. The
// generation counter is the cancellation token for pending cycles: any
// transition bumps it, so a cycle that fires late finds a stale generation
// and does nothing.
type Controller struct {
	mu sync.Mutex

	opener    SourceOpener
	detector  FaceDetector
	archiver  FaceArchiver
	annotator FrameAnnotator
	sink      DisplaySink
	scheduler Scheduler
	recorder  CycleRecorder
	logger    *logrus.Entry
	delay     time.Duration

	source     FrameSource
	target     Target
	pending    Task
	generation uint64

	state     atomic.Int32
	faceCount atomic.Int64

	// Observers - invoked after mu is released
	onStateChange func(State)
	onFaceCount   func(int)
	onError       func(error)
	events        []func()
}

func NewController(opts Options) (*Controller, error) {
	switch {
	case opts.Opener == nil:
		return nil, fmt.Errorf("controller: source opener is required")
	case opts.Detector == nil:
		return nil, fmt.Errorf("controller: face detector is required")
	case opts.Archiver == nil:
		return nil, fmt.Errorf("controller: face archiver is required")
	case opts.Annotator == nil:
		return nil, fmt.Errorf("controller: frame annotator is required")
	}

	if opts.Sink == nil {
		opts.Sink = DiscardSink{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler(Direct)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.CycleDelay <= 0 {
		opts.CycleDelay = DefaultCycleDelay
	}

	return &Controller{
		opener:    opts.Opener,
		detector:  opts.Detector,
		archiver:  opts.Archiver,
		annotator: opts.Annotator,
		sink:      opts.Sink,
		scheduler: opts.Scheduler,
		recorder:  opts.Recorder,
		logger:    opts.Logger.WithField("session", uuid.New().String()[:8]),
		delay:     opts.CycleDelay,
	}, nil
}

// SetCallbacks sets state, face count and error observers. Observers run on
// the goroutine that triggered the change, after the controller lock is
// released.
func (c *Controller) SetCallbacks(onStateChange func(State), onFaceCount func(int), onError func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = onStateChange
	c.onFaceCount = onFaceCount
	c.onError = onError
	c.logger.Debug("PIPELINE: Callbacks set")
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// LastFaceCount returns the number of faces found by the most recent cycle.
func (c *Controller) LastFaceCount() int {
	return int(c.faceCount.Load())
}

// Target returns the target of the open source, if any.
func (c *Controller) Target() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target, c.source != nil
}

// Start opens the capture device named by selector. Only valid from Idle.
func (c *Controller) Start(selector string) error {
	device, err := ParseDeviceSelector(selector)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.State() != Idle {
		c.mu.Unlock()
		return fmt.Errorf("%w: start requires idle pipeline, got %s", ErrInvalidState, c.State())
	}
	err = c.openLocked(DeviceTarget(device))
	c.unlockAndEmit()
	return err
}

// OpenFile switches the pipeline to a video file. Any open source is closed
// first; on failure the pipeline is left Idle with no source.
func (c *Controller) OpenFile(path string) error {
	c.mu.Lock()
	if c.State() == Running {
		c.stopLocked("switching source")
	}
	if strings.TrimSpace(path) == "" {
		c.unlockAndEmit()
		c.logger.Error("PIPELINE: Failed to open source, empty file path")
		return fmt.Errorf("%w: empty file path", ErrSourceUnavailable)
	}
	err := c.openLocked(FileTarget(path))
	c.unlockAndEmit()
	return err
}

// Stop closes the source and cancels the pending cycle. It is a no-op when
// the pipeline is already Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked("stop requested")
	c.unlockAndEmit()
}

// Close stops the pipeline. The controller may be started again afterwards.
func (c *Controller) Close() {
	c.logger.Info("PIPELINE: Closing controller")
	c.Stop()
}

// RunCycle runs one cycle immediately, replacing the pending one. It returns
// an error only for a detector failure; end of stream stops the pipeline
// quietly.
func (c *Controller) RunCycle() error {
	c.mu.Lock()
	if c.State() != Running {
		c.mu.Unlock()
		return nil
	}
	c.cancelPendingLocked()
	err := c.cycleLocked()
	c.unlockAndEmit()
	return err
}

func (c *Controller) runScheduled(generation uint64) {
	c.mu.Lock()
	if c.State() != Running || generation != c.generation {
		c.mu.Unlock()
		c.logger.WithField("generation", generation).Debug("PIPELINE: Skipping stale cycle")
		return
	}
	c.pending = nil
	_ = c.cycleLocked()
	c.unlockAndEmit()
}

func (c *Controller) openLocked(target Target) error {
	if c.source != nil {
		// state and source always move together; this only guards misuse
		c.stopLocked("stale source")
	}

	c.logger.WithField("target", target.String()).Info("PIPELINE: Opening source")

	source, err := c.opener.Open(target)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		c.logger.WithFields(logrus.Fields{
			"target": target.String(),
			"error":  err,
		}).Error("PIPELINE: Failed to open source")
		return err
	}

	c.source = source
	c.target = target
	c.setStateLocked(Running)
	c.scheduleLocked()
	return nil
}

func (c *Controller) stopLocked(reason string) {
	c.cancelPendingLocked()
	if c.source == nil && c.State() == Idle {
		return
	}

	if c.source != nil {
		if err := c.source.Close(); err != nil {
			c.logger.WithError(err).Warn("PIPELINE: Source close failed")
		}
		c.source = nil
	}
	c.target = Target{}
	c.setStateLocked(Idle)
	c.logger.WithField("reason", reason).Info("PIPELINE: Stopped")
}

func (c *Controller) cancelPendingLocked() {
	c.generation++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) scheduleLocked() {
	generation := c.generation
	c.pending = c.scheduler.Schedule(c.delay, func() {
		c.runScheduled(generation)
	})
}

func (c *Controller) cycleLocked() error {
	start := time.Now()

	frame, err := c.source.Read()
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			c.logger.Info("PIPELINE: End of stream reached")
		} else {
			c.logger.WithError(err).Warn("PIPELINE: Frame read failed, treating as end of stream")
		}
		c.stopLocked("end of stream")
		return nil
	}

	if err := ValidateFrame(frame); err != nil {
		c.logger.WithError(err).Warn("PIPELINE: Invalid frame, treating as end of stream")
		c.stopLocked("invalid frame")
		return nil
	}

	regions, err := c.detector.Detect(frame)
	if err != nil {
		if !errors.Is(err, ErrDetectorFailure) {
			err = fmt.Errorf("%w: %w", ErrDetectorFailure, err)
		}
		c.logger.WithFields(logrus.Fields{
			"seq":   frame.Seq,
			"error": err,
		}).Error("PIPELINE: Detection failed, aborting cycle")
		c.queueError(err)
		c.stopLocked("detector failure")
		return err
	}

	for _, region := range regions {
		archived, err := c.archiver.Archive(frame, region)
		if err != nil {
			c.recorder.ArchiveFailed()
			c.logger.WithFields(logrus.Fields{
				"seq":    frame.Seq,
				"region": region.String(),
				"error":  err,
			}).Warn("PIPELINE: Failed to archive face")
			continue
		}
		c.logger.WithField("path", archived.Path).Debug("PIPELINE: Face archived")
	}

	annotated := c.annotator.Annotate(frame, regions)
	c.sink.Present(c.annotator.Display(annotated))

	count := len(regions)
	c.faceCount.Store(int64(count))
	if cb := c.onFaceCount; cb != nil {
		c.events = append(c.events, func() { cb(count) })
	}

	duration := time.Since(start)
	c.recorder.ObserveCycle(count, duration.Seconds())
	c.logger.WithFields(logrus.Fields{
		"seq":         frame.Seq,
		"faces":       count,
		"duration_ms": duration.Milliseconds(),
	}).Debug("PIPELINE: Cycle completed")

	c.scheduleLocked()
	return nil
}

func (c *Controller) setStateLocked(s State) {
	old := State(c.state.Swap(int32(s)))
	if old == s {
		return
	}
	c.recorder.SetRunning(s == Running)
	c.logger.WithFields(logrus.Fields{
		"old_state": old.String(),
		"new_state": s.String(),
	}).Info("PIPELINE: State changed")
	if cb := c.onStateChange; cb != nil {
		c.events = append(c.events, func() { cb(s) })
	}
}

func (c *Controller) queueError(err error) {
	if cb := c.onError; cb != nil {
		c.events = append(c.events, func() { cb(err) })
	}
}

// unlockAndEmit releases mu and then runs queued observer calls, so
// observers may query or drive the controller.
func (c *Controller) unlockAndEmit() {
	events := c.events
	c.events = nil
	c.mu.Unlock()
	for _, ev := range events {
		ev()
	}
}
