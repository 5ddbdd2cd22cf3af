package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"facewatch/internal/core"
)

// SequenceSource replays an in-memory list of frames.
type SequenceSource struct {
	mu      sync.Mutex
	frames  []core.Frame
	next    int
	closed  bool
	onClose func()
}

func NewSequenceSource(frames []core.Frame) *SequenceSource {
	return &SequenceSource{frames: frames}
}

func (s *SequenceSource) Read() (core.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.next >= len(s.frames) {
		return core.Frame{}, core.ErrEndOfStream
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *SequenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// SequenceOpener serves in-memory frame sequences keyed by file path or
// device index. It tracks how many sources are currently open.
type SequenceOpener struct {
	Files   map[string][]core.Frame
	Devices map[int][]core.Frame

	live   atomic.Int32
	opened atomic.Int32
}

func (o *SequenceOpener) Open(target core.Target) (core.FrameSource, error) {
	var (
		frames []core.Frame
		ok     bool
	)
	if target.IsFile() {
		frames, ok = o.Files[target.Path]
	} else {
		frames, ok = o.Devices[target.Device]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", core.ErrSourceUnavailable, target)
	}

	src := NewSequenceSource(frames)
	src.onClose = func() { o.live.Add(-1) }
	o.live.Add(1)
	o.opened.Add(1)
	return src, nil
}

// Live returns the number of sources opened and not yet closed.
func (o *SequenceOpener) Live() int { return int(o.live.Load()) }

// Opened returns the total number of successful opens.
func (o *SequenceOpener) Opened() int { return int(o.opened.Load()) }
