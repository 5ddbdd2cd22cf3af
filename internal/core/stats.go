// Pipeline run statistics and status reporting
package core

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const recentCycles = 64

// CycleStats accumulates per-run counters. It satisfies CycleRecorder and
// backs the end-of-run summary of the headless scanner.
type CycleStats struct {
	mu sync.Mutex

	cycles         int
	faces          int
	framesWithFace int
	archiveErrors  int
	starts         int
	durations      []time.Duration
	lastStart      time.Time
	running        bool
	runTime        time.Duration
}

func NewCycleStats() *CycleStats {
	return &CycleStats{durations: make([]time.Duration, 0, recentCycles)}
}

func (s *CycleStats) ObserveCycle(faces int, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++
	s.faces += faces
	if faces > 0 {
		s.framesWithFace++
	}
	if len(s.durations) == recentCycles {
		s.durations = s.durations[1:]
	}
	s.durations = append(s.durations, time.Duration(seconds*float64(time.Second)))
}

func (s *CycleStats) ArchiveFailed() {
	s.mu.Lock()
	s.archiveErrors++
	s.mu.Unlock()
}

func (s *CycleStats) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case running && !s.running:
		s.starts++
		s.lastStart = time.Now()
	case !running && s.running:
		s.runTime += time.Since(s.lastStart)
	}
	s.running = running
}

// Summary is a snapshot of CycleStats.
type Summary struct {
	Cycles         int
	Faces          int
	FramesWithFace int
	ArchiveErrors  int
	Starts         int
	AvgCycle       time.Duration
	RunTime        time.Duration
}

func (s *CycleStats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	runTime := s.runTime
	if s.running {
		runTime += time.Since(s.lastStart)
	}
	return Summary{
		Cycles:         s.cycles,
		Faces:          s.faces,
		FramesWithFace: s.framesWithFace,
		ArchiveErrors:  s.archiveErrors,
		Starts:         s.starts,
		AvgCycle:       averageDuration(s.durations),
		RunTime:        runTime,
	}
}

// PrintStatus writes a human readable summary to w.
func (s *CycleStats) PrintStatus(w io.Writer) {
	sum := s.Summary()
	fmt.Fprintln(w, "=== PIPELINE STATUS ===")
	fmt.Fprintf(w, "Frames processed:   %d\n", sum.Cycles)
	fmt.Fprintf(w, "Faces detected:     %d\n", sum.Faces)
	fmt.Fprintf(w, "Frames with faces:  %d\n", sum.FramesWithFace)
	fmt.Fprintf(w, "Archive failures:   %d\n", sum.ArchiveErrors)
	fmt.Fprintf(w, "Average cycle time: %v\n", sum.AvgCycle)
	fmt.Fprintf(w, "Running time:       %v\n", sum.RunTime.Round(time.Millisecond))
}

func averageDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	return total / time.Duration(len(durations))
}

// Recorders fans measurements out to several recorders.
type Recorders []CycleRecorder

func (rs Recorders) ObserveCycle(faces int, seconds float64) {
	for _, r := range rs {
		r.ObserveCycle(faces, seconds)
	}
}

func (rs Recorders) ArchiveFailed() {
	for _, r := range rs {
		r.ArchiveFailed()
	}
}

func (rs Recorders) SetRunning(running bool) {
	for _, r := range rs {
		r.SetRunning(running)
	}
}
