package core

import "time"

// Task is a scheduled cycle that can be cancelled before it runs.
type Task interface {
	Stop() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Task
}

// Dispatcher hands a function to the goroutine that owns rendering.
// fyne.Do satisfies it.
type Dispatcher func(fn func())

// Direct runs fn on the calling goroutine.
func Direct(fn func()) { fn() }

// TimerScheduler fires tasks from time.AfterFunc and runs them through a
// Dispatcher, so every cycle executes on the dispatcher's goroutine.
type TimerScheduler struct {
	dispatch Dispatcher
}

func NewTimerScheduler(dispatch Dispatcher) *TimerScheduler {
	if dispatch == nil {
		dispatch = Direct
	}
	return &TimerScheduler{dispatch: dispatch}
}

func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) Task {
	return time.AfterFunc(delay, func() {
		s.dispatch(fn)
	})
}
