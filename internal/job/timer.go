package job

import (
	"errors"
	"time"
)

var (
	ErrTimerRunning    = errors.New("timer is already running")
	ErrTimerNotRunning = errors.New("timer is not running")
)

// Timer is the pause/resume work-time accumulator. Seconds only grows at
// pause events; while running, elapsed time is derived from RunningSince
// so a reloaded or slept client recomputes correctly without drift.
type Timer struct {
	Seconds      int64
	RunningSince *time.Time // workStartedAt of the current segment, nil when paused
	PausedAt     *time.Time // nil while running
}

// StartTimer begins a fresh running timer at now.
func StartTimer(now time.Time) Timer {
	return Timer{RunningSince: &now}
}

// Running reports whether a segment is currently accumulating.
func (t Timer) Running() bool { return t.RunningSince != nil }

// ElapsedSeconds is the displayed elapsed time: the stored accumulator
// plus the current running segment, if any.
func (t Timer) ElapsedSeconds(now time.Time) int64 {
	if t.RunningSince == nil {
		return t.Seconds
	}
	return t.Seconds + int64(now.Sub(*t.RunningSince)/time.Second)
}

// Pause folds the running segment into Seconds and marks the pause.
func (t Timer) Pause(now time.Time) (Timer, error) {
	if t.RunningSince == nil {
		return t, ErrTimerNotRunning
	}
	t.Seconds += int64(now.Sub(*t.RunningSince) / time.Second)
	t.RunningSince = nil
	t.PausedAt = &now
	return t, nil
}

// Resume opens a new running segment; Seconds is untouched until the
// next pause.
func (t Timer) Resume(now time.Time) (Timer, error) {
	if t.RunningSince != nil {
		return t, ErrTimerRunning
	}
	t.PausedAt = nil
	t.RunningSince = &now
	return t, nil
}
