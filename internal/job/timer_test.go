package job

import (
	"errors"
	"testing"
	"time"
)

func TestTimerElapsedWhileRunning(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	if !tm.Running() {
		t.Fatalf("fresh timer not running")
	}
	if got := tm.ElapsedSeconds(start.Add(125 * time.Second)); got != 125 {
		t.Errorf("elapsed: got %d, want 125", got)
	}
}

func TestTimerPauseFreezesElapsed(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	tm, err := tm.Pause(start.Add(100 * time.Second))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if tm.Running() {
		t.Errorf("paused timer reports running")
	}
	if tm.Seconds != 100 {
		t.Errorf("accumulated seconds: got %d, want 100", tm.Seconds)
	}
	// Time passing while paused changes nothing.
	if got := tm.ElapsedSeconds(start.Add(1 * time.Hour)); got != 100 {
		t.Errorf("elapsed while paused: got %d, want 100", got)
	}
}

func TestTimerResumeAccumulates(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	tm, _ = tm.Pause(start.Add(100 * time.Second))
	tm, err := tm.Resume(start.Add(10 * time.Minute))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !tm.Running() {
		t.Errorf("resumed timer not running")
	}
	// 100s accumulated + 25s of the new segment.
	if got := tm.ElapsedSeconds(start.Add(10*time.Minute + 25*time.Second)); got != 125 {
		t.Errorf("elapsed after resume: got %d, want 125", got)
	}
}

func TestTimerZeroElapsedResumePause(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	tm, _ = tm.Pause(start.Add(100 * time.Second))
	at := start.Add(10 * time.Minute)
	tm, _ = tm.Resume(at)
	tm, err := tm.Pause(at)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Resume then immediate pause adds nothing to the accumulator.
	if tm.Seconds != 100 {
		t.Errorf("accumulated seconds: got %d, want 100", tm.Seconds)
	}
	if tm.Running() {
		t.Errorf("timer reports running after pause")
	}
}

func TestTimerDoublePause(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	tm, _ = tm.Pause(start.Add(time.Minute))
	if _, err := tm.Pause(start.Add(2 * time.Minute)); !errors.Is(err, ErrTimerNotRunning) {
		t.Errorf("double pause: got %v, want ErrTimerNotRunning", err)
	}
}

func TestTimerDoubleResume(t *testing.T) {
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	tm := StartTimer(start)

	if _, err := tm.Resume(start.Add(time.Minute)); !errors.Is(err, ErrTimerRunning) {
		t.Errorf("resume while running: got %v, want ErrTimerRunning", err)
	}
}
