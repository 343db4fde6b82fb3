package pipeline

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTurnEndsAfterSilenceTimeout(t *testing.T) {
	fired := make(chan struct{}, 1)
	detector := NewTurnDetector(30*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer detector.Stop()

	detector.OnFinalTranscript()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the turn end")
	}
	if detector.Armed() {
		t.Fatalf("expected the timer to be disarmed after firing")
	}
}

func TestInterimTranscriptDisarmsTheTimer(t *testing.T) {
	var fires atomic.Int32
	detector := NewTurnDetector(30*time.Millisecond, func() { fires.Add(1) })
	defer detector.Stop()

	detector.OnFinalTranscript()
	detector.OnInterimTranscript("still talking")

	if detector.Armed() {
		t.Fatalf("expected an interim transcript to disarm the timer")
	}

	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Fatalf("expected no turn end while the speaker continues, got %d", got)
	}
}

func TestEmptyInterimTranscriptKeepsTheTimerArmed(t *testing.T) {
	detector := NewTurnDetector(time.Minute, func() {})
	defer detector.Stop()

	detector.OnFinalTranscript()
	detector.OnInterimTranscript("")

	if !detector.Armed() {
		t.Fatalf("expected an empty interim transcript to be ignored")
	}
}

func TestRestartedTimerFiresOnce(t *testing.T) {
	var fires atomic.Int32
	detector := NewTurnDetector(30*time.Millisecond, func() { fires.Add(1) })
	defer detector.Stop()

	detector.OnFinalTranscript()
	detector.OnFinalTranscript()

	time.Sleep(150 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Fatalf("expected exactly one turn end from a restarted timer, got %d", got)
	}
}

func TestForceTurnEndFiresImmediately(t *testing.T) {
	var fires atomic.Int32
	detector := NewTurnDetector(time.Minute, func() { fires.Add(1) })
	defer detector.Stop()

	detector.OnFinalTranscript()
	detector.ForceTurnEnd()

	if got := fires.Load(); got != 1 {
		t.Fatalf("expected an immediate turn end, got %d", got)
	}
	if detector.Armed() {
		t.Fatalf("expected the pending timer to be cancelled")
	}
}

func TestStopSilencesTheDetector(t *testing.T) {
	var fires atomic.Int32
	detector := NewTurnDetector(30*time.Millisecond, func() { fires.Add(1) })

	detector.OnFinalTranscript()
	detector.Stop()
	detector.ForceTurnEnd()
	detector.OnFinalTranscript()

	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Fatalf("expected nothing to fire after stop, got %d", got)
	}
}
