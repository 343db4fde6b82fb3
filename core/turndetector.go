package pipeline

import (
	"sync"
	"time"
)

const defaultSilenceTimeout = 1500 * time.Millisecond

// TurnDetector decides that a speaker's turn has ended when no further
// transcript arrives within the silence timeout after a final result. It is
// advisory: transcribers with their own endpointing drive turn completion
// directly, and the callback defaults to nothing.
type TurnDetector struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	stopped bool

	onTurnEnd func()
}

// NewTurnDetector creates a detector that fires onTurnEnd after timeout of
// silence following a final transcript. A non-positive timeout uses the
// default.
func NewTurnDetector(timeout time.Duration, onTurnEnd func()) *TurnDetector {
	if timeout <= 0 {
		timeout = defaultSilenceTimeout
	}
	return &TurnDetector{timeout: timeout, onTurnEnd: onTurnEnd}
}

// OnFinalTranscript arms the silence timer, restarting it if already armed.
func (d *TurnDetector) OnFinalTranscript() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.timeout, d.fire)
}

// OnInterimTranscript clears the timer when text is non-empty, treating the
// speaker as still talking.
func (d *TurnDetector) OnInterimTranscript(text string) {
	if text == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// ForceTurnEnd fires the callback immediately, cancelling any running
// timer.
func (d *TurnDetector) ForceTurnEnd() {
	d.fire()
}

// Armed reports whether the silence timer is running.
func (d *TurnDetector) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// Stop cancels any pending timer; the detector fires nothing afterwards.
func (d *TurnDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *TurnDetector) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	callback := d.onTurnEnd
	d.mu.Unlock()

	if callback != nil {
		callback()
	}
}
