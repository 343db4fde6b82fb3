package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// BargeIn issues one cancellation scope per response cycle and propagates
// user interruptions into it. Trigger is idempotent within a cycle: the
// interrupt callback fires at most once between StartCycle/Reset pairs.
type BargeIn struct {
	mu     sync.Mutex
	cancel context.CancelFunc

	triggered   atomic.Bool
	interrupted atomic.Bool

	onInterrupt func()
}

// NewBargeIn creates a controller. onInterrupt, if non-nil, runs
// synchronously on the goroutine that triggered the interruption and must
// stop sound and discard half-built sentences before returning.
func NewBargeIn(onInterrupt func()) *BargeIn {
	return &BargeIn{onInterrupt: onInterrupt}
}

// StartCycle discards any prior cancellation signal and returns a fresh,
// non-aborted one derived from parent.
func (b *BargeIn) StartCycle(parent context.Context) context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	b.triggered.Store(false)
	b.interrupted.Store(false)
	return ctx
}

// Trigger cancels the active cycle's signal and fires the interrupt
// callback. Calling it again before the next StartCycle or Reset is a
// no-op.
func (b *BargeIn) Trigger() {
	if !b.triggered.CompareAndSwap(false, true) {
		return
	}
	b.interrupted.Store(true)

	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if b.onInterrupt != nil {
		b.onInterrupt()
	}
}

// Reset clears the interrupted flag once the cancelled cycle has been torn
// down.
func (b *BargeIn) Reset() {
	b.triggered.Store(false)
	b.interrupted.Store(false)
}

// Interrupted reports whether the current cycle was interrupted.
func (b *BargeIn) Interrupted() bool {
	return b.interrupted.Load()
}
