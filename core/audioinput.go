package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/liravoice/lira-core/core/audio"
)

// audioInput wraps an optional local capture source. Captured audio is
// attributed to a fixed identity, as if it arrived through SendAudio.
type audioInput struct {
	client   AudioCapture
	identity string

	connected   atomic.Bool
	isCapturing atomic.Bool
}

func (a *audioInput) set(client AudioCapture, identity string) {
	if a == nil {
		return
	}

	a.client = client
	a.identity = identity
	a.connected.Store(client != nil)
	a.isCapturing.Store(false)
}

func (a *audioInput) isConfigured() bool {
	return a != nil && a.connected.Load()
}

// start begins streaming captured audio into onAudio. Repeated calls
// while capture is running are no-ops. Capture failures are reported
// through onError since Stream runs on its own goroutine.
func (a *audioInput) start(ctx context.Context, onAudio func(audio []byte), onError func(error)) {
	if !a.isConfigured() {
		return
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		if err := a.client.Stream(ctx, onAudio); err != nil {
			a.isCapturing.Store(false)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

func (a *audioInput) encodingInfo() audio.EncodingInfo {
	if a == nil || a.client == nil {
		return audio.DefaultEncodingInfo()
	}

	return a.client.EncodingInfo()
}

func (a *audioInput) close() {
	if a == nil || a.client == nil {
		return
	}

	a.client.Close()
	a.isCapturing.Store(false)
}
