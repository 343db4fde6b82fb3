package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/liravoice/lira-core/core/audio"
	"github.com/liravoice/lira-core/core/texttospeech"
)

// audioOutput normalizes playback clients behind one facade. Optional
// capabilities are resolved once at configuration time so response code
// can route without repeated type assertions.
//
// NOTE: methods do best-effort forwarding because the pipeline treats
// playback as a non-fatal side effect. Only WriteStream reports errors,
// since a failed write means the sentence was not spoken.
type audioOutput struct {
	client AudioOutput

	bounds   AudioOutputWithResponseBounds
	silence  AudioOutputWithSilence
	playback AudioOutputWithPlayback
	encoding AudioOutputWithEncoding
}

// set replaces the configured client and recomputes capabilities. Nil
// and typed-nil clients are treated as unconfigured.
func (a *audioOutput) set(client AudioOutput) {
	if a == nil {
		return
	}

	a.client = nil
	a.bounds = nil
	a.silence = nil
	a.playback = nil
	a.encoding = nil

	if isNilAudioOutput(client) {
		return
	}
	a.client = client

	if bounds, ok := client.(AudioOutputWithResponseBounds); ok {
		a.bounds = bounds
	}
	if silence, ok := client.(AudioOutputWithSilence); ok {
		a.silence = silence
	}
	if playback, ok := client.(AudioOutputWithPlayback); ok {
		a.playback = playback
	}
	if encoding, ok := client.(AudioOutputWithEncoding); ok {
		a.encoding = encoding
	}
}

func (a *audioOutput) isConfigured() bool {
	return a != nil && a.client != nil
}

// writeStream plays one synthesized sentence, blocking until the stream
// is consumed or the context is cancelled.
func (a *audioOutput) writeStream(ctx context.Context, stream texttospeech.AudioStream) error {
	if !a.isConfigured() {
		return nil
	}

	if err := a.client.WriteStream(ctx, stream); err != nil {
		return fmt.Errorf("failed to write audio stream: %w", err)
	}
	return nil
}

// flush drops buffered but unplayed audio. Used when a response is
// interrupted.
func (a *audioOutput) flush() {
	if !a.isConfigured() {
		return
	}

	a.client.Flush()
}

func (a *audioOutput) beginResponse() {
	if a != nil && a.bounds != nil {
		a.bounds.BeginResponse()
	}
}

func (a *audioOutput) endResponse() {
	if a != nil && a.bounds != nil {
		a.bounds.EndResponse()
	}
}

func (a *audioOutput) writeSilence(d time.Duration) {
	if a != nil && a.silence != nil {
		a.silence.WriteSilence(d)
	}
}

// isPlaying reports whether audio is currently audible. Clients that
// cannot report playback are assumed silent, which disables barge-in on
// them.
func (a *audioOutput) isPlaying() bool {
	return a != nil && a.playback != nil && a.playback.IsPlaying()
}

// encodingInfo returns the output encoding, falling back to the project
// default when the client does not report one.
func (a *audioOutput) encodingInfo() audio.EncodingInfo {
	if a != nil && a.encoding != nil {
		if info := a.encoding.EncodingInfo(); !info.IsZero() {
			return info
		}
	}

	return audio.DefaultEncodingInfo()
}

func (a *audioOutput) close(ctx context.Context) error {
	if !a.isConfigured() {
		return nil
	}

	switch closer := a.client.(type) {
	case interface{ Close(context.Context) error }:
		return closer.Close(ctx)
	case interface{ Close(context.Context) }:
		closer.Close(ctx)
	case interface{ Close() error }:
		return closer.Close()
	case interface{ Close() }:
		closer.Close()
	}
	return nil
}

// isNilAudioOutput detects nil and typed-nil interface values so set can
// avoid storing unusable interface wrappers as configured clients.
func isNilAudioOutput(client AudioOutput) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
