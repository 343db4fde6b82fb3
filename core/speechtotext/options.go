package speechtotext

import (
	"time"

	"github.com/liravoice/lira-core/core/audio"
)

// Result is a single transcription result delivered by a live session.
// Interim results are revisions of the utterance in progress; a final
// result closes the utterance and resets the interim state.
type Result struct {
	Text    string
	IsFinal bool

	// Confidence and Language are only populated on final results, and
	// only when the vendor reports them. SpeechDuration measures from
	// the first observed speech activity to the final result.
	Confidence     float64
	Language       string
	SpeechDuration time.Duration
}

// Session is a live transcription stream for a single audio source.
type Session interface {
	SendAudio(audio []byte) error
}

type SessionOptions struct {
	ResultCallback        func(Result)
	ErrorCallback         func(error)
	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
	Language     string
	Model        string
}

type SessionOption func(*SessionOptions)

func WithResultCallback(callback func(Result)) SessionOption {
	return func(o *SessionOptions) {
		o.ResultCallback = callback
	}
}

func WithErrorCallback(callback func(error)) SessionOption {
	return func(o *SessionOptions) {
		o.ErrorCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SessionOption {
	return func(o *SessionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguage(language string) SessionOption {
	return func(o *SessionOptions) {
		o.Language = language
	}
}

func WithModel(model string) SessionOption {
	return func(o *SessionOptions) {
		o.Model = model
	}
}
