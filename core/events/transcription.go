package events

import "time"

const (
	// KindTranscription identifies a transcription result from any
	// participant, interim or final.
	KindTranscription Kind = "user_input.transcription"
)

// Transcription carries one transcription result tagged with the speaker it
// came from. Interim results are mutable snapshots of the utterance in
// progress; final results are terminal for the utterance.
type Transcription struct {
	Base
	Speaker string
	Text    string
	IsFinal bool

	// Confidence, Language and SpeechDuration are only populated on final
	// results, and only when the transcriber reports them.
	Confidence     float64
	Language       string
	SpeechDuration time.Duration
}

// NewInterimTranscription creates a transcription event for an interim
// result.
func NewInterimTranscription(speaker, text string) Transcription {
	return Transcription{Base: NewBase(KindTranscription), Speaker: speaker, Text: text}
}

// NewFinalTranscription creates a transcription event for a final result.
func NewFinalTranscription(speaker, text string, confidence float64, language string, speechDuration time.Duration) Transcription {
	return Transcription{
		Base:           NewBase(KindTranscription),
		Speaker:        speaker,
		Text:           text,
		IsFinal:        true,
		Confidence:     confidence,
		Language:       language,
		SpeechDuration: speechDuration,
	}
}
