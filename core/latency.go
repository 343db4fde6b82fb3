package pipeline

import (
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// turnLatency records the latency milestones of one response cycle on
// its span. Milestones are observational only and never influence
// control flow; each is recorded once, later marks are ignored.
type turnLatency struct {
	span      trace.Span
	startedAt time.Time

	firstTokenSeen    atomic.Bool
	firstSentenceSeen atomic.Bool
	firstAudioSeen    atomic.Bool
}

func newTurnLatency(span trace.Span) *turnLatency {
	return &turnLatency{span: span, startedAt: time.Now()}
}

// markFirstToken records the time to the first model token.
func (l *turnLatency) markFirstToken() {
	if l == nil || !l.firstTokenSeen.CompareAndSwap(false, true) {
		return
	}

	elapsed := time.Since(l.startedAt)
	l.span.AddEvent("first token")
	l.span.SetAttributes(attribute.Int64("latency.first_token_ms", elapsed.Milliseconds()))
}

// markFirstSentence records the time to the first complete sentence.
func (l *turnLatency) markFirstSentence() {
	if l == nil || !l.firstSentenceSeen.CompareAndSwap(false, true) {
		return
	}

	elapsed := time.Since(l.startedAt)
	l.span.AddEvent("first sentence")
	l.span.SetAttributes(attribute.Int64("latency.first_sentence_ms", elapsed.Milliseconds()))
}

// markFirstAudio records the time to the first audible output, the
// user-perceived response latency.
func (l *turnLatency) markFirstAudio() {
	if l == nil || !l.firstAudioSeen.CompareAndSwap(false, true) {
		return
	}

	elapsed := time.Since(l.startedAt)
	l.span.AddEvent("first audio")
	l.span.SetAttributes(attribute.Int64("latency.first_audio_ms", elapsed.Milliseconds()))
}
