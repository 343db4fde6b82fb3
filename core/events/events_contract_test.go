package events

import (
	"errors"
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "interim transcription", event: NewInterimTranscription("alice", "hel"), expected: KindTranscription},
		{name: "final transcription", event: NewFinalTranscription("alice", "hello", 0.98, "en", 300*time.Millisecond), expected: KindTranscription},
		{name: "sentence", event: NewSentence("This is a sentence."), expected: KindSentence},
		{name: "response", event: NewResponse("This is a full response."), expected: KindResponse},
		{name: "agent state changed", event: NewAgentStateChanged("thinking"), expected: KindAgentStateChanged},
		{name: "pipeline error", event: NewPipelineError(errors.New("boom")), expected: KindPipelineError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestInterimAndFinalTranscriptionsShareKind(t *testing.T) {
	interim := NewInterimTranscription("alice", "hel")
	final := NewFinalTranscription("alice", "hello", 0.9, "en", 0)

	if interim.Kind() != final.Kind() {
		t.Fatalf("expected interim and final transcriptions to share a kind, got %q and %q", interim.Kind(), final.Kind())
	}
	if interim.IsFinal {
		t.Fatal("expected interim transcription to not be final")
	}
	if !final.IsFinal {
		t.Fatal("expected final transcription to be final")
	}
}
