package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liravoice/lira-core/core/speechtotext"
)

func TestNewerTurnReplacesPendingTurn(t *testing.T) {
	p := New(WithLLM(delayedEchoLLMStub{delay: 100 * time.Millisecond}))
	defer p.Stop(context.Background())

	var responsesMu sync.Mutex
	var responses []string
	err := p.Start(context.Background(),
		WithResponseCallback(func(response string) {
			responsesMu.Lock()
			responses = append(responses, response)
			responsesMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "first question")
	waitForCondition(t, 2*time.Second, "first turn to claim processing", func() bool {
		return p.processing.Load()
	})

	// Both land while a turn is in flight. Only one pending slot exists,
	// so the third utterance replaces the second.
	p.SubmitUtterance("luka", "second question")
	p.SubmitUtterance("luka", "third question")

	waitForCondition(t, 2*time.Second, "replacement turn to be answered", func() bool {
		responsesMu.Lock()
		defer responsesMu.Unlock()
		for _, response := range responses {
			if strings.Contains(response, "third question") {
				return true
			}
		}
		return false
	})

	responsesMu.Lock()
	defer responsesMu.Unlock()
	for _, response := range responses {
		if strings.Contains(response, "second question") {
			t.Fatalf("expected the replaced turn to never be answered, got %q", responses)
		}
	}
}

func TestSpeechOverPlaybackInterruptsTheResponse(t *testing.T) {
	output := &recordingAudioOutput{}
	p := New(
		WithLLM(repeatingLLMStub{chunk: "more words keep on coming and coming. ", interval: 10 * time.Millisecond}),
		WithTextToSpeech(&recordingSynthesizer{}),
		WithAudioOutput(output),
		WithDrainDelay(time.Millisecond),
	)
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "talk to me")

	waitForCondition(t, 2*time.Second, "agent to start speaking", func() bool {
		return p.State() == StateSpeaking
	})

	output.setPlaying(true)
	p.handleTranscription("luka", speechtotext.Result{Text: "stop right there"})

	if !p.bargeIn.Interrupted() {
		t.Fatalf("expected live speech over playback to interrupt the response")
	}
	if got := output.flushCalls(); got == 0 {
		t.Fatalf("expected buffered audio to be flushed on interruption")
	}

	waitForCondition(t, 2*time.Second, "agent to settle after the interruption", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})
}

func TestInterruptedTurnKeepsThePartialResponse(t *testing.T) {
	output := &recordingAudioOutput{}
	p := New(
		WithLLM(repeatingLLMStub{chunk: "every sentence sounds exactly the same here. ", interval: 10 * time.Millisecond}),
		WithTextToSpeech(&recordingSynthesizer{}),
		WithAudioOutput(output),
		WithDrainDelay(time.Millisecond),
	)
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "ramble for me")
	waitForCondition(t, 2*time.Second, "agent to start speaking", func() bool {
		return p.State() == StateSpeaking
	})

	output.setPlaying(true)
	p.handleTranscription("luka", speechtotext.Result{Text: "enough"})

	waitForCondition(t, 2*time.Second, "agent to settle after the interruption", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})

	history := p.History()
	if len(history) < 2 {
		t.Fatalf("expected the partial response kept in the history, got %d turns", len(history))
	}
	last := history[len(history)-1]
	if !last.IsAgent || !strings.Contains(last.Text, "every sentence sounds exactly the same here.") {
		t.Fatalf("expected the agent turn to hold what was generated before the cut, got %+v", last)
	}
}
