package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/liravoice/lira-core/core/speechtotext"
)

func TestAddressedModeOnlyAnswersByName(t *testing.T) {
	p := New(
		WithLLM(scriptedLLMStub{script: "You called for me. Here I am, at your service."}),
		WithAgentName("Lira", "Leera"),
		WithRespondMode(RespondAddressed),
	)
	defer p.Stop(context.Background())

	responses := make(chan string, 2)
	err := p.Start(context.Background(),
		WithResponseCallback(func(response string) {
			select {
			case responses <- response:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "just thinking out loud")

	select {
	case response := <-responses:
		t.Fatalf("expected no response to unaddressed speech, got %q", response)
	case <-time.After(100 * time.Millisecond):
	}

	if got := len(p.History()); got != 1 {
		t.Fatalf("expected unaddressed speech still recorded, got %d turns", got)
	}

	p.SubmitUtterance("luka", "hey leera, are you there")

	select {
	case <-responses:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the addressed response")
	}
}

func TestResponseGateSuppressesResponses(t *testing.T) {
	p := New(
		WithLLM(scriptedLLMStub{script: "Only the permitted speaker hears back from me."}),
		WithResponseGate(func(speaker string, _ string) bool {
			return speaker != "intruder"
		}),
	)
	defer p.Stop(context.Background())

	responses := make(chan string, 2)
	err := p.Start(context.Background(),
		WithResponseCallback(func(response string) {
			select {
			case responses <- response:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("intruder", "respond to me")

	select {
	case response := <-responses:
		t.Fatalf("expected the gate to suppress the response, got %q", response)
	case <-time.After(100 * time.Millisecond):
	}

	p.SubmitUtterance("luka", "respond to me")

	select {
	case <-responses:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the permitted response")
	}
}

func TestEmptyFinalTranscriptionLeavesNoTurn(t *testing.T) {
	p := New(WithLLM(scriptedLLMStub{script: "Nothing should ever trigger me in this test."}))
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.handleTranscription("luka", speechtotext.Result{Text: "uh", IsFinal: false})
	p.handleTranscription("luka", speechtotext.Result{Text: "   ", IsFinal: true})

	time.Sleep(50 * time.Millisecond)
	if got := len(p.History()); got != 0 {
		t.Fatalf("expected no turns from a dissolved utterance, got %d", got)
	}
	if got := p.State(); got != StateIdle {
		t.Fatalf("expected the agent back to idle, got %v", got)
	}
}

func TestInterimTranscriptionsRaiseListeningState(t *testing.T) {
	p := New(WithLLM(scriptedLLMStub{script: "Interims alone never produce any responses."}))
	defer p.Stop(context.Background())

	states := make(chan AgentState, 4)
	err := p.Start(context.Background(),
		WithStateChangedCallback(func(state AgentState) {
			select {
			case states <- state:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.handleTranscription("luka", speechtotext.Result{Text: "so I was", IsFinal: false})

	select {
	case state := <-states:
		if state != StateListening {
			t.Fatalf("expected the listening state, got %v", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the listening state")
	}

	if got := len(p.History()); got != 0 {
		t.Fatalf("expected no turns from interim speech, got %d", got)
	}
}

func TestTranscriptionCallbackSeesInterimAndFinal(t *testing.T) {
	p := New(
		WithLLM(scriptedLLMStub{script: "Heard you loud and clear, every single word."}),
	)
	defer p.Stop(context.Background())

	type heard struct {
		speaker    string
		transcript string
		isFinal    bool
	}
	transcripts := make(chan heard, 4)
	err := p.Start(context.Background(),
		WithTranscriptionCallback(func(speaker string, transcript string, isFinal bool) {
			select {
			case transcripts <- heard{speaker: speaker, transcript: transcript, isFinal: isFinal}:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.handleTranscription("luka", speechtotext.Result{Text: "so about", IsFinal: false})
	p.handleTranscription("luka", speechtotext.Result{Text: "so about that plan", IsFinal: true})

	select {
	case first := <-transcripts:
		if first.isFinal || first.transcript != "so about" || first.speaker != "luka" {
			t.Fatalf("expected the interim transcript first, got %+v", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the interim transcript")
	}

	select {
	case second := <-transcripts:
		if !second.isFinal || second.transcript != "so about that plan" {
			t.Fatalf("expected the final transcript second, got %+v", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the final transcript")
	}
}
