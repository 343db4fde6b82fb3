package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestOptionsConfigureThePipeline(t *testing.T) {
	gateCalled := false
	p := New(
		WithInstructions("stay friendly"),
		WithAgentName("Lira", "Leera", "Leara"),
		WithRespondMode(RespondAddressed),
		WithResponseGate(func(string, string) bool {
			gateCalled = true
			return true
		}),
		WithSegmentedSpeech("en", "hr"),
		WithMaxContextTokens(1234),
		WithRecentTurnsToKeep(7),
		WithDrainDelay(123*time.Millisecond),
		WithSilenceTimeout(456*time.Millisecond),
	)
	defer p.Stop(context.Background())

	if p.instructions != "stay friendly" {
		t.Fatalf("expected instructions set, got %q", p.instructions)
	}
	if p.agentName != "Lira" {
		t.Fatalf("expected the agent name set, got %q", p.agentName)
	}
	if len(p.nameVariants) != 2 || p.nameVariants[0] != "Leera" {
		t.Fatalf("expected the name variants kept, got %v", p.nameVariants)
	}
	if p.respondMode != RespondAddressed {
		t.Fatalf("expected the addressed respond mode, got %q", p.respondMode)
	}
	if p.responseGate == nil {
		t.Fatalf("expected the response gate set")
	}
	p.responseGate("luka", "hello")
	if !gateCalled {
		t.Fatalf("expected the configured gate to be the one invoked")
	}
	if len(p.segmentLanguages) != 2 {
		t.Fatalf("expected the segment languages kept, got %v", p.segmentLanguages)
	}
	if p.maxContextTokens != 1234 || p.recentTurnsToKeep != 7 {
		t.Fatalf("expected the context bounds set, got %d/%d", p.maxContextTokens, p.recentTurnsToKeep)
	}
	if p.drainDelay != 123*time.Millisecond {
		t.Fatalf("expected the drain delay overridden, got %v", p.drainDelay)
	}
	if p.silenceTimeout != 456*time.Millisecond {
		t.Fatalf("expected the silence timeout overridden, got %v", p.silenceTimeout)
	}
}

func TestDefaultsAnswerEveryone(t *testing.T) {
	p := New()
	defer p.Stop(context.Background())

	if p.respondMode != RespondAlways {
		t.Fatalf("expected the always respond mode by default, got %q", p.respondMode)
	}
	if p.drainDelay != defaultDrainDelay {
		t.Fatalf("expected the default drain delay, got %v", p.drainDelay)
	}
	if got := p.State(); got != StateIdle {
		t.Fatalf("expected a fresh pipeline idle, got %v", got)
	}
	if p.llm.isConfigured() || p.tts.isConfigured() || p.audioOut.isConfigured() {
		t.Fatalf("expected no providers configured by default")
	}
}

func TestProviderOptionsPopulateTheFacades(t *testing.T) {
	synth := &recordingSynthesizer{}
	p := New(
		WithLLM(scriptedLLMStub{script: "hello"}),
		WithTextToSpeech(synth),
		WithAudioOutput(&recordingAudioOutput{}),
		WithAudioInput(&captureClientStub{}, "mic"),
		WithMemory(&memoryStub{}),
	)
	defer p.Stop(context.Background())

	if !p.llm.isConfigured() {
		t.Fatalf("expected the language model configured")
	}
	if !p.tts.isConfigured() {
		t.Fatalf("expected synthesis configured")
	}
	if !p.audioOut.isConfigured() {
		t.Fatalf("expected audio output configured")
	}
	if !p.audioIn.isConfigured() {
		t.Fatalf("expected audio input configured")
	}
	if p.audioIn.identity != "mic" {
		t.Fatalf("expected captured audio attributed to %q, got %q", "mic", p.audioIn.identity)
	}
	if !p.memory.isConfigured() {
		t.Fatalf("expected memory configured")
	}
}
