package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liravoice/lira-core/core/llms"
	"github.com/liravoice/lira-core/core/texttospeech"
)

func TestSubmittedUtteranceGetsAResponse(t *testing.T) {
	p := New(
		WithLLM(scriptedLLMStub{script: "Hello from the agent. Nice to meet you properly."}),
		WithInstructions("be brief"),
	)
	defer p.Stop(context.Background())

	responses := make(chan string, 4)
	var sentences atomic.Int32
	err := p.Start(context.Background(),
		WithResponseCallback(func(response string) {
			select {
			case responses <- response:
			default:
			}
		}),
		WithSentenceCallback(func(string) { sentences.Add(1) }),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "hi")

	select {
	case response := <-responses:
		if response != "Hello from the agent. Nice to meet you properly." {
			t.Fatalf("expected the full scripted response, got %q", response)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the response")
	}

	if got := sentences.Load(); got != 2 {
		t.Fatalf("expected the response spoken in two sentences, got %d", got)
	}

	waitForCondition(t, 2*time.Second, "agent to return to idle", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})

	history := p.History()
	if len(history) != 2 {
		t.Fatalf("expected a user and an agent turn, got %d", len(history))
	}
	if history[0].Speaker != "luka" || history[0].IsAgent {
		t.Fatalf("expected the user turn first, got %+v", history[0])
	}
	if !history[1].IsAgent || history[1].Text != "Hello from the agent. Nice to meet you properly." {
		t.Fatalf("expected the agent turn second, got %+v", history[1])
	}
}

func TestSpokenResponseIsSynthesizedSentenceBySentence(t *testing.T) {
	synth := &recordingSynthesizer{}
	output := &recordingAudioOutput{}
	p := New(
		WithLLM(scriptedLLMStub{script: "This is the first sentence. And here comes the second one."}),
		WithTextToSpeech(synth),
		WithAudioOutput(output),
		WithDrainDelay(time.Millisecond),
	)
	defer p.Stop(context.Background())

	var sawSpeaking atomic.Bool
	err := p.Start(context.Background(),
		WithStateChangedCallback(func(state AgentState) {
			if state == StateSpeaking {
				sawSpeaking.Store(true)
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "say two sentences")

	waitForCondition(t, 2*time.Second, "agent to return to idle", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})

	texts := synth.synthesized()
	if len(texts) != 2 {
		t.Fatalf("expected two synthesized sentences, got %q", texts)
	}
	if texts[0] != "This is the first sentence." {
		t.Fatalf("expected the first sentence synthesized on its own, got %q", texts[0])
	}
	if got := output.writtenStreams(); got != 2 {
		t.Fatalf("expected two audio streams written, got %d", got)
	}
	if !sawSpeaking.Load() {
		t.Fatalf("expected the agent to report speaking")
	}
}

func TestSegmentedResponsesCarryLanguageMarkup(t *testing.T) {
	synth := &recordingSynthesizer{}
	p := New(
		WithLLM(segmentLLMStub{segments: []llms.Segment{
			{Language: "en", Text: "Hello over there, my friend."},
			{Language: "de", Text: "Guten Tag, mein lieber Freund."},
		}}),
		WithTextToSpeech(synth),
		WithAudioOutput(&recordingAudioOutput{}),
		WithSegmentedSpeech("en", "de"),
		WithDrainDelay(time.Millisecond),
	)
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "greet me twice")

	waitForCondition(t, 2*time.Second, "agent to return to idle", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})

	texts := synth.synthesized()
	if len(texts) != 2 {
		t.Fatalf("expected two synthesized segments, got %q", texts)
	}
	if texts[0] != "Hello over there, my friend." {
		t.Fatalf("expected the default-language segment unwrapped, got %q", texts[0])
	}
	if texts[1] != `<lang xml:lang="de">Guten Tag, mein lieber Freund.</lang>` {
		t.Fatalf("expected the foreign segment wrapped in language markup, got %q", texts[1])
	}
}

func TestSayVoicesScriptedText(t *testing.T) {
	p := New()
	defer p.Stop(context.Background())

	responses := make(chan string, 1)
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

	if err := p.Say(context.Background(), "Scripted greetings, straight from the operator."); err != nil {
		t.Fatalf("expected say to succeed, got %v", err)
	}

	select {
	case response := <-responses:
		if response != "Scripted greetings, straight from the operator." {
			t.Fatalf("expected the scripted line back, got %q", response)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the scripted response")
	}

	history := p.History()
	if len(history) != 1 || !history[0].IsAgent {
		t.Fatalf("expected the scripted line recorded as an agent turn, got %+v", history)
	}
}

func TestSayRefusesWhileAResponseIsInProgress(t *testing.T) {
	p := New(WithLLM(delayedEchoLLMStub{delay: 200 * time.Millisecond}))
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "slow question")
	waitForCondition(t, 2*time.Second, "turn to claim processing", func() bool {
		return p.processing.Load()
	})

	if err := p.Say(context.Background(), "barging in"); err == nil {
		t.Fatalf("expected say to refuse while a response is in progress")
	}
}

func TestStopInterruptsTheActiveResponse(t *testing.T) {
	p := New(WithLLM(delayedEchoLLMStub{delay: 500 * time.Millisecond}))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "never finished")
	waitForCondition(t, 2*time.Second, "turn to claim processing", func() bool {
		return p.processing.Load()
	})

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop to be idempotent, got %v", err)
	}

	if got := p.State(); got != StateIdle {
		t.Fatalf("expected the stopped agent idle, got %v", got)
	}

	waitForCondition(t, 2*time.Second, "processing to wind down", func() bool {
		return !p.processing.Load()
	})

	turnsBefore := len(p.History())
	p.SubmitUtterance("luka", "anyone home")
	time.Sleep(50 * time.Millisecond)
	if got := len(p.History()); got != turnsBefore {
		t.Fatalf("expected utterances after stop to be dropped, got %d turns", got)
	}
}

func TestStreamFailureReportsAnErrorAndRecovers(t *testing.T) {
	p := New(WithLLM(failingLLMStub{err: errors.New("boom")}))
	defer p.Stop(context.Background())

	errs := make(chan error, 1)
	err := p.Start(context.Background(),
		WithErrorCallback(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	p.SubmitUtterance("luka", "cause trouble")

	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "boom") {
			t.Fatalf("expected the provider failure surfaced, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the error callback")
	}

	waitForCondition(t, 2*time.Second, "agent to settle after the failure", func() bool {
		return p.State() == StateIdle && !p.processing.Load()
	})
}

func TestMemoryIsConsultedAndFed(t *testing.T) {
	memory := &memoryStub{recall: "Relevant earlier conversation:\n[luka]: trains are great"}
	llm := &capturingLLMStub{script: "Trains again, I remember. You do love them dearly."}
	p := New(WithLLM(llm), WithMemory(memory))
	defer p.Stop(context.Background())

	responses := make(chan string, 1)
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

	p.SubmitUtterance("luka", "what do i love")

	select {
	case <-responses:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the response")
	}

	var recalled bool
	for _, message := range llm.lastMessages() {
		if message.Role == llms.RoleSystem && strings.Contains(message.Content, "trains are great") {
			recalled = true
		}
	}
	if !recalled {
		t.Fatalf("expected the recalled context in the prompt, got %+v", llm.lastMessages())
	}

	waitForCondition(t, 2*time.Second, "turns to reach the store", func() bool {
		return memory.storedCount() >= 2
	})
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type scriptedLLMStub struct {
	script string
}

func (stub scriptedLLMStub) ChatStream(_ context.Context, _ []llms.Message, _ ...llms.ChatOption) llms.Stream {
	return scriptedStreamStub{pieces: strings.SplitAfter(stub.script, " ")}
}

type capturingLLMStub struct {
	script string

	mu       sync.Mutex
	messages []llms.Message
}

func (stub *capturingLLMStub) ChatStream(_ context.Context, messages []llms.Message, _ ...llms.ChatOption) llms.Stream {
	stub.mu.Lock()
	stub.messages = append([]llms.Message(nil), messages...)
	stub.mu.Unlock()
	return scriptedStreamStub{pieces: strings.SplitAfter(stub.script, " ")}
}

func (stub *capturingLLMStub) lastMessages() []llms.Message {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return append([]llms.Message(nil), stub.messages...)
}

type delayedEchoLLMStub struct {
	delay time.Duration
}

func (stub delayedEchoLLMStub) ChatStream(_ context.Context, messages []llms.Message, _ ...llms.ChatOption) llms.Stream {
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return delayedStreamStub{delay: stub.delay, content: "Answering: " + prompt + "."}
}

type repeatingLLMStub struct {
	chunk    string
	interval time.Duration
}

func (stub repeatingLLMStub) ChatStream(context.Context, []llms.Message, ...llms.ChatOption) llms.Stream {
	return repeatingStreamStub{chunk: stub.chunk, interval: stub.interval}
}

type segmentLLMStub struct {
	segments []llms.Segment
}

func (stub segmentLLMStub) ChatStream(context.Context, []llms.Message, ...llms.ChatOption) llms.Stream {
	return segmentStreamStub{segments: stub.segments}
}

type failingLLMStub struct {
	err error
}

func (stub failingLLMStub) ChatStream(context.Context, []llms.Message, ...llms.ChatOption) llms.Stream {
	return failingStreamStub{err: stub.err}
}

type scriptedStreamStub struct {
	pieces []string
}

func (stub scriptedStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, piece := range stub.pieces {
			if ctx.Err() != nil {
				return
			}
			if !yield(streamContentChunkStub{content: piece}, nil) {
				return
			}
		}
	}
}

type delayedStreamStub struct {
	delay   time.Duration
	content string
}

func (stub delayedStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stub.delay):
		}
		yield(streamContentChunkStub{content: stub.content}, nil)
	}
}

type repeatingStreamStub struct {
	chunk    string
	interval time.Duration
}

func (stub repeatingStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ticker := time.NewTicker(stub.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !yield(streamContentChunkStub{content: stub.chunk}, nil) {
					return
				}
			}
		}
	}
}

type segmentStreamStub struct {
	segments []llms.Segment
}

func (stub segmentStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, segment := range stub.segments {
			if ctx.Err() != nil {
				return
			}
			if !yield(streamSegmentChunkStub{segment: segment}, nil) {
				return
			}
		}
	}
}

type failingStreamStub struct {
	err error
}

func (stub failingStreamStub) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		yield(nil, stub.err)
	}
}

type streamContentChunkStub struct {
	content string
}

func (chunk streamContentChunkStub) FinishReason() *string {
	return nil
}

func (chunk streamContentChunkStub) Content() string {
	return chunk.content
}

type streamSegmentChunkStub struct {
	segment llms.Segment
}

func (chunk streamSegmentChunkStub) FinishReason() *string {
	return nil
}

func (chunk streamSegmentChunkStub) Segment() llms.Segment {
	return chunk.segment
}

type recordingSynthesizer struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSynthesizer) Synthesize(_ context.Context, text string) (texttospeech.AudioStream, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return texttospeech.BufferedStream{Buffers: [][]byte{make([]byte, 320)}}, nil
}

// CleanText keeps markup intact so tests can assert on it.
func (s *recordingSynthesizer) CleanText(text string) string {
	return text
}

func (s *recordingSynthesizer) synthesized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type recordingAudioOutput struct {
	mu      sync.Mutex
	streams int
	written int
	flushes int
	playing bool
}

func (output *recordingAudioOutput) WriteStream(ctx context.Context, stream texttospeech.AudioStream) error {
	for buffer, err := range stream.Chunks(ctx) {
		if err != nil {
			return err
		}
		output.mu.Lock()
		output.written += len(buffer)
		output.mu.Unlock()
	}

	output.mu.Lock()
	output.streams++
	output.mu.Unlock()
	return nil
}

func (output *recordingAudioOutput) Flush() {
	output.mu.Lock()
	output.flushes++
	output.mu.Unlock()
}

func (output *recordingAudioOutput) IsPlaying() bool {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.playing
}

func (output *recordingAudioOutput) setPlaying(playing bool) {
	output.mu.Lock()
	output.playing = playing
	output.mu.Unlock()
}

func (output *recordingAudioOutput) writtenStreams() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.streams
}

func (output *recordingAudioOutput) flushCalls() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.flushes
}

type memoryStub struct {
	mu     sync.Mutex
	stored []string
	recall string
}

func (stub *memoryStub) StoreTurn(_ context.Context, speaker string, text string, _ bool) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.stored = append(stub.stored, speaker+": "+text)
	return nil
}

func (stub *memoryStub) SearchRelevant(context.Context, string) (string, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return stub.recall, nil
}

func (stub *memoryStub) storedCount() int {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return len(stub.stored)
}
