// Package pipeline orchestrates a realtime voice agent: live
// transcription of participants, turn detection, streamed language
// model responses, sentence-level speech synthesis, and barge-in when a
// participant talks over the agent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liravoice/lira-core/core/events"
	"github.com/liravoice/lira-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// defaultDrainDelay is held after a spoken response so buffered
	// audio finishes playing before the agent listens for the next turn.
	defaultDrainDelay = 800 * time.Millisecond

	warmupTimeout = 10 * time.Second
)

// AgentState is the externally visible lifecycle state of the agent.
type AgentState string

const (
	StateIdle      AgentState = "idle"
	StateListening AgentState = "listening"
	StateThinking  AgentState = "thinking"
	StateSpeaking  AgentState = "speaking"
)

// Pipeline is a realtime voice agent. Configure collaborators with
// options, Start it, then feed it audio through participants or text
// through SubmitUtterance.
//
// All exported methods are safe for concurrent use.
type Pipeline struct {
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	closed  atomic.Bool

	instructions string
	agentName    string
	nameVariants []string
	respondMode  RespondMode
	responseGate func(speaker string, transcript string) bool

	segmentLanguages []string

	maxContextTokens  int
	recentTurnsToKeep int
	drainDelay        time.Duration
	silenceTimeout    time.Duration

	llm      *llm
	stt      *transcriptionSessions
	tts      *textToSpeech
	audioOut *audioOutput
	audioIn  *audioInput
	memory   *roomMemory

	conversation *ContextManager
	bargeIn      *BargeIn
	turnDetector *TurnDetector
	onTurnEnd    func()

	emitMu    sync.RWMutex
	emitEvent eventEmitter

	state atomic.Value

	processing atomic.Bool
	pendingMu  sync.Mutex
	pending    *pendingUtterance

	warmupDone chan struct{}
}

// New builds a pipeline from the given options. Warmup of the language
// model and synthesis connections starts immediately in the background;
// the first turn waits for it to settle.
func New(opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		ctx:         ctx,
		cancel:      cancel,
		respondMode: RespondAlways,
		drainDelay:  defaultDrainDelay,
		llm:         &llm{},
		stt:         newTranscriptionSessions(),
		tts:         &textToSpeech{},
		audioOut:    &audioOutput{},
		audioIn:     &audioInput{},
		memory:      &roomMemory{},
		emitEvent:   noopEventEmitter,
		warmupDone:  make(chan struct{}),
	}
	p.state.Store(StateIdle)
	p.bargeIn = NewBargeIn(func() { p.audioOut.flush() })

	for _, opt := range opts {
		opt(p)
	}

	p.conversation = NewContextManager(p.instructions, p.agentName, p.maxContextTokens, p.recentTurnsToKeep)
	p.turnDetector = NewTurnDetector(p.silenceTimeout, func() {
		if p.onTurnEnd != nil {
			p.onTurnEnd()
		}
	})

	go p.warmUp()

	return p
}

// Start registers the event callbacks and, when local capture is
// configured, begins streaming the microphone into its own
// transcription session.
func (p *Pipeline) Start(ctx context.Context, opts ...StartOption) error {
	if p == nil {
		return errors.New("pipeline is nil")
	}
	if p.closed.Load() {
		return errors.New("pipeline is closed")
	}
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pipeline is already running")
	}

	options := StartOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	p.emitMu.Lock()
	p.emitEvent = newCallbackEventEmitter(options)
	p.emitMu.Unlock()

	if p.audioIn.isConfigured() {
		identity := p.audioIn.identity
		encoding := speechtotext.WithEncodingInfo(p.audioIn.encodingInfo())
		if err := p.AddParticipant(ctx, identity, encoding); err != nil {
			p.running.Store(false)
			return err
		}

		p.audioIn.start(p.ctx, func(frame []byte) {
			if err := p.stt.sendAudio(identity, frame); err != nil {
				log.Printf("Failed to forward captured audio: %v", err)
			}
		}, func(err error) {
			p.emit(events.NewPipelineError(fmt.Errorf("audio capture failed: %w", err)))
		})
	}

	return nil
}

// Stop shuts the pipeline down: the active response is interrupted,
// transcription sessions and clients are closed, and background work is
// cancelled. Stop is idempotent.
func (p *Pipeline) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.running.Store(false)

	p.turnDetector.Stop()
	p.bargeIn.Trigger()
	p.cancel()

	p.audioIn.close()
	p.stt.closeAll(ctx)

	errs := errors.Join(
		p.tts.close(ctx),
		p.audioOut.close(ctx),
		p.memory.close(ctx),
	)

	p.setState(StateIdle)
	return errs
}

// AddParticipant opens a transcription session attributed to the given
// identity. Audio sent for the identity is transcribed and treated as
// that participant speaking. Extra options override session defaults
// like encoding and language.
func (p *Pipeline) AddParticipant(ctx context.Context, identity string, opts ...speechtotext.SessionOption) error {
	if identity == "" {
		return errors.New("participant identity must not be empty")
	}

	base := []speechtotext.SessionOption{
		speechtotext.WithResultCallback(func(result speechtotext.Result) {
			p.handleTranscription(identity, result)
		}),
		speechtotext.WithErrorCallback(func(err error) {
			log.Printf("Transcription session error for %q: %v", identity, err)
		}),
		speechtotext.WithSpeechStartedCallback(func() {
			if p.audioOut.isPlaying() {
				p.bargeIn.Trigger()
			}
		}),
		speechtotext.WithSpeechEndedCallback(func() {
			p.turnDetector.ForceTurnEnd()
		}),
	}
	return p.stt.openFor(ctx, identity, append(base, opts...)...)
}

// RemoveParticipant closes the identity's transcription session.
// Unknown identities are a no-op.
func (p *Pipeline) RemoveParticipant(ctx context.Context, identity string) error {
	return p.stt.closeFor(ctx, identity)
}

// SendAudio forwards an audio frame to the identity's transcription
// session. Frames for identities without a session are dropped.
func (p *Pipeline) SendAudio(identity string, frame []byte) error {
	return p.stt.sendAudio(identity, frame)
}

// SubmitUtterance injects a final transcription directly, bypassing
// speech recognition. Useful for text chat participants and tests.
func (p *Pipeline) SubmitUtterance(speaker string, text string) {
	p.handleTranscription(speaker, speechtotext.Result{Text: text, IsFinal: true})
}

// Say voices the given text without consulting the language model. It
// refuses when a response is already in progress, so scripted speech
// cannot talk over the agent's own answer.
func (p *Pipeline) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !p.processing.CompareAndSwap(false, true) {
		return errors.New("refusing to speak while a response is in progress")
	}

	defer func() {
		p.processing.Store(false)
		p.bargeIn.Reset()
		if pending, ok := p.takePending(); ok {
			p.processTurn(pending.speaker, pending.text)
		}
	}()

	p.awaitWarmup(ctx)

	ctx, span := tracer.Start(ctx, "say",
		trace.WithAttributes(attribute.Int("text_length", len(text))))
	defer span.End()
	latency := newTurnLatency(span)

	cycleCtx := p.bargeIn.StartCycle(ctx)
	cycle := newScriptedCycle(p, text, latency)
	err := cycle.Run(cycleCtx)

	if spoken := cycle.responseText(); spoken != "" {
		p.conversation.AddAgentTurn(spoken)
		p.memory.store(ctx, p.conversation.AgentName(), spoken, true)
		p.emit(events.NewResponse(spoken))
	}

	if err != nil && !p.bargeIn.Interrupted() && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.setState(StateIdle)
		return err
	}

	if cycle.spokeAudio() && !p.bargeIn.Interrupted() {
		select {
		case <-time.After(p.drainDelay):
		case <-cycleCtx.Done():
		}
	}

	p.setState(StateIdle)
	return nil
}

// State returns the agent's current lifecycle state.
func (p *Pipeline) State() AgentState {
	if p == nil {
		return StateIdle
	}

	if state, ok := p.state.Load().(AgentState); ok {
		return state
	}
	return StateIdle
}

// History returns a copy of the conversation so far.
func (p *Pipeline) History() []Turn {
	return p.conversation.History()
}

func (p *Pipeline) emit(event events.Event) {
	if p == nil {
		return
	}

	p.emitMu.RLock()
	emit := p.emitEvent
	p.emitMu.RUnlock()
	if emit == nil {
		return
	}
	emit(event)
}

// setState transitions the lifecycle state, emitting an event only when
// the state actually changes.
func (p *Pipeline) setState(state AgentState) {
	if p.state.Swap(state) == state {
		return
	}

	p.emit(events.NewAgentStateChanged(string(state)))
}

// markListening raises idle to listening. Higher states are left alone
// so speech over a response does not masquerade as a fresh turn.
func (p *Pipeline) markListening() {
	if p.State() == StateIdle {
		p.setState(StateListening)
	}
}

func (p *Pipeline) enterSpeaking() {
	p.setState(StateSpeaking)
}

// warmUp pre-establishes provider connections in the background.
// Failures are logged and otherwise ignored; the first real request
// will simply connect cold.
func (p *Pipeline) warmUp() {
	defer close(p.warmupDone)

	ctx, cancel := context.WithTimeout(p.ctx, warmupTimeout)
	defer cancel()

	err := errors.Join(
		p.llm.warmup(ctx, p.instructions),
		p.tts.warmUp(ctx),
	)
	if err != nil {
		log.Printf("Warmup failed: %v", err)
	}
}

// awaitWarmup blocks until background warmup settles, so the first turn
// does not race its own connection setup.
func (p *Pipeline) awaitWarmup(ctx context.Context) {
	select {
	case <-p.warmupDone:
	case <-ctx.Done():
	}
}
