package pipeline

import (
	"context"
	"time"

	"github.com/liravoice/lira-core/core/audio"
	"github.com/liravoice/lira-core/core/events"
	"github.com/liravoice/lira-core/core/llms"
	"github.com/liravoice/lira-core/core/speechtotext"
	"github.com/liravoice/lira-core/core/texttospeech"
)

// SpeechToText opens live transcription sessions. One session is opened
// per participant so transcriptions stay attributed to their speaker.
type SpeechToText interface {
	OpenSession(ctx context.Context, opts ...speechtotext.SessionOption) (speechtotext.Session, error)
}

// StreamingLLM produces a streamed chat completion for a conversation.
type StreamingLLM interface {
	ChatStream(ctx context.Context, messages []llms.Message, opts ...llms.ChatOption) llms.Stream
}

// LLMWithWarmup is implemented by language model clients that can
// pre-establish their connection and prompt cache before the first real
// request.
type LLMWithWarmup interface {
	Warmup(ctx context.Context, systemPrompt string) error
}

// TextToSpeech synthesizes a single sentence into an audio stream.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (texttospeech.AudioStream, error)
}

// TextToSpeechWithWarmup is implemented by synthesis clients that can
// pre-establish their connection before the first sentence.
type TextToSpeechWithWarmup interface {
	Warmup(ctx context.Context) error
}

// TextToSpeechWithCleanup is implemented by synthesis clients that need
// vendor specific text normalization before synthesis. Clients without
// it get the shared language-markup strip.
type TextToSpeechWithCleanup interface {
	CleanText(text string) string
}

// TextToSpeechWithLanguage is implemented by synthesis clients that know
// which language their configured voice speaks by default.
type TextToSpeechWithLanguage interface {
	DefaultLanguage() string
}

// AudioOutput plays synthesized audio. WriteStream should not return
// until the stream is fully consumed or the context is cancelled; Flush
// drops anything buffered but not yet played.
type AudioOutput interface {
	WriteStream(ctx context.Context, stream texttospeech.AudioStream) error
	Flush()
}

// AudioOutputWithResponseBounds is told where each spoken response
// begins and ends so it can manage pacing or comfort noise in between.
type AudioOutputWithResponseBounds interface {
	BeginResponse()
	EndResponse()
}

// AudioOutputWithSilence can append silence to the playback stream.
type AudioOutputWithSilence interface {
	WriteSilence(d time.Duration)
}

// AudioOutputWithPlayback reports whether audio is currently audible.
type AudioOutputWithPlayback interface {
	IsPlaying() bool
}

// AudioOutputWithEncoding reports the encoding the output expects.
type AudioOutputWithEncoding interface {
	EncodingInfo() audio.EncodingInfo
}

// AudioCapture streams raw audio from a local source, like a
// microphone. Stream blocks until the context is cancelled or capture
// fails.
type AudioCapture interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

// RoomMemory is long-term storage for conversation turns. Stores are
// issued fire-and-forget; searches return a ready-to-inject context
// block, empty when nothing relevant is found.
type RoomMemory interface {
	StoreTurn(ctx context.Context, speaker string, text string, isAgent bool) error
	SearchRelevant(ctx context.Context, query string) (string, error)
}

// RespondMode selects which final transcriptions the agent answers.
type RespondMode string

const (
	// RespondAlways answers every final transcription that passes the
	// response gate.
	RespondAlways RespondMode = "always"
	// RespondAddressed answers only transcriptions that mention the
	// agent by name or one of its name variants.
	RespondAddressed RespondMode = "addressed"
)

type Option func(*Pipeline)

func WithSpeechToText(client SpeechToText) Option {
	return func(p *Pipeline) {
		p.stt.set(client)
	}
}

func WithLLM(client StreamingLLM) Option {
	return func(p *Pipeline) {
		p.llm.set(client)
	}
}

func WithTextToSpeech(client TextToSpeech) Option {
	return func(p *Pipeline) {
		p.tts.set(client)
	}
}

func WithAudioOutput(client AudioOutput) Option {
	return func(p *Pipeline) {
		p.audioOut.set(client)
	}
}

// WithAudioInput wires a local capture source. Captured audio is
// transcribed under the given identity, as if it arrived through
// SendAudio.
func WithAudioInput(client AudioCapture, identity string) Option {
	return func(p *Pipeline) {
		p.audioIn.set(client, identity)
	}
}

func WithMemory(store RoomMemory) Option {
	return func(p *Pipeline) {
		p.memory.set(store)
	}
}

// WithInstructions sets the system prompt that opens every model
// request.
func WithInstructions(instructions string) Option {
	return func(p *Pipeline) {
		p.instructions = instructions
	}
}

// WithAgentName sets the name the agent listens for in addressed mode.
// Variants cover nicknames and common transcription misspellings.
func WithAgentName(name string, variants ...string) Option {
	return func(p *Pipeline) {
		p.agentName = name
		p.nameVariants = variants
	}
}

func WithRespondMode(mode RespondMode) Option {
	return func(p *Pipeline) {
		p.respondMode = mode
	}
}

// WithResponseGate sets a predicate consulted before responding to a
// final transcription. Returning false suppresses the response. The
// gate runs after the respond mode check.
func WithResponseGate(gate func(speaker string, transcript string) bool) Option {
	return func(p *Pipeline) {
		p.responseGate = gate
	}
}

// WithSegmentedSpeech asks the model to produce language-tagged
// segments instead of free-running text, so multilingual responses can
// be voiced correctly. Languages are BCP 47 tags the model may use.
func WithSegmentedSpeech(languages ...string) Option {
	return func(p *Pipeline) {
		p.segmentLanguages = languages
	}
}

func WithMaxContextTokens(tokens int) Option {
	return func(p *Pipeline) {
		p.maxContextTokens = tokens
	}
}

func WithRecentTurnsToKeep(turns int) Option {
	return func(p *Pipeline) {
		p.recentTurnsToKeep = turns
	}
}

// WithDrainDelay overrides the pause the pipeline holds after a spoken
// response before accepting the next turn, covering output device
// buffering.
func WithDrainDelay(delay time.Duration) Option {
	return func(p *Pipeline) {
		p.drainDelay = delay
	}
}

// WithSilenceTimeout overrides how long the turn detector waits after a
// final transcription before declaring the turn over.
func WithSilenceTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.silenceTimeout = timeout
	}
}

// WithTurnEndCallback is called when the turn detector declares a turn
// over. The callback is advisory and does not gate response processing.
func WithTurnEndCallback(callback func()) Option {
	return func(p *Pipeline) {
		p.onTurnEnd = callback
	}
}

type StartOptions struct {
	transcriptionCallback func(speaker string, transcript string, isFinal bool)
	sentenceCallback      func(sentence string)
	responseCallback      func(response string)
	stateChangedCallback  func(state AgentState)
	errorCallback         func(err error)
	eventHandler          func(event events.Event)
}

type StartOption func(*StartOptions)

// WithTranscriptionCallback is called for every transcription result,
// interim and final.
func WithTranscriptionCallback(callback func(speaker string, transcript string, isFinal bool)) StartOption {
	return func(o *StartOptions) {
		o.transcriptionCallback = callback
	}
}

// WithSentenceCallback is called for each sentence of a response as it
// is queued for synthesis.
func WithSentenceCallback(callback func(sentence string)) StartOption {
	return func(o *StartOptions) {
		o.sentenceCallback = callback
	}
}

// WithResponseCallback is called once per response cycle with the full
// assembled response. Interrupted cycles report the portion produced
// before the interruption.
func WithResponseCallback(callback func(response string)) StartOption {
	return func(o *StartOptions) {
		o.responseCallback = callback
	}
}

func WithStateChangedCallback(callback func(state AgentState)) StartOption {
	return func(o *StartOptions) {
		o.stateChangedCallback = callback
	}
}

// WithErrorCallback is called for unexpected failures that end a
// response cycle. Cancellations and transient provider errors are not
// reported here.
func WithErrorCallback(callback func(err error)) StartOption {
	return func(o *StartOptions) {
		o.errorCallback = callback
	}
}

// WithEventHandler receives every event the pipeline emits, after the
// typed callbacks. Useful for logging and replay.
func WithEventHandler(handler func(event events.Event)) StartOption {
	return func(o *StartOptions) {
		o.eventHandler = handler
	}
}
