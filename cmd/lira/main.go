// Command lira runs a voice agent in the terminal: microphone in,
// speaker out, with a transcript pane and a text input for typing
// instead of talking.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	pipeline "github.com/liravoice/lira-core/core"
	"github.com/liravoice/lira-core/core/audio/miniaudio"
	"github.com/liravoice/lira-core/core/audio/portaudio"
	"github.com/liravoice/lira-core/core/llms/groq"
	"github.com/liravoice/lira-core/core/llms/openai"
	"github.com/liravoice/lira-core/core/memory/badgerstore"
	sttdeepgram "github.com/liravoice/lira-core/core/speechtotext/deepgram"
	ttsdeepgram "github.com/liravoice/lira-core/core/texttospeech/deepgram"
	"github.com/liravoice/lira-core/core/texttospeech/elevenlabs"
)

// localIdentity attributes microphone audio and typed messages to the
// person at the terminal.
const localIdentity = "user"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file, defaults apply when omitted")
	textOnly := flag.Bool("text-only", false, "skip audio capture and playback, converse over the keyboard")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(cfg, *textOnly); err != nil {
		log.Fatalf("Agent exited with error: %v", err)
	}
}

func run(cfg Config, textOnly bool) error {
	opts, closers, err := buildOptions(cfg, textOnly)
	if err != nil {
		// The pipeline never saw these clients, so release them here.
		for _, closeClient := range closers {
			closeClient()
		}
		return err
	}

	// From here on the pipeline owns the clients; Stop releases them.
	agent := pipeline.New(opts...)

	events := make(chan agentEvent, 64)
	ctx := context.Background()
	if err := agent.Start(ctx, startOptions(events)...); err != nil {
		_ = agent.Stop(ctx)
		return fmt.Errorf("failed to start agent: %w", err)
	}

	program := tea.NewProgram(
		newModel(agent, cfg.Agent.Name, localIdentity, events),
		tea.WithAltScreen(),
	)
	_, runErr := program.Run()

	stopErr := agent.Stop(ctx)
	if runErr != nil {
		return runErr
	}
	return stopErr
}

// buildOptions translates the config into pipeline options, constructing
// provider clients along the way. The returned closers release clients
// constructed so far; they are only for the error path, a running
// pipeline closes its own clients.
func buildOptions(cfg Config, textOnly bool) ([]pipeline.Option, []func(), error) {
	opts := []pipeline.Option{
		pipeline.WithInstructions(cfg.Agent.Instructions),
		pipeline.WithAgentName(cfg.Agent.Name, cfg.Agent.NameVariants...),
		pipeline.WithRespondMode(pipeline.RespondMode(cfg.Agent.RespondMode)),
	}
	var closers []func()

	if len(cfg.Languages) > 0 {
		opts = append(opts, pipeline.WithSegmentedSpeech(cfg.Languages...))
	}
	if cfg.Context.MaxTokens > 0 {
		opts = append(opts, pipeline.WithMaxContextTokens(cfg.Context.MaxTokens))
	}
	if cfg.Context.RecentTurns > 0 {
		opts = append(opts, pipeline.WithRecentTurnsToKeep(cfg.Context.RecentTurns))
	}
	if cfg.Timing.SilenceTimeout > 0 {
		opts = append(opts, pipeline.WithSilenceTimeout(cfg.Timing.SilenceTimeout))
	}
	if cfg.Timing.DrainDelay > 0 {
		opts = append(opts, pipeline.WithDrainDelay(cfg.Timing.DrainDelay))
	}

	llmOption, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, closers, err
	}
	opts = append(opts, llmOption)

	if cfg.Memory.Dir != "" || cfg.Memory.InMemory {
		store, err := buildMemory(cfg.Memory)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() { _ = store.Close() })
		opts = append(opts, pipeline.WithMemory(store))
	}

	if textOnly {
		return opts, closers, nil
	}

	needPlayback := cfg.Audio.Playback == "miniaudio" && cfg.TTS.Provider != "none"
	needCapture := cfg.Audio.Capture != "none"

	var audioClient *miniaudio.Client
	if needPlayback || cfg.Audio.Capture == "miniaudio" {
		audioClient, err = miniaudio.NewClient()
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, audioClient.Close)
	}

	if needPlayback {
		ttsOption, err := buildTTS(cfg.TTS, cfg.Languages)
		if err != nil {
			return nil, closers, err
		}
		opts = append(opts, ttsOption, pipeline.WithAudioOutput(audioClient))
	}

	if needCapture {
		switch cfg.Audio.Capture {
		case "portaudio":
			capture, err := portaudio.NewClient()
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, capture.Close)
			opts = append(opts, pipeline.WithAudioInput(capture, localIdentity))
		default:
			opts = append(opts, pipeline.WithAudioInput(audioClient, localIdentity))
		}

		sttOption, err := buildSTT(cfg.STT)
		if err != nil {
			return nil, closers, err
		}
		opts = append(opts, sttOption)
	}

	return opts, closers, nil
}

func buildLLM(cfg LLMConfig) (pipeline.Option, error) {
	switch cfg.Provider {
	case "groq":
		var clientOpts []groq.ClientOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, groq.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			clientOpts = append(clientOpts, groq.WithModel(cfg.Model))
		}
		client, err := groq.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build groq client: %w", err)
		}
		return pipeline.WithLLM(client), nil

	default:
		var clientOpts []openai.ClientOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, openai.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			clientOpts = append(clientOpts, openai.WithModel(cfg.Model))
		}
		client, err := openai.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai client: %w", err)
		}
		return pipeline.WithLLM(client), nil
	}
}

func buildSTT(cfg STTConfig) (pipeline.Option, error) {
	var clientOpts []sttdeepgram.ClientOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, sttdeepgram.WithAPIKey(cfg.APIKey))
	}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, sttdeepgram.WithModel(cfg.Model))
	}
	if cfg.Language != "" {
		clientOpts = append(clientOpts, sttdeepgram.WithLanguage(cfg.Language))
	}
	client, err := sttdeepgram.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription client: %w", err)
	}
	return pipeline.WithSpeechToText(client), nil
}

func buildTTS(cfg TTSConfig, languages []string) (pipeline.Option, error) {
	switch cfg.Provider {
	case "elevenlabs":
		var clientOpts []elevenlabs.ClientOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, elevenlabs.WithAPIKey(cfg.APIKey))
		}
		if cfg.Voice != "" {
			clientOpts = append(clientOpts, elevenlabs.WithVoiceID(cfg.Voice))
		}
		if cfg.Language != "" {
			clientOpts = append(clientOpts, elevenlabs.WithLanguage(cfg.Language))
		} else if len(languages) > 0 {
			clientOpts = append(clientOpts, elevenlabs.WithLanguage(languages[0]))
		}
		client, err := elevenlabs.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build elevenlabs client: %w", err)
		}
		return pipeline.WithTextToSpeech(client), nil

	default:
		var clientOpts []ttsdeepgram.ClientOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, ttsdeepgram.WithAPIKey(cfg.APIKey))
		}
		if cfg.Voice != "" {
			clientOpts = append(clientOpts, ttsdeepgram.WithVoice(ttsdeepgram.Voice(cfg.Voice)))
		}
		client, err := ttsdeepgram.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build deepgram speak client: %w", err)
		}
		return pipeline.WithTextToSpeech(client), nil
	}
}

func buildMemory(cfg MemoryConfig) (*badgerstore.Store, error) {
	var storeOpts []badgerstore.StoreOption
	if cfg.Dir != "" {
		storeOpts = append(storeOpts, badgerstore.WithDir(cfg.Dir))
	}
	if cfg.InMemory {
		storeOpts = append(storeOpts, badgerstore.WithInMemory())
	}
	store, err := badgerstore.NewStore(storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return store, nil
}

// startOptions adapts pipeline callbacks into the channel the TUI pumps
// from. Sends never block; when the UI falls behind, events are dropped
// rather than holding up a pipeline callback.
func startOptions(events chan<- agentEvent) []pipeline.StartOption {
	push := func(e agentEvent) {
		select {
		case events <- e:
		default:
		}
	}

	return []pipeline.StartOption{
		pipeline.WithTranscriptionCallback(func(speaker, transcript string, isFinal bool) {
			push(agentEvent{kind: eventTranscription, speaker: speaker, text: transcript, isFinal: isFinal})
		}),
		pipeline.WithSentenceCallback(func(sentence string) {
			push(agentEvent{kind: eventSentence, text: sentence})
		}),
		pipeline.WithResponseCallback(func(response string) {
			push(agentEvent{kind: eventResponse, text: response})
		}),
		pipeline.WithStateChangedCallback(func(state pipeline.AgentState) {
			push(agentEvent{kind: eventStateChanged, state: state})
		}),
		pipeline.WithErrorCallback(func(err error) {
			push(agentEvent{kind: eventError, err: err})
		}),
	}
}
