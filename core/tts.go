package pipeline

import (
	"context"
	"fmt"

	"github.com/liravoice/lira-core/core/texttospeech"
)

const defaultSpeechLanguage = "en"

// textToSpeech normalizes synthesis clients behind one facade. Optional
// capabilities are resolved once at configuration time so per-sentence
// code can route without repeated type assertions.
type textToSpeech struct {
	client TextToSpeech

	warmup   TextToSpeechWithWarmup
	cleanup  TextToSpeechWithCleanup
	language TextToSpeechWithLanguage
}

func (t *textToSpeech) set(client TextToSpeech) {
	if t == nil {
		return
	}

	t.client = client
	t.warmup = nil
	t.cleanup = nil
	t.language = nil
	if client == nil {
		return
	}

	if warmup, ok := client.(TextToSpeechWithWarmup); ok {
		t.warmup = warmup
	}
	if cleanup, ok := client.(TextToSpeechWithCleanup); ok {
		t.cleanup = cleanup
	}
	if language, ok := client.(TextToSpeechWithLanguage); ok {
		t.language = language
	}
}

func (t *textToSpeech) isConfigured() bool {
	return t != nil && t.client != nil
}

// cleanText normalizes a sentence for the configured client. Clients
// without their own cleanup get the shared language-markup strip.
func (t *textToSpeech) cleanText(text string) string {
	if t != nil && t.cleanup != nil {
		return t.cleanup.CleanText(text)
	}

	return texttospeech.StripLanguageTags(text)
}

// defaultLanguage is the language sentences are assumed to be in when
// not explicitly tagged.
func (t *textToSpeech) defaultLanguage() string {
	if t != nil && t.language != nil {
		if language := t.language.DefaultLanguage(); language != "" {
			return language
		}
	}

	return defaultSpeechLanguage
}

func (t *textToSpeech) warmUp(ctx context.Context) error {
	if t == nil || t.warmup == nil {
		return nil
	}

	if err := t.warmup.Warmup(ctx); err != nil {
		return fmt.Errorf("failed to warm up text to speech: %w", err)
	}
	return nil
}

// synthesize forwards to the configured client. Callers must check
// isConfigured first.
func (t *textToSpeech) synthesize(ctx context.Context, text string) (texttospeech.AudioStream, error) {
	stream, err := t.client.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	return stream, nil
}

func (t *textToSpeech) close(ctx context.Context) error {
	if t == nil || t.client == nil {
		return nil
	}

	switch closer := t.client.(type) {
	case interface{ Close(context.Context) error }:
		return closer.Close(ctx)
	case interface{ Close(context.Context) }:
		closer.Close(ctx)
	case interface{ Close() error }:
		return closer.Close()
	case interface{ Close() }:
		closer.Close()
	}
	return nil
}
