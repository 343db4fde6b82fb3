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
	"unicode"

	"github.com/liravoice/lira-core/core/events"
	"github.com/liravoice/lira-core/core/llms"
	"github.com/liravoice/lira-core/core/texttospeech"
)

// trailingSilenceDuration pads the end of each spoken response so the
// last syllable is not clipped by output devices that stop abruptly.
const trailingSilenceDuration = 40 * time.Millisecond

// responseCycle runs one full response: streaming the model, splitting
// its output into speakable sentences, and voicing them as they become
// available. The producer and consumer run concurrently over the
// sentence queue so synthesis of early sentences overlaps generation of
// later ones.
//
// A cycle is single-use. Cancelling its context, through barge-in or
// shutdown, stops both workers; cancellation is not an error.
type responseCycle struct {
	llm      *llm
	tts      *textToSpeech
	audioOut *audioOutput

	messages         []llms.Message
	script           string
	segmentLanguages []string
	defaultLanguage  string

	splitter  *SentenceSplitter
	sentences *sentenceQueue

	bargeIn *BargeIn
	latency *turnLatency
	emit    eventEmitter

	// onSpeaking fires once per cycle, when the first audio becomes
	// audible.
	onSpeaking func()

	workerErrsMu sync.Mutex
	workerErrs   []error

	text  strings.Builder
	spoke atomic.Bool
}

// newResponseCycle prepares a model-driven cycle for the given
// conversation.
func newResponseCycle(p *Pipeline, messages []llms.Message, latency *turnLatency) *responseCycle {
	cycle := newScriptedCycle(p, "", latency)
	cycle.messages = messages
	return cycle
}

// newScriptedCycle prepares a cycle that voices fixed text instead of
// streaming the model.
func newScriptedCycle(p *Pipeline, script string, latency *turnLatency) *responseCycle {
	return &responseCycle{
		llm:              p.llm,
		tts:              p.tts,
		audioOut:         p.audioOut,
		script:           script,
		segmentLanguages: p.segmentLanguages,
		defaultLanguage:  p.tts.defaultLanguage(),
		splitter:         NewSentenceSplitter(),
		sentences:        newSentenceQueue(),
		bargeIn:          p.bargeIn,
		latency:          latency,
		emit:             p.emit,
		onSpeaking:       p.enterSpeaking,
	}
}

// Run drives both workers to completion and reports their joined
// errors. Worker panics are converted to errors so a misbehaving
// provider cannot wedge the pipeline.
func (c *responseCycle) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Release a consumer blocked on the queue when the cycle is
	// cancelled mid-generation.
	go func() {
		<-ctx.Done()
		c.sentences.Clear()
	}()

	var wg sync.WaitGroup

	run := func(name string, f func(context.Context) error) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.addWorkerErr(fmt.Errorf("%s worker panicked: %v", name, r))
				cancel()
			}
		}()

		if err := f(ctx); err != nil {
			c.addWorkerErr(err)
			cancel()
		}
	}

	wg.Add(2)
	go run("response", c.produce)
	go run("speech", c.consume)
	wg.Wait()

	c.workerErrsMu.Lock()
	defer c.workerErrsMu.Unlock()
	return errors.Join(c.workerErrs...)
}

// responseText returns the clean response produced so far. Only valid
// after Run returns; for interrupted cycles it holds the portion
// produced before the interruption.
func (c *responseCycle) responseText() string {
	return strings.TrimSpace(c.text.String())
}

// spokeAudio reports whether any audio of this cycle became audible.
func (c *responseCycle) spokeAudio() bool {
	return c.spoke.Load()
}

func (c *responseCycle) produce(ctx context.Context) error {
	defer c.sentences.Complete()

	if c.script != "" {
		c.text.WriteString(c.script)
		for _, sentence := range c.splitter.Push(c.script) {
			c.pushSentence(sentence)
		}
		if remainder := c.splitter.Flush(); remainder != "" {
			c.pushSentence(remainder)
		}
		return nil
	}

	if !c.llm.isConfigured() {
		return errors.New("no llm configured")
	}

	var opts []llms.ChatOption
	if len(c.segmentLanguages) > 0 {
		opts = append(opts, llms.WithSegmentedOutput(c.segmentLanguages...))
	}

	// Segments accumulate here until they form a complete utterance, so
	// partial segments from streaming providers are not voiced in
	// fragments.
	var segmentLanguage string
	var segmentText strings.Builder

	flushSegment := func() {
		text := strings.TrimSpace(segmentText.String())
		segmentText.Reset()
		if text == "" {
			return
		}

		if segmentLanguage != "" && segmentLanguage != c.defaultLanguage {
			text = texttospeech.WrapLanguage(segmentLanguage, text)
		}
		c.pushSentence(text)
	}

	stream := c.llm.stream(ctx, c.messages, opts...)
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			if c.cancelled(ctx) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to stream response: %w", err)
		}

		if c.cancelled(ctx) {
			return nil
		}

		switch typedChunk := chunk.(type) {
		case llms.StreamContentChunk:
			content := typedChunk.Content()
			if content == "" {
				continue
			}

			c.latency.markFirstToken()
			c.text.WriteString(content)
			for _, sentence := range c.splitter.Push(content) {
				c.pushSentence(sentence)
			}

		case llms.StreamSegmentChunk:
			segment := typedChunk.Segment()
			if segment.Text == "" {
				continue
			}

			c.latency.markFirstToken()
			if segment.Language != segmentLanguage && segmentText.Len() > 0 {
				flushSegment()
			}
			segmentLanguage = segment.Language

			if c.text.Len() > 0 {
				c.text.WriteString(" ")
			}
			c.text.WriteString(segment.Text)
			segmentText.WriteString(segment.Text)
			if endsWithSentenceTerminator(segmentText.String()) {
				flushSegment()
			}
		}
	}

	if c.cancelled(ctx) {
		return nil
	}

	flushSegment()
	if remainder := c.splitter.Flush(); remainder != "" {
		c.pushSentence(remainder)
	}
	return nil
}

func (c *responseCycle) consume(ctx context.Context) error {
	c.audioOut.beginResponse()
	defer c.audioOut.endResponse()

	for sentence := range c.sentences.Sentences {
		if c.cancelled(ctx) {
			return nil
		}

		if !c.tts.isConfigured() || !c.audioOut.isConfigured() {
			continue
		}

		if err := c.speak(ctx, sentence); err != nil {
			if c.cancelled(ctx) || errors.Is(err, context.Canceled) {
				return nil
			}

			// A failed sentence does not end the response; the next one
			// may synthesize fine.
			log.Printf("Failed to speak sentence: %v", err)
		}
	}

	if !c.cancelled(ctx) && c.spoke.Load() {
		c.audioOut.writeSilence(trailingSilenceDuration)
	}
	return nil
}

func (c *responseCycle) speak(ctx context.Context, sentence string) error {
	text := c.tts.cleanText(sentence)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	stream, err := c.tts.synthesize(ctx, text)
	if err != nil {
		return err
	}

	tapped := &firstAudioTap{
		stream: stream,
		onFirst: func() {
			if c.spoke.CompareAndSwap(false, true) {
				c.latency.markFirstAudio()
				if c.onSpeaking != nil {
					c.onSpeaking()
				}
			}
		},
	}
	return c.audioOut.writeStream(ctx, tapped)
}

// pushSentence queues a sentence for synthesis and announces it.
// Sentences with nothing speakable in them, like bare punctuation, are
// dropped.
func (c *responseCycle) pushSentence(sentence string) {
	sentence = strings.TrimSpace(sentence)
	if !hasSpeakableContent(sentence) {
		return
	}

	c.latency.markFirstSentence()
	c.sentences.Push(sentence)
	c.emit(events.NewSentence(sentence))
}

func (c *responseCycle) cancelled(ctx context.Context) bool {
	return c.bargeIn.Interrupted() || ctx.Err() != nil
}

func (c *responseCycle) addWorkerErr(err error) {
	c.workerErrsMu.Lock()
	defer c.workerErrsMu.Unlock()
	c.workerErrs = append(c.workerErrs, err)
}

// hasSpeakableContent reports whether the sentence contains anything a
// voice could say.
func hasSpeakableContent(sentence string) bool {
	for _, r := range sentence {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func endsWithSentenceTerminator(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}

	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

// firstAudioTap invokes onFirst before the first buffer of the wrapped
// stream is yielded downstream.
type firstAudioTap struct {
	stream  texttospeech.AudioStream
	onFirst func()
	fired   bool
}

func (t *firstAudioTap) Chunks(ctx context.Context) func(yield func([]byte, error) bool) {
	return func(yield func([]byte, error) bool) {
		for buffer, err := range t.stream.Chunks(ctx) {
			if err == nil && !t.fired {
				t.fired = true
				t.onFirst()
			}
			if !yield(buffer, err) {
				return
			}
		}
	}
}
