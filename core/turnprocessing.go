package pipeline

import (
	"log"
	"time"

	"github.com/liravoice/lira-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pendingUtterance is the single slot for turns that arrive while a
// response is in progress. Latest wins: a newer turn replaces an older
// one, and the replaced turn stays answered only through the
// conversation history.
type pendingUtterance struct {
	speaker string
	text    string
}

func (p *Pipeline) setPending(speaker string, text string) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.pending = &pendingUtterance{speaker: speaker, text: text}
}

func (p *Pipeline) takePending() (pendingUtterance, bool) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	if p.pending == nil {
		return pendingUtterance{}, false
	}
	pending := *p.pending
	p.pending = nil
	return pending, true
}

// processTurn claims the processing slot for a turn, or parks the turn
// as pending and interrupts the response in progress so the newer
// utterance gets answered promptly.
func (p *Pipeline) processTurn(speaker string, transcript string) {
	if p.closed.Load() {
		return
	}

	if !p.processing.CompareAndSwap(false, true) {
		p.setPending(speaker, transcript)
		p.bargeIn.Trigger()
		return
	}

	go p.runTurn(speaker, transcript)
}

// runTurn drives one full response cycle for an accepted turn. It owns
// the processing slot and releases it on every path, picking up the
// pending turn if one arrived meanwhile.
func (p *Pipeline) runTurn(speaker string, transcript string) {
	defer func() {
		p.processing.Store(false)
		p.bargeIn.Reset()
		if pending, ok := p.takePending(); ok {
			p.processTurn(pending.speaker, pending.text)
		}
	}()

	p.awaitWarmup(p.ctx)
	if p.ctx.Err() != nil {
		return
	}

	p.setState(StateThinking)

	ctx, span := tracer.Start(p.ctx, "respond to turn",
		trace.WithAttributes(attribute.String("speaker", speaker)))
	defer span.End()
	latency := newTurnLatency(span)

	if p.conversation.ShouldSummarize() && p.llm.isConfigured() {
		if err := p.conversation.Summarize(ctx, p.llm.client); err != nil {
			log.Printf("Failed to summarize conversation: %v", err)
		}
	}

	memoryContext := p.memory.search(ctx, transcript)
	messages := p.conversation.BuildMessages(memoryContext)

	cycleCtx := p.bargeIn.StartCycle(ctx)
	cycle := newResponseCycle(p, messages, latency)
	err := cycle.Run(cycleCtx)

	interrupted := p.bargeIn.Interrupted()
	span.SetAttributes(attribute.Bool("interrupted", interrupted))

	if err != nil && !interrupted && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.emit(events.NewPipelineError(err))
	}

	// Whatever was produced before an interruption was still said, or
	// at least generated, so it stays part of the conversation.
	if response := cycle.responseText(); response != "" {
		p.conversation.AddAgentTurn(response)
		p.memory.store(ctx, p.conversation.AgentName(), response, true)
		p.emit(events.NewResponse(response))
	}

	if cycle.spokeAudio() && !interrupted {
		// Hold until buffered audio has actually left the device, so
		// the agent does not listen to its own tail.
		select {
		case <-time.After(p.drainDelay):
		case <-cycleCtx.Done():
		}
	}

	p.setState(StateIdle)
}
