package pipeline

import (
	"strings"

	"github.com/liravoice/lira-core/core/events"
	"github.com/liravoice/lira-core/core/speechtotext"
)

// handleTranscription is the single entry point for transcription
// results, from live sessions and from SubmitUtterance alike. It runs
// on the session's callback goroutine and must not block, so response
// work is handed off to its own goroutine.
func (p *Pipeline) handleTranscription(speaker string, result speechtotext.Result) {
	if p == nil || p.closed.Load() {
		return
	}

	text := strings.TrimSpace(result.Text)

	if result.IsFinal {
		p.emit(events.NewFinalTranscription(speaker, text, result.Confidence, result.Language, result.SpeechDuration))
	} else {
		p.emit(events.NewInterimTranscription(speaker, text))
	}

	// Live speech over agent playback is an interruption, interim or
	// not.
	if text != "" && p.audioOut.isPlaying() {
		p.bargeIn.Trigger()
	}

	if !result.IsFinal {
		if text != "" {
			p.markListening()
			p.turnDetector.OnInterimTranscript(text)
		}
		return
	}

	if text == "" {
		// The utterance dissolved into nothing, so there is no turn to
		// answer.
		if p.State() == StateListening {
			p.setState(StateIdle)
		}
		return
	}

	p.turnDetector.OnFinalTranscript()
	p.conversation.AddUserTurn(speaker, text)
	p.memory.store(p.ctx, speaker, text, false)

	if !p.shouldRespond(speaker, text) {
		if p.State() == StateListening {
			p.setState(StateIdle)
		}
		return
	}

	p.processTurn(speaker, text)
}

// shouldRespond decides whether a final transcription deserves a
// response. The respond mode runs first, then the caller's gate.
func (p *Pipeline) shouldRespond(speaker string, transcript string) bool {
	if p.respondMode == RespondAddressed && !p.isAddressed(transcript) {
		return false
	}

	if p.responseGate != nil && !p.responseGate(speaker, transcript) {
		return false
	}
	return true
}

// isAddressed reports whether the transcript mentions the agent's name
// or one of its variants. Matching is a case-insensitive substring
// check, which tolerates the punctuation and casing drift of live
// transcription.
func (p *Pipeline) isAddressed(transcript string) bool {
	lowered := strings.ToLower(transcript)

	if p.agentName != "" && strings.Contains(lowered, strings.ToLower(p.agentName)) {
		return true
	}
	for _, variant := range p.nameVariants {
		if variant != "" && strings.Contains(lowered, strings.ToLower(variant)) {
			return true
		}
	}
	return false
}
