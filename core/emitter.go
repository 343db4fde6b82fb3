package pipeline

import "github.com/liravoice/lira-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newCallbackEventEmitter adapts the typed start callbacks into a single
// emitter. The generic event handler, when registered, sees every event
// after its typed callback has run.
func newCallbackEventEmitter(opts StartOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.Transcription:
			if opts.transcriptionCallback != nil {
				opts.transcriptionCallback(typedEvent.Speaker, typedEvent.Text, typedEvent.IsFinal)
			}
		case events.Sentence:
			if opts.sentenceCallback != nil {
				opts.sentenceCallback(typedEvent.Text)
			}
		case events.Response:
			if opts.responseCallback != nil {
				opts.responseCallback(typedEvent.Text)
			}
		case events.AgentStateChanged:
			if opts.stateChangedCallback != nil {
				opts.stateChangedCallback(AgentState(typedEvent.State))
			}
		case events.PipelineError:
			if opts.errorCallback != nil {
				opts.errorCallback(typedEvent.Err)
			}
		}

		if opts.eventHandler != nil {
			opts.eventHandler(event)
		}
	}
}
