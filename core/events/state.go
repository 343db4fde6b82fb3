package events

const (
	// KindAgentStateChanged identifies an agent state machine transition.
	KindAgentStateChanged Kind = "pipeline.state"
	// KindPipelineError identifies an unexpected, non-fatal pipeline
	// failure.
	KindPipelineError Kind = "pipeline.error"
)

// AgentStateChanged marks a transition of the agent-visible state machine
// (idle, listening, thinking, speaking). Emitted on transitions only.
type AgentStateChanged struct {
	Base
	State string
}

// NewAgentStateChanged creates an agent state transition event.
func NewAgentStateChanged(state string) AgentStateChanged {
	return AgentStateChanged{Base: NewBase(KindAgentStateChanged), State: state}
}

// PipelineError carries an unexpected failure surfaced to the caller. The
// pipeline keeps running; cancellations are never reported this way.
type PipelineError struct {
	Base
	Err error
}

// NewPipelineError creates a pipeline error event.
func NewPipelineError(err error) PipelineError {
	return PipelineError{Base: NewBase(KindPipelineError), Err: err}
}
