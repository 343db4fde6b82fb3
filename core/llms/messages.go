package llms

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the prompt sequence sent to a chat model.
type Message struct {
	Role    Role
	Content string
}

// Segment is a language-tagged span of generated text, produced when the
// model is asked to route parts of its response to different synthesis
// voices.
type Segment struct {
	// Language is a BCP 47 code such as "en" or "de".
	Language string
	Text     string
}

// ToolCall describes a tool invocation requested by the model. The pipeline
// does not execute tools; calls are surfaced so callers can observe them.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage reports token accounting for a completed response.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// QueueTime is the time the request spent queued, in seconds.
	//
	// Note: This might be just an approximation.
	QueueTime float64
	// TotalTime is the total server-side time, in seconds.
	//
	// Note: This might be just an approximation.
	TotalTime float64
}
