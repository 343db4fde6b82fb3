package llms

import "context"

// Stream is a lazy chat response. Chunks performs the request on first
// iteration and yields chunks until the response finishes, an error occurs,
// or the context is cancelled.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

// StreamChunk is the base capability of every streamed chunk. Concrete
// chunks additionally implement one of StreamContentChunk,
// StreamSegmentChunk, StreamToolCallChunk or StreamUsageChunk.
type StreamChunk interface {
	FinishReason() *string
}

// StreamContentChunk carries an incremental piece of plain response text.
type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamSegmentChunk carries one language-tagged segment of a structured
// response. Segments arrive in speaking order.
type StreamSegmentChunk interface {
	StreamChunk
	Segment() Segment
}

type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() ToolCall
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}
