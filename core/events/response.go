package events

const (
	// KindSentence identifies one speakable sentence completed and handed
	// to playback.
	KindSentence Kind = "assistant_response.sentence"
	// KindResponse identifies the full response text for a completed turn.
	KindResponse Kind = "assistant_response.final"
)

// Sentence carries one completed speakable sentence, markup stripped.
type Sentence struct {
	Base
	Text string
}

// NewSentence creates a sentence event.
func NewSentence(text string) Sentence {
	return Sentence{Base: NewBase(KindSentence), Text: text}
}

// Response carries the full assembled response text for a completed turn,
// markup stripped. Cancelled turns never produce one.
type Response struct {
	Base
	Text string
}

// NewResponse creates a response event.
func NewResponse(text string) Response {
	return Response{Base: NewBase(KindResponse), Text: text}
}
