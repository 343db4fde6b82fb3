package pipeline

import (
	"strings"
	"testing"
)

func TestPushCutsAtSentenceBoundary(t *testing.T) {
	splitter := NewSentenceSplitter()

	chunks := splitter.Push("Hello there my friend. How are you today?")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "Hello there my friend." {
		t.Fatalf("expected cut at the sentence boundary, got %q", chunks[0])
	}

	if remainder := splitter.Flush(); remainder != "How are you today?" {
		t.Fatalf("expected the unterminated tail to stay buffered, got %q", remainder)
	}
}

func TestPushHoldsSentencesBelowMinimumLength(t *testing.T) {
	splitter := NewSentenceSplitter()

	chunks := splitter.Push("Hi. How are you doing today. Good.")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "Hi. How are you doing today." {
		t.Fatalf("expected the short opener to ride along with the next sentence, got %q", chunks[0])
	}
}

func TestPushDoesNotCutInsideNumbers(t *testing.T) {
	splitter := NewSentenceSplitter()

	chunks := splitter.Push("Pi is about 3.14159, and that is fine. Right.")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "Pi is about 3.14159, and that is fine." {
		t.Fatalf("expected the decimal point to be kept, got %q", chunks[0])
	}
}

func TestPushAccumulatesFragmentsUntilSpeakable(t *testing.T) {
	splitter := NewSentenceSplitter()

	if chunks := splitter.Push("Streaming models emit"); len(chunks) != 0 {
		t.Fatalf("expected nothing speakable yet, got %q", chunks)
	}
	if chunks := splitter.Push(" text in small pieces"); len(chunks) != 0 {
		t.Fatalf("expected nothing speakable yet, got %q", chunks)
	}

	chunks := splitter.Push(". And then it continues")
	if len(chunks) != 1 || chunks[0] != "Streaming models emit text in small pieces." {
		t.Fatalf("expected the buffered sentence once terminated, got %q", chunks)
	}
}

func TestLongTextCutsAtClauseBoundary(t *testing.T) {
	splitter := NewSentenceSplitter()
	text := strings.Repeat("a", 25) + ", " + strings.Repeat("b", 140)

	chunks := splitter.Push(text)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 25)+"," {
		t.Fatalf("expected cut at the clause separator, got %q", chunks[0])
	}
}

func TestLongTextWithoutSeparatorsCutsAtWordBoundary(t *testing.T) {
	splitter := NewSentenceSplitter()
	text := strings.Repeat("aaaa ", 40)

	chunks := splitter.Push(text)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk from over-long text")
	}
	if chunks[0] != strings.Repeat("aaaa ", 30) {
		t.Fatalf("expected cut at the last word boundary within the cap, got %q (len %d)", chunks[0], len(chunks[0]))
	}
}

func TestChunksReassembleIntoPushedText(t *testing.T) {
	splitter := NewSentenceSplitter()
	text := "The agent speaks in sentences. Each one is cut as soon as it is complete! " +
		"Long run-on passages, the kind that never seem to end because the model keeps " +
		"adding clause after clause, get cut at clause boundaries instead. Short tails remain."

	var got strings.Builder
	for start := 0; start < len(text); start += 7 {
		end := min(start+7, len(text))
		for _, chunk := range splitter.Push(text[start:end]) {
			got.WriteString(chunk)
		}
	}
	got.WriteString(" " + splitter.Flush())

	normalize := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	if normalize(got.String()) != normalize(text) {
		t.Fatalf("expected chunks to reassemble into the pushed text, got %q", got.String())
	}
}

func TestFlushClearsTheBuffer(t *testing.T) {
	splitter := NewSentenceSplitter()
	splitter.Push("partial sentence without an end")

	if remainder := splitter.Flush(); remainder != "partial sentence without an end" {
		t.Fatalf("expected flush to return the remainder, got %q", remainder)
	}
	if remainder := splitter.Flush(); remainder != "" {
		t.Fatalf("expected nothing after a flush, got %q", remainder)
	}
}

func TestResetDiscardsBufferedText(t *testing.T) {
	splitter := NewSentenceSplitter()
	splitter.Push("this never gets spoken")
	splitter.Reset()

	if remainder := splitter.Flush(); remainder != "" {
		t.Fatalf("expected reset to discard the buffer, got %q", remainder)
	}
}
