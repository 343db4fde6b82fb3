package pipeline

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	// minChunkLength is the shortest chunk handed to synthesis; shorter
	// cuts sound clipped.
	minChunkLength = 20
	// maxChunkLength is the length past which the splitter stops waiting
	// for a sentence boundary and cuts mid-sentence.
	maxChunkLength = 150
)

const clauseSeparators = ",;:—"

// SentenceSplitter buffers streamed text fragments and cuts them into
// speakable chunks, trading time-to-first-audio against prosody. Safe for
// concurrent use.
type SentenceSplitter struct {
	mu     sync.Mutex
	buffer string
}

func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

// Push appends fragment to the buffer and returns the chunks that became
// speakable, in order. Trailing unterminated text stays buffered and is
// only released by Flush.
func (s *SentenceSplitter) Push(fragment string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer += fragment
	var chunks []string
	for {
		chunk, rest, ok := cutChunk(s.buffer)
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
		s.buffer = rest
	}
	return chunks
}

// Flush returns whatever remains buffered, whitespace-trimmed, and clears
// the buffer. Returns "" when nothing speakable remains.
func (s *SentenceSplitter) Flush() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	remainder := strings.TrimSpace(s.buffer)
	s.buffer = ""
	return remainder
}

// Reset discards all buffered text.
func (s *SentenceSplitter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = ""
}

// cutChunk applies the first matching boundary rule to buffer and cuts one
// chunk off the front. The chunk keeps its trailing boundary character so
// that the emitted chunks reassemble into the pushed text.
func cutChunk(buffer string) (chunk, rest string, ok bool) {
	// A terminator only counts once whitespace follows it; a terminator at
	// the end of the buffer may still turn out to be "3.14" or "Dr.".
	for i := 0; i < len(buffer)-1; i++ {
		switch buffer[i] {
		case '.', '!', '?':
		default:
			continue
		}
		next, _ := utf8.DecodeRuneInString(buffer[i+1:])
		if !unicode.IsSpace(next) {
			continue
		}
		if i+1 < minChunkLength {
			continue
		}
		return buffer[:i+1], buffer[i+1:], true
	}

	if len(buffer) < maxChunkLength {
		return "", buffer, false
	}

	// Past the length cap, fall back to a clause boundary, then to any word
	// boundary within the cap.
	for i, r := range buffer {
		if i < minChunkLength || !strings.ContainsRune(clauseSeparators, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		return buffer[:end], buffer[end:], true
	}

	lastSpaceEnd := -1
	for i, r := range buffer {
		if i > maxChunkLength {
			break
		}
		if i >= minChunkLength && unicode.IsSpace(r) {
			lastSpaceEnd = i + utf8.RuneLen(r)
		}
	}
	if lastSpaceEnd != -1 {
		return buffer[:lastSpaceEnd], buffer[lastSpaceEnd:], true
	}

	return "", buffer, false
}
