package texttospeech

import "context"

// AudioStream is a lazy sequence of raw audio buffers for a single
// synthesized utterance. Chunks returns an iterator that yields buffers
// as the vendor produces them; iteration ends when the utterance is
// fully synthesized or the context is cancelled.
type AudioStream interface {
	Chunks(ctx context.Context) func(yield func([]byte, error) bool)
}

// BufferedStream is an AudioStream over buffers that are already in
// memory. It is mostly useful for tests and for clients that cannot
// stream.
type BufferedStream struct {
	Buffers [][]byte
}

func (s BufferedStream) Chunks(ctx context.Context) func(yield func([]byte, error) bool) {
	return func(yield func([]byte, error) bool) {
		for _, buffer := range s.Buffers {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(buffer, nil) {
				return
			}
		}
	}
}
