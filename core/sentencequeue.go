package pipeline

import "sync"

// TODO: Reuse consumed slots instead of growing the slice for the whole
// cycle; a ring buffer would do.

// sentenceQueue hands speakable sentences from the producer to the consumer
// within one response cycle. The consumer blocks on the wake signal instead
// of polling; the producer signals after every push, on completion, and on
// clear.
type sentenceQueue struct {
	mu           sync.Mutex
	sentences    []string
	consumed     int
	producerDone bool
	cleared      bool
	wakeSignal   chan struct{}
}

func newSentenceQueue() *sentenceQueue {
	return &sentenceQueue{
		wakeSignal: make(chan struct{}, 1),
	}
}

func (q *sentenceQueue) Push(sentence string) {
	q.mu.Lock()
	q.sentences = append(q.sentences, sentence)
	q.mu.Unlock()
	q.wake()
}

// Complete marks the producer as finished; Sentences returns once the
// remaining sentences are consumed.
func (q *sentenceQueue) Complete() {
	q.mu.Lock()
	q.producerDone = true
	q.mu.Unlock()
	q.wake()
}

// Clear drops everything not yet consumed and releases a blocked consumer.
// The queue stays cleared for the rest of its cycle.
func (q *sentenceQueue) Clear() {
	q.mu.Lock()
	q.cleared = true
	q.mu.Unlock()
	q.wake()
}

// Sentences yields queued sentences in FIFO order, blocking while the queue
// is empty and the producer is still running.
func (q *sentenceQueue) Sentences(yield func(string) bool) {
	for {
		q.mu.Lock()
		if q.cleared {
			q.mu.Unlock()
			return
		}

		if q.consumed < len(q.sentences) {
			sentence := q.sentences[q.consumed]
			q.consumed++
			q.mu.Unlock()
			if !yield(sentence) {
				return
			}
			continue
		}

		if q.producerDone {
			q.mu.Unlock()
			return
		}

		q.mu.Unlock()
		<-q.wakeSignal
	}
}

func (q *sentenceQueue) wake() {
	select {
	case q.wakeSignal <- struct{}{}:
	default:
	}
}
