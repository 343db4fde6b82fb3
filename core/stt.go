package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/liravoice/lira-core/core/speechtotext"
)

// transcriptionSessions tracks one live transcription session per
// participant identity. The factory is the configured SpeechToText
// client; sessions are opened as participants join and closed as they
// leave.
type transcriptionSessions struct {
	mu      sync.Mutex
	factory SpeechToText
	open    map[string]speechtotext.Session
}

func newTranscriptionSessions() *transcriptionSessions {
	return &transcriptionSessions{open: map[string]speechtotext.Session{}}
}

func (s *transcriptionSessions) set(factory SpeechToText) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory = factory
}

func (s *transcriptionSessions) isConfigured() bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factory != nil
}

// openFor opens a session for the identity, replacing and closing any
// session the identity already had. The options should carry callbacks
// already bound to the identity. Without a configured client this is a
// no-op, which leaves the pipeline in text-only operation.
func (s *transcriptionSessions) openFor(ctx context.Context, identity string, opts ...speechtotext.SessionOption) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	factory := s.factory
	s.mu.Unlock()
	if factory == nil {
		return nil
	}

	session, err := factory.OpenSession(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to open transcription session for %q: %w", identity, err)
	}

	s.mu.Lock()
	previous := s.open[identity]
	s.open[identity] = session
	s.mu.Unlock()

	if previous != nil {
		closeTranscriptionSession(context.WithoutCancel(ctx), previous)
	}
	return nil
}

// sendAudio forwards a frame to the identity's session. Frames for
// unknown identities are dropped.
func (s *transcriptionSessions) sendAudio(identity string, audio []byte) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	session := s.open[identity]
	s.mu.Unlock()
	if session == nil {
		return nil
	}

	if err := session.SendAudio(audio); err != nil {
		return fmt.Errorf("failed to forward audio for %q: %w", identity, err)
	}
	return nil
}

func (s *transcriptionSessions) closeFor(ctx context.Context, identity string) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	session := s.open[identity]
	delete(s.open, identity)
	s.mu.Unlock()
	if session == nil {
		return nil
	}

	return closeTranscriptionSession(ctx, session)
}

func (s *transcriptionSessions) closeAll(ctx context.Context) {
	if s == nil {
		return
	}

	s.mu.Lock()
	sessions := s.open
	s.open = map[string]speechtotext.Session{}
	s.mu.Unlock()

	for _, session := range sessions {
		closeTranscriptionSession(ctx, session)
	}
}

// closeTranscriptionSession shuts a session down through whichever close
// signature the client provides. Sessions without one are left to the
// garbage collector.
func closeTranscriptionSession(ctx context.Context, session speechtotext.Session) error {
	switch closer := session.(type) {
	case interface{ Close(context.Context) error }:
		return closer.Close(ctx)
	case interface{ Close(context.Context) }:
		closer.Close(ctx)
	case interface{ Close() error }:
		return closer.Close()
	case interface{ Close() }:
		closer.Close()
	}
	return nil
}
