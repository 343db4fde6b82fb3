package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/liravoice/lira-core/core/speechtotext"
)

func TestOpenForReplacesTheExistingSession(t *testing.T) {
	factory := &sessionFactoryStub{}
	sessions := newTranscriptionSessions()
	sessions.set(factory)

	if err := sessions.openFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected the first open to succeed, got %v", err)
	}
	first := factory.opened[0]

	if err := sessions.openFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected the reopen to succeed, got %v", err)
	}

	if got := len(factory.opened); got != 2 {
		t.Fatalf("expected two sessions opened, got %d", got)
	}
	if first.closeCount != 1 {
		t.Fatalf("expected the replaced session closed once, got %d", first.closeCount)
	}
	if factory.opened[1].closeCount != 0 {
		t.Fatalf("expected the live session left open, got %d closes", factory.opened[1].closeCount)
	}
}

func TestSendAudioReachesOnlyTheIdentitySession(t *testing.T) {
	factory := &sessionFactoryStub{}
	sessions := newTranscriptionSessions()
	sessions.set(factory)

	if err := sessions.openFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}

	if err := sessions.sendAudio("luka", []byte{0x01, 0x02}); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if err := sessions.sendAudio("ghost", []byte{0x03}); err != nil {
		t.Fatalf("expected frames for unknown identities dropped without error, got %v", err)
	}

	if got := factory.opened[0].frames; got != 1 {
		t.Fatalf("expected one frame forwarded to the session, got %d", got)
	}
}

func TestCloseAllClosesEverySession(t *testing.T) {
	factory := &sessionFactoryStub{}
	sessions := newTranscriptionSessions()
	sessions.set(factory)

	for _, identity := range []string{"luka", "ema"} {
		if err := sessions.openFor(context.Background(), identity); err != nil {
			t.Fatalf("expected open for %q to succeed, got %v", identity, err)
		}
	}

	sessions.closeAll(context.Background())

	for _, session := range factory.opened {
		if session.closeCount != 1 {
			t.Fatalf("expected every session closed once, got %d", session.closeCount)
		}
	}

	if err := sessions.sendAudio("luka", []byte{0x01}); err != nil {
		t.Fatalf("expected sends after close to be dropped, got %v", err)
	}
	if got := factory.opened[0].frames; got != 0 {
		t.Fatalf("expected no frames after close, got %d", got)
	}
}

func TestCloseForClosesOneIdentity(t *testing.T) {
	factory := &sessionFactoryStub{}
	sessions := newTranscriptionSessions()
	sessions.set(factory)

	if err := sessions.openFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}
	if err := sessions.openFor(context.Background(), "ema"); err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}

	if err := sessions.closeFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	if got := factory.opened[0].closeCount; got != 1 {
		t.Fatalf("expected the closed identity's session closed, got %d", got)
	}
	if got := factory.opened[1].closeCount; got != 0 {
		t.Fatalf("expected the other identity's session untouched, got %d closes", got)
	}
}

func TestWithoutClientSessionsAreTextOnly(t *testing.T) {
	sessions := newTranscriptionSessions()

	if sessions.isConfigured() {
		t.Fatalf("expected sessions without a client to be unconfigured")
	}
	if err := sessions.openFor(context.Background(), "luka"); err != nil {
		t.Fatalf("expected open without a client to be a no-op, got %v", err)
	}
	if err := sessions.sendAudio("luka", []byte{0x01}); err != nil {
		t.Fatalf("expected send without a client to be a no-op, got %v", err)
	}
}

func TestOpenForWrapsFactoryFailures(t *testing.T) {
	factory := &sessionFactoryStub{err: errors.New("no capacity")}
	sessions := newTranscriptionSessions()
	sessions.set(factory)

	err := sessions.openFor(context.Background(), "luka")
	if err == nil {
		t.Fatalf("expected the factory failure surfaced")
	}
	if !errors.Is(err, factory.err) {
		t.Fatalf("expected the cause preserved, got %v", err)
	}
}

type sessionFactoryStub struct {
	err    error
	opened []*transcriptionSessionStub
}

func (factory *sessionFactoryStub) OpenSession(_ context.Context, _ ...speechtotext.SessionOption) (speechtotext.Session, error) {
	if factory.err != nil {
		return nil, factory.err
	}

	session := &transcriptionSessionStub{}
	factory.opened = append(factory.opened, session)
	return session, nil
}

type transcriptionSessionStub struct {
	frames     int
	closeCount int
}

func (session *transcriptionSessionStub) SendAudio([]byte) error {
	session.frames++
	return nil
}

func (session *transcriptionSessionStub) Close() {
	session.closeCount++
}
