package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/liravoice/lira-core/core/audio"
	"github.com/liravoice/lira-core/core/speechtotext"
	"github.com/liravoice/lira-core/internal/utils"
)

// Session is one live transcription stream. Message processing runs on
// the websocket read goroutine, so transcript state needs no locking;
// only the connection itself is shared with writers.
type Session struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	options speechtotext.SessionOptions

	lastAudioTs   time.Time
	accumulated   string
	unendedSpeech bool
	speechStartTs time.Time
}

func newSession(conn *websocket.Conn, options speechtotext.SessionOptions) *Session {
	return &Session{conn: conn, options: options, lastAudioTs: time.Now()}
}

func (s *Session) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("session closed")
	}

	s.lastAudioTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Close asks Deepgram to finalize and close the stream. Pending results
// still arrive before the connection winds down.
func (s *Session) Close(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (s *Session) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("session closed")
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *Session) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		log.Printf("Failed to write keepalive to deepgram client: %v", err)
	}
}

func (s *Session) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastAudioTs)
}

func (s *Session) readAndProcessMessages(ctx context.Context, conn *websocket.Conn) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, s.options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Printf("Failed to read deepgram websocket message: %v", err)
				if s.options.ErrorCallback != nil {
					s.options.ErrorCallback(fmt.Errorf("transcription stream failed: %w", err))
				}
			}

			s.connMu.Lock()
			s.conn = nil
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg)
		}
	}
}

func (s *Session) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Printf("Failed to unmarshal deepgram message: %v", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			return
		}

		var transcript string
		var confidence float64
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			confidence = msgResp.Channel.Alternatives[0].Confidence
		}

		if msgResp.IsFinal {
			if transcript != "" {
				s.accumulated = strings.TrimSpace(s.accumulated + " " + transcript)
			}
			if msgResp.SpeechFinal {
				s.finishUtterance(confidence)
			}
			return
		}

		if transcript != "" {
			s.emitResult(speechtotext.Result{
				Text: strings.TrimSpace(s.accumulated + " " + transcript),
			})
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			return
		}

		if s.unendedSpeech {
			s.finishUtterance(0)
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			return
		}

		s.unendedSpeech = true
		if s.speechStartTs.IsZero() {
			s.speechStartTs = time.Now()
		}
		if s.options.SpeechStartedCallback != nil {
			s.options.SpeechStartedCallback()
		}
	}
}

// finishUtterance flushes the accumulated transcript as a final result.
// An utterance that produced no words still emits an empty final, so
// downstream turn handling can settle.
func (s *Session) finishUtterance(confidence float64) {
	s.unendedSpeech = false
	fullTranscript := strings.TrimSpace(s.accumulated)
	s.accumulated = ""

	var speechDuration time.Duration
	if !s.speechStartTs.IsZero() {
		speechDuration = time.Since(s.speechStartTs)
		s.speechStartTs = time.Time{}
	}

	s.emitResult(speechtotext.Result{
		Text:           fullTranscript,
		IsFinal:        true,
		Confidence:     confidence,
		Language:       s.options.Language,
		SpeechDuration: speechDuration,
	})

	if s.options.SpeechEndedCallback != nil {
		s.options.SpeechEndedCallback()
	}
}

func (s *Session) emitResult(result speechtotext.Result) {
	if s.options.ResultCallback != nil {
		s.options.ResultCallback(result)
	}
}

// generateSilence keeps the websocket alive through quiet stretches.
// Short gaps are padded with silent audio so endpointing still fires;
// after a second of silence the session downgrades to keepalive
// messages until real audio resumes.
func (s *Session) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const tickMs = 50
	ticker := time.NewTicker(tickMs * time.Millisecond)

	chunk := encoding.Silence(tickMs * time.Millisecond)

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if s.sinceLastAudio().Milliseconds() > tickMs {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if s.sinceLastAudio().Milliseconds() < tickMs {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime).Milliseconds() >= 1000 {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					log.Printf("Sending silence audio error: %v", err)
				}

			case silenceGeneratorStateKeepAlive:
				if s.sinceLastAudio().Milliseconds() < tickMs {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime).Seconds() >= 5 {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
