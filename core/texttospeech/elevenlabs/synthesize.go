package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
	"github.com/liravoice/lira-core/core/texttospeech"
)

// Synthesize opens a stream-input websocket, sends the whole sentence,
// and returns a stream of the audio frames the API generates. The
// connection lives until the stream is consumed or the context is
// cancelled.
func (c *Client) Synthesize(ctx context.Context, text string) (texttospeech.AudioStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamInputURL(), c.header())
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to elevenlabs: %w", err)
	}

	if err := conn.WriteJSON(struct {
		Text                 string `json:"text"`
		TryTriggerGeneration bool   `json:"try_trigger_generation"`
	}{Text: text, TryTriggerGeneration: true}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send text to elevenlabs: %w", err)
	}

	// An empty text message marks the end of input; the API flushes and
	// closes once generation finishes.
	if err := conn.WriteJSON(struct {
		Text string `json:"text"`
	}{Text: ""}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to finish elevenlabs input: %w", err)
	}

	return &synthesisStream{conn: conn}, nil
}

// Warmup establishes a connection once and discards it, so the first
// sentence does not pay for the TLS handshake.
func (c *Client) Warmup(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamInputURL(), c.header())
	if err != nil {
		return fmt.Errorf("failed to warm up elevenlabs connection: %w", err)
	}

	_ = conn.WriteJSON(struct {
		Text string `json:"text"`
	}{Text: ""})
	return conn.Close()
}

type synthesisStream struct {
	conn *websocket.Conn
}

func (s *synthesisStream) Chunks(ctx context.Context) func(yield func([]byte, error) bool) {
	return func(yield func([]byte, error) bool) {
		defer s.conn.Close()

		// Unblock the read below when the caller abandons the stream.
		consumed := make(chan struct{})
		defer close(consumed)
		go func() {
			select {
			case <-ctx.Done():
				s.conn.Close()
			case <-consumed:
			}
		}()

		for {
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				yield(nil, fmt.Errorf("failed to read synthesis stream: %w", err))
				return
			}

			var response struct {
				Audio   string `json:"audio"`
				IsFinal bool   `json:"isFinal"`
			}
			if err := json.Unmarshal(message, &response); err != nil {
				log.Printf("Failed to unmarshal elevenlabs message: %v", err)
				continue
			}

			if response.Audio != "" {
				decoded, err := base64.StdEncoding.DecodeString(response.Audio)
				if err != nil {
					yield(nil, fmt.Errorf("failed to decode audio chunk: %w", err))
					return
				}
				if !yield(decoded, nil) {
					return
				}
			}

			if response.IsFinal {
				return
			}
		}
	}
}
