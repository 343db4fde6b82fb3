package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/liravoice/lira-core/core/texttospeech"
)

const speakURL = "https://api.deepgram.com/v1/speak"

// Synthesize issues one speak request and streams the raw audio back as
// it arrives. The response body stays open until the returned stream is
// consumed or the context is cancelled.
func (c *Client) Synthesize(ctx context.Context, text string) (texttospeech.AudioStream, error) {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		speakURL+"?"+c.speakQuery().Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build speak request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach deepgram: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("deepgram speak request failed: %s: %s", resp.Status, errBody)
	}

	return &audioStream{body: resp.Body}, nil
}

// Warmup establishes the TLS session so the first sentence does not pay
// for the handshake.
func (c *Client) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, speakURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build warmup request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to warm up deepgram connection: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) speakQuery() url.Values {
	query := url.Values{}
	query.Set("model", string(c.voice))
	query.Set("encoding", c.encodingInfo.Format.Name())
	query.Set("sample_rate", strconv.Itoa(c.encodingInfo.SampleRate))
	query.Set("container", "none")
	return query
}

// audioStream adapts a streaming response body to the AudioStream
// contract.
type audioStream struct {
	body io.ReadCloser
}

func (s *audioStream) Chunks(ctx context.Context) func(yield func([]byte, error) bool) {
	return func(yield func([]byte, error) bool) {
		defer s.body.Close()

		buffer := make([]byte, 4096)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			n, err := s.body.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				if !yield(chunk, nil) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(nil, fmt.Errorf("failed to read audio stream: %w", err))
				return
			}
		}
	}
}
