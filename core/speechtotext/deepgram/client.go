package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/liravoice/lira-core/core/audio"
	"github.com/liravoice/lira-core/core/speechtotext"
)

const (
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// Client opens live transcription sessions against Deepgram's listen
// API.
type Client struct {
	apiKey   string
	model    string
	language string
}

type ClientOption func(*Client)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{model: defaultModel, language: defaultLanguage}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

// OpenSession dials the listen websocket and starts delivering results
// through the session callbacks. The session stays open until Close or
// until the context is cancelled.
func (c *Client) OpenSession(ctx context.Context, opts ...speechtotext.SessionOption) (speechtotext.Session, error) {
	options := &speechtotext.SessionOptions{EncodingInfo: audio.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = c.model
	}
	if options.Language == "" {
		options.Language = c.language
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := connectWebsocket(c.apiKey, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		model:      options.Model,
		language:   options.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	session := newSession(conn, *options)
	go session.readAndProcessMessages(ctx, conn)

	return session, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	model      string
	language   string
}

func connectWebsocket(apiKey string, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}
