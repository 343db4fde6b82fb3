package elevenlabs

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/liravoice/lira-core/core/audio"
)

const (
	// defaultVoiceID is Rachel, a general purpose English voice.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	// defaultModelID is the low latency model, the sensible choice for
	// realtime conversation.
	defaultModelID = "eleven_flash_v2_5"
)

// Client synthesizes speech through ElevenLabs' stream-input API, one
// websocket per sentence.
type Client struct {
	apiKey       string
	voiceID      string
	modelID      string
	language     string
	encodingInfo audio.EncodingInfo
}

type ClientOption func(*Client)

// WithAPIKey overrides the ELEVENLABS_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithVoiceID(voiceID string) ClientOption {
	return func(c *Client) { c.voiceID = voiceID }
}

func WithModelID(modelID string) ClientOption {
	return func(c *Client) { c.modelID = modelID }
}

// WithLanguage declares the language of the configured voice, as a BCP
// 47 tag.
func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

// WithEncodingInfo sets the encoding synthesized audio is requested in.
// Only PCM and mulaw encodings are supported by the stream-input API.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		if encodingInfo.IsZero() {
			return
		}
		c.encodingInfo = encodingInfo
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		voiceID:      defaultVoiceID,
		modelID:      defaultModelID,
		language:     "en",
		encodingInfo: audio.DefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if _, err := client.outputFormat(); err != nil {
		return nil, err
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("ELEVENLABS_API_KEY")
		if !ok {
			return nil, fmt.Errorf("elevenlabs api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

// EncodingInfo reports the encoding synthesized audio arrives in.
func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

// DefaultLanguage reports the language of the configured voice.
func (c *Client) DefaultLanguage() string {
	return c.language
}

// outputFormat maps the configured encoding onto the API's format
// names.
func (c *Client) outputFormat() (string, error) {
	switch c.encodingInfo.Format {
	case audio.FormatLinear16:
		switch c.encodingInfo.SampleRate {
		case 16000, 22050, 24000, 44100:
			return fmt.Sprintf("pcm_%d", c.encodingInfo.SampleRate), nil
		default:
			return "", fmt.Errorf("unsupported sample rate for pcm encoding")
		}
	case audio.FormatMulaw:
		if c.encodingInfo.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate for mulaw encoding")
		}
		return "ulaw_8000", nil
	default:
		return "", fmt.Errorf("unsupported encoding")
	}
}

func (c *Client) streamInputURL() string {
	format, _ := c.outputFormat()
	query := url.Values{}
	query.Set("model_id", c.modelID)
	query.Set("output_format", format)

	return (&url.URL{
		Scheme:   "wss",
		Host:     "api.elevenlabs.io",
		Path:     "/v1/text-to-speech/" + c.voiceID + "/stream-input",
		RawQuery: query.Encode(),
	}).String()
}

func (c *Client) header() http.Header {
	return http.Header{"xi-api-key": {c.apiKey}}
}
