package deepgram

import (
	"fmt"
	"net/http"
	"os"
	"slices"

	"github.com/liravoice/lira-core/core/audio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Voice string

const (
	VoiceThalia  Voice = "aura-2-thalia-en"
	VoiceAsteria Voice = "aura-2-asteria-en"
	VoiceLuna    Voice = "aura-2-luna-en"
	VoiceAthena  Voice = "aura-2-athena-en"
	VoiceOrion   Voice = "aura-2-orion-en"
	VoiceArcas   Voice = "aura-2-arcas-en"
	VoiceHelios  Voice = "aura-2-helios-en"
)

const defaultVoice = VoiceThalia

func AvailableVoices() []Voice {
	return []Voice{
		VoiceThalia,
		VoiceAsteria,
		VoiceLuna,
		VoiceAthena,
		VoiceOrion,
		VoiceArcas,
		VoiceHelios,
	}
}

// Client synthesizes speech through Deepgram's speak API, one sentence
// per request, streaming raw audio back.
type Client struct {
	apiKey       string
	voice        Voice
	encodingInfo audio.EncodingInfo

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithVoice(voice Voice) ClientOption {
	return func(c *Client) { c.voice = voice }
}

// WithEncodingInfo sets the encoding synthesized audio is requested in.
// It should match what the playback device expects.
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
		voice:        defaultVoice,
		encodingInfo: audio.DefaultEncodingInfo(),
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(AvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice")
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

func (c *Client) SetVoice(voice Voice) error {
	if !slices.Contains(AvailableVoices(), voice) {
		return fmt.Errorf("invalid voice")
	}

	c.voice = voice
	return nil
}

// EncodingInfo reports the encoding synthesized audio arrives in.
func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

// DefaultLanguage reports the language of the configured voice. Aura
// voices are English.
func (c *Client) DefaultLanguage() string {
	return "en"
}
