// Package openai streams chat completions from the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/liravoice/lira-core/core/llms"
	"github.com/liravoice/lira-core/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const defaultModel = "gpt-4o-mini"

type Client struct {
	apiKey string
	model  string
}

type ClientOption func(*Client)

// WithAPIKey overrides the key otherwise taken from the OPENAI_API_KEY
// environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := Client{model: defaultModel}
	for _, opt := range opts {
		opt(&client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
		if !ok {
			return nil, errors.New("openai api key not found")
		}
		client.apiKey = apiKey
	}

	return &client, nil
}

// ChatStream prepares a streamed completion for the passed messages. The
// request is not sent until the returned stream is iterated.
func (c *Client) ChatStream(ctx context.Context, messages []llms.Message, opts ...llms.ChatOption) llms.Stream {
	options := llms.ChatOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Stream{
		apiKey:   c.apiKey,
		model:    c.model,
		messages: toMessages(messages),
		options:  options,
	}
}

// Warmup sends a single-token completion carrying the system prompt so the
// connection is established and the prompt cache is primed before the first
// real turn.
func (c *Client) Warmup(ctx context.Context, systemPrompt string) error {
	ctx, span := tracer.Start(ctx, "warm up llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	messages := []message{}
	if systemPrompt != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, message{Role: messageRoleUser, Content: "ok"})

	reqBody := requestBody{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: utils.Ptr(1),
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return err
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
