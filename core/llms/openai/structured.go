package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/liravoice/lira-core/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// segmentedResponse is the schema requested when the caller asks for
// language-tagged output.
type segmentedResponse struct {
	Segments []responseSegment `json:"segments"`
}

type responseSegment struct {
	Language string `json:"language" jsonschema:"description=BCP 47 code of the language this span is written in"`
	Text     string `json:"text" jsonschema:"description=Text of the span,minLength=1"`
}

func segmentResponseFormat(languages []string) *responseFormat {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(segmentedResponse{})
	constrainLanguages(schema, languages)

	return &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchema{
			Name:   "segmented_response",
			Schema: *schema,
			Strict: true,
		},
	}
}

// constrainLanguages narrows the reflected language property to the set the
// caller can actually synthesize.
func constrainLanguages(schema *jsonschema.Schema, languages []string) {
	segments, ok := schema.Properties.Get("segments")
	if !ok || segments.Items == nil {
		return
	}
	language, ok := segments.Items.Properties.Get("language")
	if !ok {
		return
	}
	for _, lang := range languages {
		language.Enum = append(language.Enum, lang)
	}
}

func parseSegments(content string) ([]llms.Segment, error) {
	content = strings.TrimSpace(content)
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(split[1]), "json"))
	}

	var response segmentedResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}

	segments := make([]llms.Segment, 0, len(response.Segments))
	for _, segment := range response.Segments {
		segments = append(segments, llms.Segment{
			Language: segment.Language,
			Text:     segment.Text,
		})
	}
	return segments, nil
}

// segmentChunks requests the whole response as structured output and yields
// it segment by segment. Structured responses are only valid as complete
// JSON, so unlike contentChunks this waits for the full body.
func (s *Stream) segmentChunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm structured")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", s.model),
			attribute.StringSlice("request.segment_languages", s.options.SegmentLanguages),
		)

		reqBody := requestBody{
			Model:          s.model,
			Messages:       s.messages,
			Temperature:    s.options.Temperature,
			MaxTokens:      s.options.MaxTokens,
			ResponseFormat: segmentResponseFormat(s.options.SegmentLanguages),
		}

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		requestStart := time.Now()
		span.AddEvent("request started")
		resp, err := client.Do(req)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		respBodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("error reading response body: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		var responseBody completionResponseBody
		if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
			err = fmt.Errorf("error unmarshalling response body: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		if len(responseBody.Choices) == 0 {
			err := errors.New("response contains no choices")
			span.RecordError(err)
			yield(nil, err)
			return
		}

		choice := responseBody.Choices[0]
		segments, err := parseSegments(choice.Message.Content)
		if err != nil {
			span.RecordError(err)
			yield(nil, err)
			return
		}

		span.SetAttributes(attribute.Int("response.segments", len(segments)))
		for _, segment := range segments {
			if !yield(StreamSegmentChunk{
				finishReason: choice.FinishReason,
				segment:      segment,
			}, nil) {
				return
			}
		}

		if responseBody.Usage != nil {
			usage := toUsage(responseBody.Usage)
			usage.TotalTime = time.Since(requestStart).Seconds()
			setUsageAttributes(span, usage)

			if !yield(StreamUsageChunk{usage: usage}, nil) {
				return
			}
		}
	}
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	// Name further identifies the schema in the response.
	Name string `json:"name"`
	// Description is surfaced to the model alongside the schema.
	Description string `json:"description,omitempty"`
	// Schema is the json schema the generated content must conform to.
	Schema jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}

type completionResponseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *completionUsage `json:"usage"`
}
