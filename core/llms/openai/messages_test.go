package openai

import (
	"context"
	"testing"

	"github.com/liravoice/lira-core/core/llms"
)

func TestToMessagesMapsRoles(t *testing.T) {
	messages := toMessages([]llms.Message{
		{Role: llms.RoleSystem, Content: "You are a concise assistant."},
		{Role: llms.RoleUser, Content: "hello"},
		{Role: llms.RoleAssistant, Content: "hi, how can I help?"},
	})

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	if messages[0].Role != messageRoleSystem || messages[0].Content != "You are a concise assistant." {
		t.Fatalf("unexpected system message: %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser || messages[1].Content != "hello" {
		t.Fatalf("unexpected user message: %+v", messages[1])
	}
	if messages[2].Role != messageRoleAssistant || messages[2].Content != "hi, how can I help?" {
		t.Fatalf("unexpected assistant message: %+v", messages[2])
	}
}

func TestStreamIsBuiltWithoutSendingARequest(t *testing.T) {
	client := Client{apiKey: "test-key", model: defaultModel}

	stream := client.ChatStream(context.Background(), []llms.Message{
		{Role: llms.RoleUser, Content: "hello"},
	}, llms.WithTemperature(0.2), llms.WithSegmentedOutput("en", "de"))

	s, ok := stream.(*Stream)
	if !ok {
		t.Fatalf("expected *Stream, got %T", stream)
	}
	if len(s.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.messages))
	}
	if s.options.Temperature == nil || *s.options.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", s.options.Temperature)
	}
	if len(s.options.SegmentLanguages) != 2 {
		t.Fatalf("expected 2 segment languages, got %v", s.options.SegmentLanguages)
	}
}
