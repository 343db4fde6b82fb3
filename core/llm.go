package pipeline

import (
	"context"
	"fmt"

	"github.com/liravoice/lira-core/core/llms"
)

// llm wraps the configured language model client so pipeline code does
// not repeat nil checks and capability assertions at every call site.
type llm struct {
	client StreamingLLM
}

func (l *llm) set(client StreamingLLM) {
	if l == nil {
		return
	}

	l.client = client
}

func (l *llm) isConfigured() bool {
	return l != nil && l.client != nil
}

// stream forwards to the configured client. Callers must check
// isConfigured first.
func (l *llm) stream(ctx context.Context, messages []llms.Message, opts ...llms.ChatOption) llms.Stream {
	return l.client.ChatStream(ctx, messages, opts...)
}

// warmup pre-establishes the client's connection when supported. Clients
// without warmup support succeed immediately.
func (l *llm) warmup(ctx context.Context, systemPrompt string) error {
	if !l.isConfigured() {
		return nil
	}

	warmable, ok := l.client.(LLMWithWarmup)
	if !ok {
		return nil
	}

	if err := warmable.Warmup(ctx, systemPrompt); err != nil {
		return fmt.Errorf("failed to warm up llm: %w", err)
	}
	return nil
}
