package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liravoice/lira-core/core/llms"
)

const (
	defaultMaxContextTokens  = 5000
	defaultRecentTurnsToKeep = 4

	// turnOverheadTokens approximates the per-message framing cost a chat
	// API charges on top of the content itself.
	turnOverheadTokens = 10
)

const summarizationPrompt = "You summarize conversation transcripts. Produce a concise third-person summary of the conversation below, preserving names, decisions, and open questions. Respond with the summary only."

// Turn is one attributable unit of speech in the conversation history.
type Turn struct {
	ID        string
	Speaker   string
	Text      string
	IsAgent   bool
	Timestamp time.Time
}

// ContextManager owns the conversation history and produces the exact
// message sequence sent to the model, folding older turns into a running
// summary to keep the prompt bounded.
type ContextManager struct {
	mu sync.Mutex

	instructions string
	agentName    string

	turns   []Turn
	summary string

	maxContextTokens  int
	recentTurnsToKeep int
}

// NewContextManager creates a manager for the given system instructions.
// agentName attributes agent turns in transcripts; non-positive limits fall
// back to the defaults.
func NewContextManager(instructions, agentName string, maxContextTokens, recentTurnsToKeep int) *ContextManager {
	if agentName == "" {
		agentName = "assistant"
	}
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	if recentTurnsToKeep <= 0 {
		recentTurnsToKeep = defaultRecentTurnsToKeep
	}
	return &ContextManager{
		instructions:      instructions,
		agentName:         agentName,
		maxContextTokens:  maxContextTokens,
		recentTurnsToKeep: recentTurnsToKeep,
	}
}

// AddUserTurn appends a participant's utterance to the history.
func (m *ContextManager) AddUserTurn(speaker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// AddAgentTurn appends the agent's spoken response to the history.
func (m *ContextManager) AddAgentTurn(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, Turn{
		ID:        uuid.NewString(),
		Speaker:   m.agentName,
		Text:      text,
		IsAgent:   true,
		Timestamp: time.Now(),
	})
}

// BuildMessages assembles the prompt: system instructions, then the
// optional external memory context, then the running summary if one exists,
// then verbatim turns. Once a summary exists only the most recent retained
// turns are rendered verbatim.
func (m *ContextManager) BuildMessages(memoryContext string) []llms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := []llms.Message{{Role: llms.RoleSystem, Content: m.instructions}}
	if memoryContext != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: memoryContext})
	}
	if m.summary != "" {
		messages = append(messages, llms.Message{
			Role:    llms.RoleSystem,
			Content: "Conversation so far, summarized:\n" + m.summary,
		})
	}

	turns := m.turns
	if m.summary != "" && len(turns) > m.recentTurnsToKeep {
		turns = turns[len(turns)-m.recentTurnsToKeep:]
	}
	for _, turn := range turns {
		if turn.IsAgent {
			messages = append(messages, llms.Message{Role: llms.RoleAssistant, Content: turn.Text})
		} else {
			messages = append(messages, llms.Message{
				Role:    llms.RoleUser,
				Content: fmt.Sprintf("[%s]: %s", turn.Speaker, turn.Text),
			})
		}
	}
	return messages
}

// ShouldSummarize reports whether the estimated prompt size crossed the
// configured token budget.
func (m *ContextManager) ShouldSummarize() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Roughly 4 characters per token holds well enough for a budget
	// decision.
	tokens := len(m.instructions) / 4
	for _, turn := range m.turns {
		tokens += len(turn.Text)/4 + turnOverheadTokens
	}
	return tokens > m.maxContextTokens
}

// Summarize folds every turn older than the retention window into the
// running summary using the passed model, then drops those turns. No-op
// when nothing falls outside the window. The error is returned rather than
// swallowed so the caller decides how fatal a failed summarization is.
func (m *ContextManager) Summarize(ctx context.Context, llm StreamingLLM) error {
	m.mu.Lock()
	cut := len(m.turns) - m.recentTurnsToKeep
	if cut <= 0 {
		m.mu.Unlock()
		return nil
	}
	older := make([]Turn, cut)
	copy(older, m.turns[:cut])
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "summarize conversation",
		trace.WithAttributes(attribute.Int("summarized_turns", len(older))))
	defer span.End()

	var transcript strings.Builder
	for _, turn := range older {
		fmt.Fprintf(&transcript, "[%s]: %s\n", turn.Speaker, turn.Text)
	}

	messages := []llms.Message{
		{Role: llms.RoleSystem, Content: summarizationPrompt},
		{Role: llms.RoleUser, Content: transcript.String()},
	}

	var summary strings.Builder
	for chunk, err := range llm.ChatStream(ctx, messages).Chunks(ctx) {
		if err != nil {
			err = fmt.Errorf("failed to summarize conversation: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if chunk, ok := chunk.(llms.StreamContentChunk); ok {
			summary.WriteString(chunk.Content())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if text := strings.TrimSpace(summary.String()); text != "" {
		if m.summary != "" {
			m.summary += "\n"
		}
		m.summary += text
	}
	m.turns = m.turns[cut:]
	return nil
}

// History returns a deep copy of the retained turns.
func (m *ContextManager) History() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	var history []Turn
	if err := copier.Copy(&history, m.turns); err != nil {
		history = append([]Turn(nil), m.turns...)
	}
	return history
}

// Summary returns the running summary, empty until the first
// summarization.
func (m *ContextManager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.summary
}

// AgentName returns the name agent turns are attributed to.
func (m *ContextManager) AgentName() string {
	return m.agentName
}
