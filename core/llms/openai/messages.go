package openai

import "github.com/liravoice/lira-core/core/llms"

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func toMessages(messages []llms.Message) []message {
	converted := make([]message, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, message{
			Role:    toMessageRole(msg.Role),
			Content: msg.Content,
		})
	}
	return converted
}

func toMessageRole(role llms.Role) messageRole {
	switch role {
	case llms.RoleSystem:
		return messageRoleSystem
	case llms.RoleAssistant:
		return messageRoleAssistant
	default:
		return messageRoleUser
	}
}
