package llm

import (
	"strings"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// BuildMessages flattens a request into the role/content list used by the
// chat completion style APIs: system prompt, history, then the new message.
func BuildMessages(req Request) []Message {
	messages := make([]Message, 0, len(req.History)+2)

	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}

	for _, turn := range req.History {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}

	return append(messages, Message{Role: string(domain.RoleUser), Content: req.Message})
}

// CleanReply trims provider output. Thinking models wrap their reasoning in
// <think> tags which must not reach the client.
func CleanReply(content string) string {
	if start := strings.Index(content, "<think>"); start != -1 {
		if end := strings.Index(content[start:], "</think>"); end != -1 {
			content = content[:start] + content[start+end+len("</think>"):]
		}
	}
	return strings.TrimSpace(content)
}
