package llm

import (
	"context"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// RoleSystem marks the system prompt in a provider message list
const RoleSystem = "system"

// Request contains one chat exchange for a provider
type Request struct {
	// System is an optional instruction placed before the history
	System string
	// History is replayed oldest first and never includes Message
	History domain.Conversation
	Message string
}

// Message is one entry of the flattened message list sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response contains LLM generation result
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Chat sends the conversation and returns the assistant reply
	Chat(ctx context.Context, req Request, model string) (*Response, error)
}
