// Package deepseek talks to DeepSeek through its OpenAI-compatible API
package deepseek

import (
	"github.com/Rrens/chat-bridge/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider creates a new DeepSeek provider
func NewProvider(apiKey, defaultModel string, opts ...openai.Option) *openai.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	opts = append([]openai.Option{
		openai.WithName("deepseek"),
		openai.WithBaseURL(baseURL),
		openai.WithModels("deepseek-chat", "deepseek-reasoner"),
	}, opts...)
	return openai.NewProvider(apiKey, defaultModel, opts...)
}
