package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/llm"
	"github.com/Rrens/chat-bridge/internal/llm/openai"
)

func TestProvider_Chat(t *testing.T) {
	var got struct {
		Model    string        `json:"model"`
		Messages []llm.Message `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Hi!"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	p := openai.NewProvider("sk-test", "", openai.WithBaseURL(srv.URL))
	resp, err := p.Chat(context.Background(), llm.Request{
		History: domain.Conversation{domain.UserTurn("a"), domain.AssistantTurn("b")},
		Message: "Hello",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "Hi!", resp.Content)
	assert.Equal(t, 12, resp.TokensUsed)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, llm.Message{Role: "user", Content: "Hello"}, got.Messages[2])
}

func TestProvider_ChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := openai.NewProvider("sk-test", "", openai.WithBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), llm.Request{Message: "Hello"}, "")
	assert.ErrorContains(t, err, "status 429")
}

func TestProvider_ChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := openai.NewProvider("sk-test", "", openai.WithBaseURL(srv.URL), openai.WithName("compat"))
	_, err := p.Chat(context.Background(), llm.Request{Message: "Hello"}, "")
	assert.ErrorContains(t, err, "no response from compat")
}

func TestProvider_IsConfigured(t *testing.T) {
	assert.False(t, openai.NewProvider("", "").IsConfigured())
	assert.True(t, openai.NewProvider("sk", "").IsConfigured())
}
