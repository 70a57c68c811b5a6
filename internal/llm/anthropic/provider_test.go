package anthropic_test

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
	"github.com/Rrens/chat-bridge/internal/llm/anthropic"
)

func TestProvider_Chat(t *testing.T) {
	var got struct {
		System   string        `json:"system"`
		Messages []llm.Message `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"back"}],"usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := anthropic.NewProvider("key", "").WithBaseURL(srv.URL)
	resp, err := p.Chat(context.Background(), llm.Request{
		System:  "Be brief.",
		History: domain.Conversation{domain.UserTurn("hi"), domain.AssistantTurn("hey")},
		Message: "Hello",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "Hello back", resp.Content)
	assert.Equal(t, 5, resp.TokensUsed)
	assert.Equal(t, "Be brief.", got.System)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestProvider_ChatEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	p := anthropic.NewProvider("key", "").WithBaseURL(srv.URL)
	_, err := p.Chat(context.Background(), llm.Request{Message: "Hello"}, "")
	assert.Error(t, err)
}
