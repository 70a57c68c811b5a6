package ollama_test

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
	"github.com/Rrens/chat-bridge/internal/llm/ollama"
)

func TestProvider_Chat(t *testing.T) {
	var got struct {
		Model    string        `json:"model"`
		Messages []llm.Message `json:"messages"`
		Stream   bool          `json:"stream"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{"message":{"role":"assistant","content":"Hi from llama"},"done":true,"eval_count":7}`))
	}))
	defer srv.Close()

	p := ollama.NewProvider(srv.URL+"/", "")
	resp, err := p.Chat(context.Background(), llm.Request{
		History: domain.Conversation{domain.UserTurn("a")},
		Message: "Hello",
	}, "mistral")
	require.NoError(t, err)

	assert.Equal(t, "Hi from llama", resp.Content)
	assert.Equal(t, 7, resp.TokensUsed)
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	assert.Len(t, got.Messages, 2)
}

func TestProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := ollama.NewProvider(url, "")
	_, err := p.Chat(context.Background(), llm.Request{Message: "Hello"}, "")
	assert.Error(t, err)
}
