package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/chat-bridge/internal/api"
	"github.com/Rrens/chat-bridge/internal/api/handler"
	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/llm"
	"github.com/Rrens/chat-bridge/internal/llm/ollama"
	"github.com/Rrens/chat-bridge/internal/security"
	"github.com/Rrens/chat-bridge/internal/session"
)

type countingLimiter struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key]++
	remaining := l.limit - l.seen[key]
	if remaining < 0 {
		return false, 0, time.Now().Add(time.Minute), nil
	}
	return true, remaining, time.Now().Add(time.Minute), nil
}

func newTestRouter(t *testing.T, limiter *countingLimiter) (http.Handler, *session.MemoryStore) {
	t.Helper()

	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)

	store := session.NewMemoryStore()
	router := llm.NewRouter("ollama")
	router.RegisterProvider(ollama.NewProvider("http://localhost:11434", "llama3"))

	deps := api.Deps{
		Admin: config.AdminConfig{
			Username:       "operator",
			PasswordHash:   hash,
			JWTSecret:      "router-test-secret",
			AccessTokenTTL: time.Minute,
		},
		Store: store,
		LLM:   router,
		Stats: map[string]handler.StatsSource{
			"sessions": func() any { return store.Len() },
		},
	}
	// a nil *countingLimiter must not become a non-nil interface
	if limiter != nil {
		deps.Limiter = limiter
	}
	return api.NewRouter(deps), store
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "operator", "password": "s3cret"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data handler.TokenResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data.AccessToken
}

func authed(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRouter_Public(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	for _, path := range []string{"/api/v1/sessions", "/api/v1/stats", "/api/v1/llm/providers"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, authed(http.MethodGet, path, "garbage"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_OperatorFlow(t *testing.T) {
	h, store := newTestRouter(t, nil)
	token := login(t, h)

	key := domain.SessionKey{Host: "127.0.0.1", Port: 40000}
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, key, domain.UserTurn("Hello")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/sessions", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"127.0.0.1:40000"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/sessions/127.0.0.1:40000", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content":"Hello"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodDelete, "/api/v1/sessions/127.0.0.1:40000/turns", token))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	conv, _, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, conv)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/stats", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"sessions":1}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/llm/providers", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"default_provider":"ollama"`)
}

func TestRouter_RateLimited(t *testing.T) {
	limiter := &countingLimiter{limit: 1, seen: map[string]int{}}
	h, _ := newTestRouter(t, limiter)
	token := login(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/stats", token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/api/v1/stats", token))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, limiter.seen["admin:operator"])
}
