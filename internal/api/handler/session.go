package handler

import (
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/api/response"
	"github.com/Rrens/chat-bridge/internal/domain"
)

// SessionSummary describes one session in a listing
type SessionSummary struct {
	Key   string `json:"key"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Turns int    `json:"turns"`
}

// SessionDetail is one session with its transcript
type SessionDetail struct {
	SessionSummary
	Conversation domain.Conversation `json:"conversation"`
}

// SessionHandler exposes the session store to operators
type SessionHandler struct {
	store domain.SessionStore
}

func NewSessionHandler(store domain.SessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

func summarize(key domain.SessionKey, conv domain.Conversation) SessionSummary {
	return SessionSummary{Key: key.String(), Host: key.Host, Port: key.Port, Turns: len(conv)}
}

// List returns every known session ordered by key
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.Keys(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		response.InternalError(w, "failed to list sessions")
		return
	}

	sessions := make([]SessionSummary, 0, len(keys))
	for _, key := range keys {
		conv, ok, err := h.store.Get(r.Context(), key)
		if err != nil {
			response.InternalError(w, "failed to load session")
			return
		}
		if !ok {
			continue
		}
		sessions = append(sessions, summarize(key, conv))
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Key < sessions[j].Key })

	response.OK(w, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// Get returns one session's transcript
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyParam(w, r)
	if !ok {
		return
	}

	conv, found, err := h.store.Get(r.Context(), key)
	if err != nil {
		response.InternalError(w, "failed to load session")
		return
	}
	if !found {
		response.NotFound(w, "session not found")
		return
	}

	response.OK(w, SessionDetail{SessionSummary: summarize(key, conv), Conversation: conv})
}

// ClearTurns empties a session the same way the erase command does
func (h *SessionHandler) ClearTurns(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyParam(w, r)
	if !ok {
		return
	}

	_, found, err := h.store.Get(r.Context(), key)
	if err != nil {
		response.InternalError(w, "failed to load session")
		return
	}
	if !found {
		response.NotFound(w, "session not found")
		return
	}

	if err := h.store.Clear(r.Context(), key); err != nil {
		response.InternalError(w, "failed to clear session")
		return
	}

	log.Info().Str("session", key.String()).Msg("session cleared by operator")
	response.NoContent(w)
}

func sessionKeyParam(w http.ResponseWriter, r *http.Request) (domain.SessionKey, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		response.BadRequest(w, "invalid session key")
		return domain.SessionKey{}, false
	}

	key, err := domain.ParseSessionKey(raw)
	if err != nil {
		response.BadRequest(w, err.Error())
		return domain.SessionKey{}, false
	}
	return key, true
}
