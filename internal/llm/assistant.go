package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
)

// Assistant asks the configured provider for the next reply. It holds no
// conversation state of its own.
type Assistant struct {
	router        *Router
	provider      string
	system        string
	historyWindow int
	timeout       time.Duration
}

// NewAssistant creates an assistant on top of a provider router
func NewAssistant(router *Router, cfg config.LLMConfig) *Assistant {
	return &Assistant{
		router:        router,
		provider:      cfg.DefaultProvider,
		system:        cfg.SystemPrompt,
		historyWindow: cfg.HistoryWindow,
		timeout:       cfg.RequestTimeout,
	}
}

// Ask returns the assistant reply to message given the prior history, or ""
// when the backend could not produce one.
func (a *Assistant) Ask(ctx context.Context, message string, history domain.Conversation) string {
	resp, err := a.chat(ctx, message, history)
	if err != nil {
		log.Warn().
			Err(fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)).
			Str("provider", a.provider).
			Msg("backend request failed")
		return ""
	}

	log.Debug().
		Str("provider", a.provider).
		Str("model", resp.Model).
		Int("tokens", resp.TokensUsed).
		Int64("latency_ms", resp.LatencyMs).
		Msg("backend replied")

	return CleanReply(resp.Content)
}

func (a *Assistant) chat(ctx context.Context, message string, history domain.Conversation) (*Response, error) {
	provider, err := a.router.GetProvider(a.provider)
	if err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := Request{
		System:  a.system,
		History: history.Last(a.historyWindow),
		Message: message,
	}

	return provider.Chat(ctx, req, "")
}
