package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// Wire commands, matched case-insensitively
const (
	CommandQuit  = "q"
	CommandErase = "e"
)

// Fixed replies sent instead of an assistant response
const (
	FallbackReply    = "Something went wrong."
	OversizeReply    = "Encryption failed. Response too long."
	RateLimitedReply = "Rate limit exceeded."
)

// Prefix returns the tag put in front of every assistant reply
func Prefix(t domain.Transport) string {
	switch t {
	case domain.TransportStream:
		return "[TCP] "
	case domain.TransportDatagram:
		return "[UDP] "
	}
	return ""
}

// Backend produces the assistant reply, "" meaning no reply
type Backend interface {
	Ask(ctx context.Context, message string, history domain.Conversation) string
}

// Limiter decides whether a client may send another message
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
}

// Recorder receives every turn the store accepted
type Recorder interface {
	Record(transport domain.Transport, key domain.SessionKey, turn domain.Turn)
}

// Replier sends one framed message back to the client
type Replier interface {
	Send(msg string) error
}

// ReplyFunc adapts a function to Replier
type ReplyFunc func(msg string) error

func (f ReplyFunc) Send(msg string) error { return f(msg) }

// Outcome is how a single inbound message was handled
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeQuit
	OutcomeErased
	OutcomeReplied
	OutcomeFallback
	OutcomeOversize
	OutcomeRateLimited
	OutcomeSendFailed
	OutcomeFailed
	outcomeCount
)

var outcomeNames = [outcomeCount]string{
	"ignored", "quit", "erased", "replied", "fallback",
	"oversize", "rate_limited", "send_failed", "failed",
}

func (o Outcome) String() string {
	if o < 0 || o >= outcomeCount {
		return "unknown"
	}
	return outcomeNames[o]
}

// ChatService runs one message cycle for either transport: command handling,
// session bookkeeping, the backend call and the reply.
type ChatService struct {
	store    domain.SessionStore
	backend  Backend
	limiter  Limiter
	recorder Recorder

	outcomes [outcomeCount]atomic.Int64
}

// Option configures optional collaborators
type Option func(*ChatService)

// WithLimiter enables per-session rate limiting
func WithLimiter(l Limiter) Option {
	return func(s *ChatService) { s.limiter = l }
}

// WithRecorder archives accepted turns
func WithRecorder(r Recorder) Option {
	return func(s *ChatService) { s.recorder = r }
}

// NewChatService creates a new chat service
func NewChatService(store domain.SessionStore, backend Backend, opts ...Option) *ChatService {
	s := &ChatService{store: store, backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsQuit reports whether msg asks to end the exchange
func IsQuit(msg string) bool {
	return strings.EqualFold(msg, CommandQuit)
}

// Handle processes one inbound message from key and sends at most one reply.
// OutcomeQuit tells the caller to stop reading from this client.
func (s *ChatService) Handle(ctx context.Context, transport domain.Transport, key domain.SessionKey, msg string, reply Replier) Outcome {
	outcome := s.handle(ctx, transport, key, msg, reply)
	s.outcomes[outcome].Add(1)
	return outcome
}

func (s *ChatService) handle(ctx context.Context, transport domain.Transport, key domain.SessionKey, msg string, reply Replier) Outcome {
	logger := log.With().
		Str("transport", string(transport)).
		Str("session", key.String()).
		Logger()

	if IsQuit(msg) {
		logger.Info().Msg("client disconnected")
		return OutcomeQuit
	}
	if msg == "" {
		return OutcomeIgnored
	}

	logger.Info().Str("message", msg).Msg("received message")

	history, err := s.store.GetOrCreate(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load session")
		return OutcomeFailed
	}

	if strings.EqualFold(msg, CommandErase) {
		if err := s.store.Clear(ctx, key); err != nil {
			logger.Error().Err(err).Msg("failed to clear session")
			return OutcomeFailed
		}
		logger.Info().Msg("context cleared")
		return OutcomeErased
	}

	if !s.allow(ctx, key, logger) {
		s.send(reply, RateLimitedReply, logger)
		return OutcomeRateLimited
	}

	userTurn := domain.UserTurn(msg)
	if err := s.store.Append(ctx, key, userTurn); err != nil {
		logger.Error().Err(err).Msg("failed to record user turn")
		return OutcomeFailed
	}
	s.record(transport, key, userTurn)

	// history is the snapshot from before the user turn was appended
	response := s.backend.Ask(ctx, msg, history)
	if response == "" {
		s.send(reply, FallbackReply, logger)
		return OutcomeFallback
	}

	if err := reply.Send(Prefix(transport) + response); err != nil {
		if errors.Is(err, domain.ErrPayloadTooLarge) {
			logger.Warn().Err(err).Int("length", len(response)).Msg("response too long to send")
			s.send(reply, OversizeReply, logger)
			return OutcomeOversize
		}
		logger.Warn().Err(err).Msg("failed to send response")
		return OutcomeSendFailed
	}

	assistantTurn := domain.AssistantTurn(response)
	if err := s.store.Append(ctx, key, assistantTurn); err != nil {
		logger.Error().Err(err).Msg("failed to record assistant turn")
		return OutcomeReplied
	}
	s.record(transport, key, assistantTurn)

	logger.Info().Str("response", response).Msg("sent response")
	return OutcomeReplied
}

// allow consults the limiter. A limiter error lets the message through.
func (s *ChatService) allow(ctx context.Context, key domain.SessionKey, logger zerolog.Logger) bool {
	if s.limiter == nil {
		return true
	}

	allowed, remaining, reset, err := s.limiter.Allow(ctx, key.String())
	if err != nil {
		logger.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		logger.Warn().Int("remaining", remaining).Time("reset", reset).Msg("rate limit exceeded")
	}
	return allowed
}

func (s *ChatService) record(transport domain.Transport, key domain.SessionKey, turn domain.Turn) {
	if s.recorder != nil {
		s.recorder.Record(transport, key, turn)
	}
}

func (s *ChatService) send(reply Replier, msg string, logger zerolog.Logger) {
	if err := reply.Send(msg); err != nil {
		logger.Warn().Err(err).Str("reply", msg).Msg("failed to send reply")
	}
}

// Stats returns how many messages ended in each outcome
func (s *ChatService) Stats() map[string]int64 {
	stats := make(map[string]int64, outcomeCount)
	for i := Outcome(0); i < outcomeCount; i++ {
		stats[i.String()] = s.outcomes[i].Load()
	}
	return stats
}
