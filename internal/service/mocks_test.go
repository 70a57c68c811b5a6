package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// MockSessionStore mocks the domain.SessionStore interface
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetOrCreate(ctx context.Context, key domain.SessionKey) (domain.Conversation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Conversation), args.Error(1)
}

func (m *MockSessionStore) Append(ctx context.Context, key domain.SessionKey, turn domain.Turn) error {
	args := m.Called(ctx, key, turn)
	return args.Error(0)
}

func (m *MockSessionStore) Clear(ctx context.Context, key domain.SessionKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, key domain.SessionKey) (domain.Conversation, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(domain.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockSessionStore) Keys(ctx context.Context) ([]domain.SessionKey, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.SessionKey), args.Error(1)
}

// MockBackend mocks the Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Ask(ctx context.Context, message string, history domain.Conversation) string {
	args := m.Called(ctx, message, history)
	if fn, ok := args.Get(0).(func(context.Context, string, domain.Conversation) string); ok {
		return fn(ctx, message, history)
	}
	return args.String(0)
}

// MockLimiter mocks the Limiter interface
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

// MockRecorder mocks the Recorder interface
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(transport domain.Transport, key domain.SessionKey, turn domain.Turn) {
	m.Called(transport, key, turn)
}

// captureReplier records every message sent and can fail on demand
type captureReplier struct {
	mu   sync.Mutex
	sent []string
	fail func(msg string) error
}

func (c *captureReplier) Send(msg string) error {
	if c.fail != nil {
		if err := c.fail(msg); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureReplier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}
