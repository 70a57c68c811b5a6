package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// appendScript pushes a turn only if the session is registered
var appendScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
	return -1
end
return redis.call('RPUSH', KEYS[2], ARGV[2])
`)

// SessionStore keeps conversations in Redis so several bridge processes can
// share them. A set holds the known session keys and each session is a list
// of JSON encoded turns. All keys live under a per-instance namespace, so a
// restarted process starts with no sessions.
type SessionStore struct {
	client    *Client
	namespace string
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a store scoped to instance
func NewSessionStore(client *Client, instance uuid.UUID) *SessionStore {
	return &SessionStore{
		client:    client,
		namespace: fmt.Sprintf("%s%s:", keyPrefix, instance),
	}
}

func (s *SessionStore) setKey() string {
	return s.namespace + "sessions"
}

func (s *SessionStore) listKey(key domain.SessionKey) string {
	return s.namespace + "session:" + key.String()
}

// GetOrCreate registers the session if needed and returns its turns
func (s *SessionStore) GetOrCreate(ctx context.Context, key domain.SessionKey) (domain.Conversation, error) {
	var rangeCmd *redis.StringSliceCmd
	_, err := s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.setKey(), key.String())
		rangeCmd = pipe.LRange(ctx, s.listKey(key), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", key, err)
	}

	return decodeTurns(rangeCmd.Val())
}

// Append adds a turn to an existing session
func (s *SessionStore) Append(ctx context.Context, key domain.SessionKey, turn domain.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	n, err := appendScript.Run(ctx, s.client.rdb,
		[]string{s.setKey(), s.listKey(key)},
		key.String(), data,
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	if n < 0 {
		return fmt.Errorf("append to %s: %w", key, domain.ErrUnknownSession)
	}
	return nil
}

// Clear empties the session, registering it if it was unknown
func (s *SessionStore) Clear(ctx context.Context, key domain.SessionKey) error {
	_, err := s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.setKey(), key.String())
		pipe.Del(ctx, s.listKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear session %s: %w", key, err)
	}
	return nil
}

// Get returns the session without creating it
func (s *SessionStore) Get(ctx context.Context, key domain.SessionKey) (domain.Conversation, bool, error) {
	var (
		memberCmd *redis.BoolCmd
		rangeCmd  *redis.StringSliceCmd
	)
	_, err := s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		memberCmd = pipe.SIsMember(ctx, s.setKey(), key.String())
		rangeCmd = pipe.LRange(ctx, s.listKey(key), 0, -1)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	if !memberCmd.Val() {
		return nil, false, nil
	}

	conv, err := decodeTurns(rangeCmd.Val())
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// Keys lists every registered session
func (s *SessionStore) Keys(ctx context.Context) ([]domain.SessionKey, error) {
	members, err := s.client.rdb.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := make([]domain.SessionKey, 0, len(members))
	for _, m := range members {
		key, err := domain.ParseSessionKey(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt session key %q: %w", m, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Purge deletes everything this instance wrote. It runs on shutdown.
func (s *SessionStore) Purge(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}

	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, s.listKey(k))
	}
	del = append(del, s.setKey())

	if err := s.client.rdb.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}

func decodeTurns(raw []string) (domain.Conversation, error) {
	conv := make(domain.Conversation, 0, len(raw))
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		conv = append(conv, turn)
	}
	return conv, nil
}
