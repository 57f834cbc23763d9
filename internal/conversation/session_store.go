package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps one Session per user. Load returns a MainMenu session
// for users it has never seen.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, userID int64, s Session) error
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (m *MemoryStore) Load(_ context.Context, userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID].Normalize(), nil
}

func (m *MemoryStore) Save(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.State == StateMainMenu && s.TicketID == 0 {
		delete(m.sessions, userID)
		return nil
	}
	m.sessions[userID] = s
	return nil
}

const sessionKeyPrefix = "supportbot:session:"

// RedisStore keeps sessions in Redis so they survive restarts of the bot.
// Idle sessions expire after ttl and fall back to MainMenu.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, userID int64) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{State: StateMainMenu}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %d: %w", userID, err)
	}
	return decodeSession(raw), nil
}

func (r *RedisStore) Save(ctx context.Context, userID int64, s Session) error {
	key := sessionKey(userID)
	if s.State == StateMainMenu && s.TicketID == 0 {
		return r.client.Del(ctx, key).Err()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", userID, err)
	}
	return nil
}

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}

// decodeSession treats a corrupt value as a fresh session.
func decodeSession(raw []byte) Session {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{State: StateMainMenu}
	}
	return s.Normalize()
}
