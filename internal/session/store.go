package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions between updates. Load returns nil, nil when no
// session exists for the key.
type Store interface {
	Load(ctx context.Context, key Key) (*Session, error)
	Save(ctx context.Context, key Key, s Session) error
	Delete(ctx context.Context, key Key) error
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[Key][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Key][]byte)}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(_ context.Context, key Key) (*Session, error) {
	m.mu.Lock()
	data, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(data)
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, key Key, s Session) error {
	data, err := encode(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", key, err)
	}
	m.mu.Lock()
	m.sessions[key] = data
	m.mu.Unlock()
	return nil
}

// Delete forgets the session.
func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RedisStore keeps sessions as JSON values with a TTL so abandoned
// conversations expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to url and verifies the connection with PING.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key Key) string {
	return fmt.Sprintf("dojobot:session:%d:%d", key.ChatID, key.UserID)
}

// Load reads the session stored at the key.
func (r *RedisStore) Load(ctx context.Context, key Key) (*Session, error) {
	val, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", key, err)
	}
	return decode(val)
}

// Save writes the session and refreshes its TTL.
func (r *RedisStore) Save(ctx context.Context, key Key, s Session) error {
	data, err := encode(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", key, err)
	}
	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", key, err)
	}
	return nil
}

// Delete removes the session.
func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", key, err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
