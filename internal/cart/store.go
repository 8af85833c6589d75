package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps one cart per browsing session. A missing or expired session
// reads as an empty cart.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, idleTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: idleTimeout}
}

// Load reads the cart and slides its expiry, so the timeout counts from the
// last access rather than the last write.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	key := cacheKey(sessionID)

	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	if c == nil || c.IsEmpty() {
		return r.Delete(ctx, sessionID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return "cart:" + sessionID
}

// MemoryStore is a process-local Store for single-instance runs without redis.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	carts map[string]memoryEntry
}

type memoryEntry struct {
	cart      *Cart
	expiresAt time.Time
}

func NewMemoryStore(idleTimeout time.Duration) *MemoryStore {
	return &MemoryStore{ttl: idleTimeout, now: time.Now, carts: map[string]memoryEntry{}}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.carts[sessionID]
	if !ok {
		return &Cart{}, nil
	}
	now := m.now()
	if !now.Before(e.expiresAt) {
		delete(m.carts, sessionID)
		return &Cart{}, nil
	}
	e.expiresAt = now.Add(m.ttl)
	m.carts[sessionID] = e
	return e.cart.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c == nil || c.IsEmpty() {
		delete(m.carts, sessionID)
		return nil
	}
	m.carts[sessionID] = memoryEntry{cart: c.Clone(), expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}
